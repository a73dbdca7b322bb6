package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/sqlkeep/internal/domain"
)

// SourceResolver turns a restore request into a dump location. Server
// paths are resolved against the project root and must land inside one of
// the allowed directories.
type SourceResolver struct {
	root    string
	allowed []string
}

// NewSourceResolver canonicalizes the project root. Allowed directories are
// given relative to it; ones that do not exist yet are resolved lexically.
func NewSourceResolver(projectRoot string, allowedDirs ...string) (*SourceResolver, error) {
	root, err := canonical(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	r := &SourceResolver{root: root}
	for _, dir := range allowedDirs {
		if strings.TrimSpace(dir) == "" {
			return nil, errors.New("allowed directory must not be empty")
		}
		p := dir
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		c, err := canonical(p)
		if err != nil {
			return nil, fmt.Errorf("resolve allowed directory %s: %w", dir, err)
		}
		if c == root {
			return nil, fmt.Errorf("allowed directory %s must not be the project root", dir)
		}
		r.allowed = append(r.allowed, c)
	}
	return r, nil
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.Clean(abs), nil
		}
		return "", err
	}
	return resolved, nil
}

// Resolve validates req and returns where to read the dump from.
func (r *SourceResolver) Resolve(req domain.RestoreRequest) (*domain.ResolvedSource, error) {
	if req.UploadPath != "" {
		name := req.UploadName
		if name == "" {
			name = req.UploadPath
		}
		return &domain.ResolvedSource{
			Path:   req.UploadPath,
			Gzip:   domain.IsGzipName(name),
			Upload: true,
		}, nil
	}

	rel := strings.TrimSpace(req.ServerPath)
	if rel == "" {
		return nil, domain.E(domain.KindValidation, "", domain.ErrNoSource)
	}
	return r.ResolveServerPath(rel)
}

// ResolveServerPath canonicalizes rel against the project root, following
// symlinks and "..", and checks it against the allow-list.
func (r *SourceResolver) ResolveServerPath(rel string) (*domain.ResolvedSource, error) {
	joined := rel
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.root, rel)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return nil, domain.E(domain.KindNotFound, rel, domain.ErrSourceNotFound)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return nil, domain.E(domain.KindNotFound, rel, domain.ErrSourceNotFound)
	}

	for _, dir := range r.allowed {
		if within(resolved, dir) {
			return &domain.ResolvedSource{
				Path: resolved,
				Root: dir,
				Gzip: domain.IsGzipName(resolved),
			}, nil
		}
	}

	return nil, domain.E(domain.KindSecurity, "", fmt.Errorf("%w to backup file path", domain.ErrAccessDenied))
}

func within(path, dir string) bool {
	if dir == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
