package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/usecase"
)

// multipart parts above this size spill to disk
const multipartMemory = 32 << 20

type handler struct {
	svc       Services
	logger    Logger
	maxUpload int64
	now       func() time.Time
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindSecurity:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	resp := errorResponse{Error: err.Error()}
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return domain.Errorf(domain.KindValidation, "invalid request body: %v", err)
	}
	return nil
}

func formBool(r *http.Request, key string) bool {
	v := strings.TrimSpace(r.FormValue(key))
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Schema.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

func (h *handler) listBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.svc.List.Execute(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "backups": backups})
}

func (h *handler) createBackup(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.Backup.Create(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"filename": file.Filename,
		"size":     usecase.FormatBytes(file.Size),
		"tables":   file.Tables,
	})
}

// restore accepts a multipart upload in backup_file or a project relative
// path in server_backup_path. Urlencoded forms work for the latter.
func (h *handler) restore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			err = domain.Errorf(domain.KindValidation, "invalid form: %v", err)
		}
		h.fail(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	req := domain.RestoreRequest{
		ServerPath:       r.FormValue("server_backup_path"),
		IgnoreErrors:     formBool(r, "ignore_errors"),
		PreRestoreBackup: formBool(r, "pre_restore_backup"),
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["backup_file"]) > 0 {
		path, name, err := saveUpload(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		defer os.Remove(path)
		req.UploadPath, req.UploadName = path, name
	}

	result, err := h.svc.Restore.Execute(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// saveUpload copies the uploaded dump to a private temp file and returns its
// path along with the client supplied name.
func saveUpload(r *http.Request) (string, string, error) {
	src, header, err := r.FormFile("backup_file")
	if err != nil {
		return "", "", domain.Errorf(domain.KindValidation, "read upload: %v", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "sqlkeep-upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("store upload: %w", err)
	}
	return dst.Name(), header.Filename, nil
}

type sqlImportBody struct {
	SQL string `json:"sql"`
}

type csvImportBody struct {
	Table       string `json:"table"`
	Data        string `json:"data"`
	HasHeaders  *bool  `json:"has_headers"`
	ReplaceData bool   `json:"replace_data"`
}

type jsonImportBody struct {
	Table string `json:"table"`
	Data  string `json:"data"`
}

func (h *handler) importSQL(w http.ResponseWriter, r *http.Request) {
	var body sqlImportBody
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Importer.ImportSQL(r.Context(), body.SQL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) importCSV(w http.ResponseWriter, r *http.Request) {
	var body csvImportBody
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	// headers are assumed unless explicitly disabled
	hasHeaders := body.HasHeaders == nil || *body.HasHeaders
	result, err := h.svc.Importer.ImportCSV(r.Context(), domain.CSVImportRequest{
		Table:       body.Table,
		Data:        body.Data,
		HasHeaders:  hasHeaders,
		ReplaceData: body.ReplaceData,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) importJSON(w http.ResponseWriter, r *http.Request) {
	var body jsonImportBody
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Importer.ImportJSON(r.Context(), domain.JSONImportRequest{
		Table: body.Table,
		Data:  body.Data,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// export streams the dump straight into the response body. Headers are
// committed with the first byte; a failure before that is reported as a
// JSON error, after it the download can only end short.
func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.Export.Prepare(r.URL.Query().Get("tables"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := &downloadWriter{w: w, filename: usecase.ExportFilename(h.now())}
	if _, err := h.svc.Export.Execute(r.Context(), out, tables); err != nil {
		if !out.started {
			h.fail(w, r, err)
			return
		}
		h.logger.Errorf("Export aborted mid-stream: %v", err)
	}
}

// downloadWriter sets the attachment headers on the first write.
type downloadWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (d *downloadWriter) Write(p []byte) (int, error) {
	if !d.started {
		if len(p) == 0 {
			return 0, nil
		}
		d.started = true
		d.w.Header().Set("Content-Type", "application/sql")
		d.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.filename))
		d.w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}
	return d.w.Write(p)
}

func (h *handler) schemaInfo(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.Schema.Info(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": tables})
}

func (h *handler) dropTables(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "DROP" {
		h.fail(w, r, domain.Errorf(domain.KindValidation, "confirmation required: pass confirm=DROP"))
		return
	}
	result, err := h.svc.Schema.DropAllTables(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
