package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/sqldump"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type BackupCreator interface {
	Create(ctx context.Context) (*domain.BackupFile, error)
}

type BackupLister interface {
	Execute(ctx context.Context) ([]domain.BackupMetadata, error)
}

type Restorer interface {
	Execute(ctx context.Context, req domain.RestoreRequest) (*domain.RestoreResult, error)
}

type Importer interface {
	ImportSQL(ctx context.Context, payload string) (*domain.SQLImportResult, error)
	ImportCSV(ctx context.Context, req domain.CSVImportRequest) (*domain.CSVImportResult, error)
	ImportJSON(ctx context.Context, req domain.JSONImportRequest) (*domain.JSONImportResult, error)
}

type Exporter interface {
	Prepare(tableList string) ([]string, error)
	Execute(ctx context.Context, w io.Writer, tables []string) (*sqldump.DumpStats, error)
}

type SchemaService interface {
	Info(ctx context.Context) ([]domain.TableInfo, error)
	Status(ctx context.Context) (*domain.ServerStatus, error)
	DropAllTables(ctx context.Context) (*domain.DropResult, error)
}

// Services are the operations exposed over HTTP.
type Services struct {
	Backup   BackupCreator
	List     BackupLister
	Restore  Restorer
	Importer Importer
	Export   Exporter
	Schema   SchemaService
}

// NewRouter creates and configures the chi router. maxUploadBytes bounds
// every request body, dump uploads included.
func NewRouter(s Services, log Logger, maxUploadBytes int64) *chi.Mux {
	h := &handler{
		svc:       s,
		logger:    log,
		maxUpload: maxUploadBytes,
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.listBackups)
			r.Post("/", h.createBackup)
		})

		r.Post("/restore", h.restore)

		r.Route("/import", func(r chi.Router) {
			r.Post("/sql", h.importSQL)
			r.Post("/csv", h.importCSV)
			r.Post("/json", h.importJSON)
		})

		r.Get("/export", h.export)

		r.Route("/schema", func(r chi.Router) {
			r.Get("/", h.schemaInfo)
			r.Post("/drop-tables", h.dropTables)
		})
	})

	return r
}

func requestLogger(log Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Infof("%s %s %d %dB %s [%s]", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
				time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
		})
	}
}
