// Package api exposes scanning and export over HTTP for panel front ends.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/app"
	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/export"
	"github.com/hyperifyio/svgscout/internal/scan"
	"github.com/hyperifyio/svgscout/internal/store"
)

// maxRequestBytes bounds JSON request bodies; archive requests carry full
// asset markup.
const maxRequestBytes = 64 << 20

// Service is the subset of *app.App the handlers need.
type Service interface {
	Scan(ctx context.Context, target string, progress func(scan.Progress)) (app.Result, error)
	LastScan(ctx context.Context) (app.Result, error)
	Exporter() *export.Exporter
}

type Server struct {
	svc      Service
	router   *chi.Mux
	validate *validator.Validate
}

// Options toggles optional routes.
type Options struct {
	// Debug mounts live runtime charts under /debug/statsviz/.
	Debug bool
}

func NewServer(svc Service, opts ...Options) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	s := &Server{svc: svc, router: r, validate: validator.New(validator.WithRequiredStructEnabled())}
	s.routes()
	for _, o := range opts {
		if o.Debug {
			s.mountDebug()
		}
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/scan", s.handleScan)
	s.router.Get("/scan/last", s.handleLastScan)
	s.router.Route("/export", func(r chi.Router) {
		r.Post("/single", s.handleExportSingle)
		r.Post("/archive", s.handleExportArchive)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request completed")
		}()
		next.ServeHTTP(ww, r)
	})
}

type scanRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

type scanResponse struct {
	Success   bool            `json:"success"`
	PageURL   string          `json:"pageUrl"`
	PageTitle string          `json:"pageTitle"`
	Items     []asset.Asset   `json:"items"`
	Progress  []scan.Progress `json:"progress,omitempty"`
}

type singleRequest struct {
	Asset     asset.Asset   `json:"asset"`
	Format    export.Format `json:"format"`
	PageTitle string        `json:"pageTitle"`
}

type archiveRequest struct {
	Items         []asset.Asset `json:"items"`
	IncludeRaster bool          `json:"includeRaster"`
	Scale         int           `json:"scale" validate:"omitempty,oneof=1 2 4"`
	PageTitle     string        `json:"pageTitle"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": app.VersionString()})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target := strings.TrimSpace(req.URL)
	req.URL = target
	if err := s.check(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var progress []scan.Progress
	res, err := s.svc.Scan(r.Context(), target, func(p scan.Progress) { progress = append(progress, p) })
	if err != nil {
		log.Warn().Err(err).Str("url", target).Msg("scan failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Success:   true,
		PageURL:   res.PageURL,
		PageTitle: res.PageTitle,
		Items:     nonNil(res.Items),
		Progress:  progress,
	})
}

func (s *Server) handleLastScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.LastScan(r.Context())
	switch {
	case errors.Is(err, store.ErrNoScan), errors.Is(err, app.ErrNoStore):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Success: true, PageURL: res.PageURL, PageTitle: res.PageTitle, Items: nonNil(res.Items)})
}

func (s *Server) handleExportSingle(w http.ResponseWriter, r *http.Request) {
	var req singleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Asset.Content == "" {
		writeError(w, http.StatusBadRequest, errors.New("asset content is required"))
		return
	}
	if err := s.check(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.svc.Exporter().ExportSingle(r.Context(), req.Asset, req.Format, req.PageTitle)
	if err != nil {
		log.Warn().Err(err).Str("asset", req.Asset.ID).Msg("export failed")
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writePayload(w, p)
}

func (s *Server) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.check(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.svc.Exporter().ExportArchive(r.Context(), req.Items, req.IncludeRaster, req.Scale, req.PageTitle)
	if errors.Is(err, export.ErrNoItems) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Int("items", len(req.Items)).Msg("archive export failed")
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writePayload(w, p)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// check runs struct tag validation and reports the first failing field.
func (s *Server) check(v any) error {
	err := s.validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("invalid %s: must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid %s: must satisfy %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err
}

func writePayload(w http.ResponseWriter, p export.Payload) {
	w.Header().Set("Content-Type", p.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": p.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(p.Data); err != nil {
		log.Debug().Err(err).Str("file", p.FileName).Msg("payload write")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func nonNil(items []asset.Asset) []asset.Asset {
	if items == nil {
		return []asset.Asset{}
	}
	return items
}
