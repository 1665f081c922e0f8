package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfeidau/gravitypreview/internal/assets"
	"github.com/wolfeidau/gravitypreview/internal/bundle"
	httpmiddleware "github.com/wolfeidau/gravitypreview/internal/http"
	"github.com/wolfeidau/gravitypreview/internal/preview"
)

const tracerName = "github.com/wolfeidau/gravitypreview/internal/server"

// RefreshParam is the query parameter carrying the caller's cache-busting token
const RefreshParam = "refresh"

// Server exposes the normalizer to browser clients
type Server struct {
	memo     *preview.Memo
	pipeline *assets.Pipeline
	tracer   trace.Tracer
}

// NewServer creates a new server backed by the given memo and asset pipeline
func NewServer(memo *preview.Memo, pipeline *assets.Pipeline) *Server {
	return &Server{
		memo:     memo,
		pipeline: pipeline,
		tracer:   otel.Tracer(tracerName),
	}
}

// CheckResponse reports the esbuild verification of a normalized bundle
type CheckResponse struct {
	OK       bool                `json:"ok"`
	Scripts  []string            `json:"scripts,omitempty"`
	Errors   []assets.Diagnostic `json:"errors"`
	Warnings []assets.Diagnostic `json:"warnings"`
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /v1/normalize", s.handleNormalize)
	mux.HandleFunc("POST /v1/check", s.handleCheck)

	return mux
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	out, ok := s.normalize(w, r)
	if !ok {
		return
	}

	data, err := bundle.Encode(out, false)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode bundle")
		writeError(w, r, http.StatusInternalServerError, "failed to encode bundle")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	out, ok := s.normalize(w, r)
	if !ok {
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "preview.check")
	defer span.End()

	res, err := s.pipeline.Build(ctx, out)
	switch {
	case errors.Is(err, assets.ErrBuildFailed):
		span.SetStatus(codes.Error, err.Error())
		writeJSON(w, http.StatusUnprocessableEntity, CheckResponse{
			Errors:   res.Errors,
			Warnings: res.Warnings,
		})
		return
	case errors.Is(err, assets.ErrNoEntryPoints):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		span.RecordError(err)
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to check bundle")
		writeError(w, r, http.StatusInternalServerError, "failed to check bundle")
		return
	}

	resp := CheckResponse{OK: true, Errors: res.Errors, Warnings: res.Warnings}
	if scripts, err := res.Scripts("/src/app.js"); err == nil {
		resp.Scripts = scripts
	}
	writeJSON(w, http.StatusOK, resp)
}

// normalize decodes the request bundle and runs it through the memo. When it returns
// false the response has been written.
func (s *Server) normalize(w http.ResponseWriter, r *http.Request) (*bundle.Bundle, bool) {
	ctx, span := s.tracer.Start(r.Context(), "preview.normalize")
	defer span.End()

	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		span.SetAttributes(attribute.String("http.request_id", id))
	}
	if ip := httpmiddleware.ClientIPFromContext(ctx); ip != "" {
		span.SetAttributes(attribute.String("client.address", ip))
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "bundle too large")
			return nil, false
		}
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}

	in, err := bundle.Decode(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if in == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
		return nil, false
	}

	token := r.URL.Query().Get(RefreshParam)
	span.SetAttributes(
		attribute.Int("preview.modules.in", in.Modules.Len()),
		attribute.String("preview.refresh", token),
	)

	out, err := s.memo.Normalize(ctx, in, token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, preview.ErrInvalidManifest) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return nil, false
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to normalize bundle")
		writeError(w, r, http.StatusInternalServerError, "failed to normalize bundle")
		return nil, false
	}

	span.SetAttributes(attribute.Int("preview.modules.out", out.Modules.Len()))
	zerolog.Ctx(ctx).Debug().Int("modules", out.Modules.Len()).Str("refresh", token).Msg("Normalized bundle")

	return out, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError echoes the request ID, when RequestLogger assigned one, so clients can
// quote it against the server logs
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	body := map[string]string{"error": msg}
	if id := httpmiddleware.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	writeJSON(w, status, body)
}
