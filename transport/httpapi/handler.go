// Package httpapi serves the relay's inbound webhook and operational
// endpoints.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/railsonsantospb/unifi-relay/command"
	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/railsonsantospb/unifi-relay/query"
)

const (
	DefaultIngestPath = "/ingest/unifi"
	DefaultHealthPath = "/healthz"
	DefaultStatePath  = "/state/{site}"
)

type Options struct {
	IngestPath   string
	HealthPath   string
	StatePath    string
	MetricsPath  string
	MaxBodyBytes int64
	// Metrics is mounted on MetricsPath when set.
	Metrics http.Handler
	Logger  glog.Logger
	// RequestID overrides the uuid generator, mostly for tests.
	RequestID func() string
}

type Handler struct {
	ingest gocmd.Commander[command.IngestMessage]
	state  gocmd.Querier[query.LastStateMessage, core.SiteState]
	opts   Options
	logger glog.Logger
	mux    *http.ServeMux
}

func NewHandler(
	ingest gocmd.Commander[command.IngestMessage],
	state gocmd.Querier[query.LastStateMessage, core.SiteState],
	opts Options,
) *Handler {
	if strings.TrimSpace(opts.IngestPath) == "" {
		opts.IngestPath = DefaultIngestPath
	}
	if strings.TrimSpace(opts.HealthPath) == "" {
		opts.HealthPath = DefaultHealthPath
	}
	if strings.TrimSpace(opts.StatePath) == "" {
		opts.StatePath = DefaultStatePath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = core.DefaultMaxBodyBytes
	}
	if opts.RequestID == nil {
		opts.RequestID = func() string { return uuid.NewString() }
	}

	h := &Handler{
		ingest: ingest,
		state:  state,
		opts:   opts,
		logger: glog.Ensure(opts.Logger),
		mux:    http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST "+h.opts.IngestPath, h.handleIngest)
	h.mux.HandleFunc("GET "+h.opts.HealthPath, h.handleHealth)
	if h.state != nil {
		h.mux.HandleFunc("GET "+h.opts.StatePath, h.handleState)
	}
	if h.opts.Metrics != nil && strings.TrimSpace(h.opts.MetricsPath) != "" {
		h.mux.Handle("GET "+h.opts.MetricsPath, h.opts.Metrics)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	requestID := h.opts.RequestID()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		meta := map[string]any{"request_id": requestID, "too_large": isBodyTooLarge(err)}
		h.logger.Warn("ingest body read failed", "request_id", requestID, "error", err.Error())
		h.writeFailure(w, transportWrapError(err, err.Error(), http.StatusInternalServerError, meta))
		return
	}

	req := core.InboundRequest{
		RequestID: requestID,
		Headers:   flattenHeaders(r.Header),
		Body:      body,
	}
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)

	if err := h.ingest.Execute(ctx, command.IngestMessage{Request: req}); err != nil {
		h.writeFailure(w, err)
		return
	}
	result, _ := collector.Load()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "changed": result.Changed})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.Query(r.Context(), query.LastStateMessage{Site: r.PathValue("site")})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status, message := responseError(err)
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// flattenHeaders keeps the first value of each header under its canonical
// name.
func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) == 0 {
			continue
		}
		out[name] = values[0]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

