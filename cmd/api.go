package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/reply"
	"github.com/sells-group/leadflow/internal/sourcing"
	"github.com/sells-group/leadflow/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// buildRouter mounts the API on a chi router.
func buildRouter(env *appEnv, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	h := &api{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Post("/ingest", h.ingest)
		r.Post("/enrich", h.enrich)
		r.Post("/reply", h.reply)
		r.Post("/scraper", h.scraper)

		r.Get("/leads", h.listLeads)
		r.Post("/leads/{id}/requeue", h.requeue)
		r.Get("/replies", h.listReplies)
		r.Patch("/replies/{id}/handled", h.setHandled)
		r.Get("/dashboard", h.dashboard)

		r.Post("/trigger/cleanup", h.triggerCleanup)
		r.Post("/trigger/dashboard", h.triggerDashboard)
	})
	return r
}

type api struct {
	env *appEnv
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := a.env.Store.Ping(r.Context()); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"breakers": a.env.Breakers.States(),
	})
}

type ingestRequest struct {
	Leads       []model.RawLead `json:"leads"`
	Source      string          `json:"source"`
	CampaignTag string          `json:"campaign_tag"`
}

func (a *api) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.env.Ingest.Ingest(r.Context(), req.Leads, model.Source(strings.TrimSpace(req.Source)), req.CampaignTag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) enrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := a.env.Orchestrator.RunBatch(r.Context(), req.BatchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) reply(w http.ResponseWriter, r *http.Request) {
	var in reply.Inbound
	if !decode(w, r, &in) {
		return
	}
	out, err := a.env.Router.Handle(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) scraper(w http.ResponseWriter, r *http.Request) {
	if a.env.Sourcing == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("scraper sourcing is not configured"))
		return
	}
	var req sourcing.Request
	if !decode(w, r, &req) {
		return
	}
	if req.ActorID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("actor_id is required"))
		return
	}
	res, err := a.env.Sourcing.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	leads, err := a.env.Store.FindLeads(r.Context(), store.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
		Tier:   model.Tier(q.Get("tier")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (a *api) requeue(w http.ResponseWriter, r *http.Request) {
	lead, err := a.env.Orchestrator.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (a *api) listReplies(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	f := store.ReplyFilter{
		Classification: model.Classification(r.URL.Query().Get("classification")),
		Limit:          limit,
		Offset:         offset,
	}
	if v := r.URL.Query().Get("handled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("handled must be true or false"))
			return
		}
		f.Handled = &b
	}
	replies, err := a.env.Store.ListReplies(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if replies == nil {
		replies = []model.Reply{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": replies, "count": len(replies)})
}

func (a *api) setHandled(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Handled *bool `json:"handled"`
	}{}
	if !decodeOptional(w, r, &req) {
		return
	}
	handled := req.Handled == nil || *req.Handled
	id := chi.URLParam(r, "id")
	if err := a.env.Store.SetReplyHandled(r.Context(), id, handled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "handled": handled})
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) {
	rep, err := a.env.Collector.Collect(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *api) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxDeletions int `json:"max_deletions"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := a.env.Cleanup.Run(r.Context(), req.MaxDeletions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) triggerDashboard(w http.ResponseWriter, r *http.Request) {
	rep, err := a.env.Collector.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("offset must be a non-negative integer"))
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps domain errors to status codes; anything unrecognized is
// logged and reported as a 500.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case eris.Is(err, ingest.ErrNoLeads), eris.Is(err, reply.ErrInvalidReply):
		code = http.StatusBadRequest
	case eris.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case eris.Is(err, model.ErrIllegalTransition):
		code = http.StatusConflict
	case eris.Is(err, sourcing.ErrRunFailed):
		code = http.StatusBadGateway
	default:
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, code, errorBody(err.Error()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
