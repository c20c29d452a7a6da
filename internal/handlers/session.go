package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"redisquery-backend/internal/examples"
	"redisquery-backend/internal/middleware"
	"redisquery-backend/internal/models"
	"redisquery-backend/internal/services"
	"redisquery-backend/internal/session"
	"redisquery-backend/internal/view"
	"redisquery-backend/internal/worker"
)

const discoveryTimeout = 30 * time.Second

type turnDispatcher interface {
	Submit(job worker.Job) error
}

type schemaDiscoverer interface {
	Enabled() bool
	Discover(ctx context.Context) (models.SchemaContext, error)
}

type SessionHandler struct {
	store      *session.Store
	catalog    *examples.Catalog
	auth       *middleware.SessionAuth
	dispatcher turnDispatcher
	discovery  schemaDiscoverer
	renderer   *view.Renderer
}

func NewSessionHandler(
	store *session.Store,
	catalog *examples.Catalog,
	auth *middleware.SessionAuth,
	dispatcher turnDispatcher,
	discovery schemaDiscoverer,
	renderer *view.Renderer,
) *SessionHandler {
	return &SessionHandler{
		store:      store,
		catalog:    catalog,
		auth:       auth,
		dispatcher: dispatcher,
		discovery:  discovery,
		renderer:   renderer,
	}
}

// session resolves the caller's session, writing 404 when it has expired.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.store.Get(middleware.GetSessionID(r.Context()))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) newSession() (*session.Session, string, error) {
	sess, err := h.store.Open(0, h.catalog.Default())
	if err != nil {
		return nil, "", err
	}
	token, err := h.auth.IssueToken(sess.ID)
	if err != nil {
		h.store.Delete(sess.ID)
		return nil, "", err
	}
	return sess, token, nil
}

// Create starts a new session on the first example.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, token, err := h.newSession()
	if err != nil {
		log.Printf("Failed to open session: %v", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionCreated{Token: token, State: sess.Snapshot()})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var patch models.ContextPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if patch.Empty() {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{
			"context": "At least one of key_patterns, sample_data, index_info, other_metadata is required",
		}})
		return
	}

	sess.UpdateContext(patch)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sess.SetInput(req.Input)
	w.WriteHeader(http.StatusNoContent)
}

// Send starts a turn and hands it to the dispatcher. Blank queries and sends
// while a turn is in flight are ignored, not rejected.
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	turn, started := sess.Begin(req.Query)
	if !started {
		writeJSON(w, http.StatusOK, models.SendResponse{Accepted: false, State: sess.Snapshot()})
		return
	}

	if err := h.dispatcher.Submit(worker.Job{Session: sess, Turn: turn}); err != nil {
		log.Printf("Failed to queue turn for session %s: %v", sess.ID, err)
		sess.Finish(turn, nil, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResp("BUSY", err.Error(), r))
		return
	}

	writeJSON(w, http.StatusAccepted, models.SendResponse{Accepted: true, State: sess.Snapshot()})
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.Clear()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) SelectExample(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SelectExampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	example, err := h.catalog.Get(req.Index)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	sess.SelectExample(req.Index, example)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Discover replaces the session context with one read from the live Redis.
func (h *SessionHandler) Discover(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if h.discovery == nil || !h.discovery.Enabled() {
		handleServiceError(w, r, &services.UnavailableError{Message: "Schema discovery is not configured. Set REDIS_URL to enable it."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), discoveryTimeout)
	defer cancel()

	discovered, err := h.discovery.Discover(ctx)
	if err != nil {
		log.Printf("Schema discovery failed for session %s: %v", sess.ID, err)
		if _, unavailable := err.(*services.UnavailableError); unavailable {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("DISCOVERY_FAILED", "Could not read schema from Redis", r))
		return
	}

	sess.ReplaceContext(discovered)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Transcript renders the transcript fragment the page swaps in on updates.
func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Transcript(w, view.NewTranscript(sess.Snapshot())); err != nil {
		log.Printf("Failed to render transcript: %v", err)
	}
}

func (h *SessionHandler) Examples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Summaries())
}

// Index serves the chat page bound to a fresh session.
func (h *SessionHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess, token, err := h.newSession()
	if err == session.ErrStoreFull {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Printf("Failed to issue session token: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	page := view.NewPage(token, sess.Snapshot(), h.catalog.Summaries(), h.discovery != nil && h.discovery.Enabled())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Page(w, page); err != nil {
		log.Printf("Failed to render page: %v", err)
	}
}
