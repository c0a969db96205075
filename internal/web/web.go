// Package web exposes the HTTP API over the appointment store plus the
// server-rendered calendar page used for PNG snapshots.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"crmcal/internal/config"
	"crmcal/internal/ics"
	appLog "crmcal/internal/log"
	"crmcal/internal/model"
	"crmcal/internal/store"
)

// Server provides the HTTP API: event listing and mutations, the
// calendar page and the last preview snapshot.
type Server struct {
	cfg *config.Config
	st  *store.Store
	mux *http.ServeMux

	// In-memory cache for expanded feed occurrences so UI polling does
	// not repeat fetch/parse/expand work on every request.
	feedMu    sync.RWMutex
	feedCache *feedCache
}

// feedCache holds one expanded window of feed occurrences.
type feedCache struct {
	rangeStart  time.Time
	rangeEnd    time.Time
	occurrences []model.Occurrence
	truncated   []string
	updatedAt   time.Time
}

const feedCacheTTL = 30 * time.Second

// NewServer constructs a Server over the given config and store.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	s := &Server{
		cfg: cfg,
		st:  st,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler, wrapped with basic auth when
// credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="crmcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the HTTP server on cfg.Listen until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /api/events/{id}/move", s.handleMove)
	s.mux.HandleFunc("POST /api/events/{id}/resize", s.handleResize)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDelete)

	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last rendered PNG snapshot from the cache
// directory; path matches the capture pipeline in cmd/crmcal.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.CacheDir, "preview.png"))
}

// eventDTO is the JSON shape of a CRM appointment.
type eventDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Kind        string    `json:"kind"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// occurrenceDTO is the JSON shape of a read-only feed occurrence.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type eventsResponse struct {
	Events          []eventDTO      `json:"events"`
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
	WeekStart       string          `json:"week_start"`
}

func eventToDTO(ev model.Event, loc *time.Location) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		Kind:        ev.Kind,
		Start:       ev.Start.In(loc),
		End:         ev.End.In(loc),
	}
}

// handleListEvents returns CRM appointments plus feed occurrences for a
// window around now.
//
// GET /api/events?days=7&backfill=1
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events, err := s.st.ListRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api events: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	occs, truncated := s.feedOccurrences(ctx, loc, rangeStart, rangeEnd)

	evDTOs := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		evDTOs = append(evDTOs, eventToDTO(ev, loc))
	}
	occDTOs := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		occDTOs = append(occDTOs, occurrenceDTO{
			SourceID:    occ.SourceID,
			UID:         occ.UID,
			InstanceKey: occ.InstanceKey,
			Summary:     occ.Summary,
			Description: occ.Description,
			Location:    occ.Location,
			AllDay:      occ.AllDay,
			Start:       occ.Start,
			End:         occ.End,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          evDTOs,
		Occurrences:     occDTOs,
		TruncatedUIDs:   truncated,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
		WeekStart:       s.cfg.WeekStart,
	})
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Kind        string    `json:"kind"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	ev, err := s.st.Create(r.Context(), model.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Status:      req.Status,
		Kind:        req.Kind,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		writeStoreError(w, "create", err)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	writeJSON(w, http.StatusCreated, eventToDTO(ev, loc))
}

type rescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	s.handleReschedule(w, r, "move", s.st.Move)
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	s.handleReschedule(w, r, "resize", s.st.Resize)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request, verb string,
	fn func(ctx context.Context, id int64, start, end time.Time) error) {

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := fn(r.Context(), id, req.Start, req.End); err != nil {
		writeStoreError(w, verb, err)
		return
	}

	ev, err := s.st.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, verb, err)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	writeJSON(w, http.StatusOK, eventToDTO(ev, loc))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.st.Delete(r.Context(), id); err != nil {
		writeStoreError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, verb string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "end must be after start")
	default:
		appLog.Error("api events: "+verb+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+verb+" event")
	}
}

// feedOccurrences returns the expanded feed occurrences for the window,
// using the short-lived cache when it matches.
func (s *Server) feedOccurrences(ctx context.Context, loc *time.Location,
	rangeStart, rangeEnd time.Time) ([]model.Occurrence, []string) {

	now := time.Now()

	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && now.Sub(fc.updatedAt) < feedCacheTTL &&
		fc.rangeStart.Equal(rangeStart) && fc.rangeEnd.Equal(rangeEnd) {
		return fc.occurrences, fc.truncated
	}

	sources := s.sources()
	if len(sources) == 0 {
		return nil, nil
	}

	fetcher := ics.NewFetcher(filepath.Join(s.cfg.CacheDir, "ics"))
	results, fetchErrs := fetcher.FetchAll(ctx, sources)
	if len(fetchErrs) > 0 {
		appLog.Error("feed fetch failed for some sources", errors.Join(fetchErrs...),
			"error_count", len(fetchErrs))
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		events, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			appLog.Error("feed parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		appLog.Error("feed expand failed", err)
		return nil, nil
	}

	s.feedMu.Lock()
	s.feedCache = &feedCache{
		rangeStart:  rangeStart,
		rangeEnd:    rangeEnd,
		occurrences: expanded.Occurrences,
		truncated:   expanded.TruncatedUIDs,
		updatedAt:   time.Now(),
	}
	s.feedMu.Unlock()

	return expanded.Occurrences, expanded.TruncatedUIDs
}

// sources builds the fetchable source list from config, skipping feeds
// without a URL.
func (s *Server) sources() []ics.Source {
	out := make([]ics.Source, 0, len(s.cfg.Feeds))
	for _, f := range s.cfg.Feeds {
		if f.URL == "" {
			continue
		}
		id := f.ID
		if id == "" {
			if f.Name != "" {
				id = f.Name
			} else {
				id = f.URL
			}
		}
		out = append(out, ics.Source{ID: id, URL: f.URL})
	}
	return out
}

// RefreshFeeds re-fetches all feeds (warming the on-disk cache) and
// drops the in-memory cache so the next request sees fresh data. Driven
// by the cron scheduler.
func (s *Server) RefreshFeeds(ctx context.Context) error {
	sources := s.sources()
	if len(sources) == 0 {
		return nil
	}

	fetcher := ics.NewFetcher(filepath.Join(s.cfg.CacheDir, "ics"))
	_, fetchErrs := fetcher.FetchAll(ctx, sources)

	s.feedMu.Lock()
	s.feedCache = nil
	s.feedMu.Unlock()

	if len(fetchErrs) > 0 {
		return errors.Join(fetchErrs...)
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
