package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"wishmaker/internal/app"
	"wishmaker/internal/calendar"
	"wishmaker/internal/ics"
	appLog "wishmaker/internal/log"
	"wishmaker/internal/model"
	"wishmaker/internal/store"
	"wishmaker/internal/wishes"
)

const (
	maxBodyBytes   = 64 << 10
	agendaCacheTTL = 30 * time.Second
	maxAgendaDays  = 366
)

// Server exposes wishes, events and the device calendar agenda as JSON.
type Server struct {
	app *app.App
	mux *http.ServeMux
	now func() time.Time

	// Expanded agenda responses keyed by query; dropped whenever an event
	// is appended or the device calendar file changes. agendaGen counts
	// invalidations so a build that raced one is not cached.
	agendaMu    sync.RWMutex
	agendaCache map[string]agendaCacheEntry
	agendaGen   uint64

	unsubscribe []func()
}

// NewServer constructs a new Server. Call Close to detach it from the
// event list.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:         a,
		mux:         http.NewServeMux(),
		now:         time.Now,
		agendaCache: make(map[string]agendaCacheEntry),
	}
	s.unsubscribe = append(s.unsubscribe, a.Service.EventList().Subscribe(store.ObserverFunc[model.Event](
		func(slot string, index int, _ model.Event) {
			s.invalidateAgenda()
			appLog.Debug("agenda cache invalidated", "slot", slot, "index", index)
		},
	)))
	if a.Calendar != nil {
		s.unsubscribe = append(s.unsubscribe, a.Calendar.OnChange(func(e calendar.Entry) {
			s.invalidateAgenda()
			appLog.Debug("agenda cache invalidated", "uid", e.UID)
		}))
	}
	s.registerRoutes()
	return s
}

// Close detaches the server from the event list and the device calendar.
func (s *Server) Close() {
	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.unsubscribe = nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.Config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.app.Config.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.app.Config.BasicAuth.Username
	password := s.app.Config.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="wishmaker", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/wishes", s.handleListWishes)
	s.mux.HandleFunc("POST /api/wishes", s.handleAddWish)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleAddEvent)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type wishesResponse struct {
	Wishes []model.Wish `json:"wishes"`
}

type addWishRequest struct {
	Text string `json:"text"`
}

type addWishResponse struct {
	Index int        `json:"index"`
	Wish  model.Wish `json:"wish"`
}

func (s *Server) handleListWishes(w http.ResponseWriter, _ *http.Request) {
	list, err := s.app.Service.Wishes()
	if err != nil {
		appLog.Error("api wishes: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load wishes")
		return
	}
	writeJSON(w, http.StatusOK, wishesResponse{Wishes: list})
}

func (s *Server) handleAddWish(w http.ResponseWriter, r *http.Request) {
	var req addWishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	idx, wish, err := s.app.Service.AddWish(req.Text)
	if err != nil {
		writeServiceError(w, "api wishes: append failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, addWishResponse{Index: idx, Wish: wish})
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

type addEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type addEventResponse struct {
	Index    int         `json:"index"`
	Event    model.Event `json:"event"`
	Message  string      `json:"message"`
	Mirrored bool        `json:"mirrored"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	list, err := s.app.Service.Events()
	if err != nil {
		appLog.Error("api events: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: list})
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.StartDate == nil || req.EndDate == nil {
		writeError(w, http.StatusBadRequest, "startDate and endDate are required")
		return
	}

	res, err := s.app.Service.AddEvent(r.Context(), wishes.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Start:       *req.StartDate,
		End:         *req.EndDate,
	})
	if err != nil {
		writeServiceError(w, "api events: append failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, addEventResponse{
		Index:    res.Index,
		Event:    res.Event,
		Message:  res.Message,
		Mirrored: res.Mirrored,
	})
}

// AgendaResponse is the JSON response shape for /api/agenda.
type AgendaResponse struct {
	Occurrences     []OccurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

type agendaCacheEntry struct {
	resp      AgendaResponse
	updatedAt time.Time
}

// OccurrenceDTO is a JSON-friendly view of one occurrence.
type OccurrenceDTO struct {
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleAgenda returns expanded occurrences of the device calendar.
//
// GET /api/agenda?days=7&backfill=1
//   - days:     how many days ahead (default calendar.horizon_days, max 366)
//   - backfill: how many past days to include (default 1, max 366)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if s.app.Calendar == nil {
		writeError(w, http.StatusNotFound, "device calendar is disabled")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.app.Config.Calendar.HorizonDays)
	if days <= 0 {
		days = s.app.Config.Calendar.HorizonDays
	}
	days = min(days, maxAgendaDays)
	backfill := min(max(parseIntDefault(q.Get("backfill"), 1), 0), maxAgendaDays)

	cacheKey := fmt.Sprintf("%d/%d", days, backfill)
	now := s.now()

	s.agendaMu.RLock()
	ce, ok := s.agendaCache[cacheKey]
	gen := s.agendaGen
	s.agendaMu.RUnlock()
	if ok && now.Sub(ce.updatedAt) < agendaCacheTTL {
		writeJSON(w, http.StatusOK, ce.resp)
		return
	}

	loc := s.app.Location()
	local := now.In(loc)
	resp, err := Agenda(s.app, local.AddDate(0, 0, -backfill), local.AddDate(0, 0, days))
	if err != nil {
		appLog.Error("api agenda failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build agenda")
		return
	}

	s.agendaMu.Lock()
	if s.agendaGen == gen {
		s.agendaCache[cacheKey] = agendaCacheEntry{resp: resp, updatedAt: now}
	}
	s.agendaMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) invalidateAgenda() {
	s.agendaMu.Lock()
	s.agendaCache = make(map[string]agendaCacheEntry)
	s.agendaGen++
	s.agendaMu.Unlock()
}

// Agenda reads the device calendar and expands it over [start, end] in the
// app's display timezone.
func Agenda(a *app.App, start, end time.Time) (AgendaResponse, error) {
	loc := a.Location()
	resp := AgendaResponse{
		Occurrences:     []OccurrenceDTO{},
		RangeStart:      start,
		RangeEnd:        end,
		DisplayTimeZone: loc.String(),
	}
	if a.Calendar == nil {
		return resp, errors.New("device calendar is disabled")
	}

	body, err := a.Calendar.Read()
	if err != nil {
		return resp, err
	}
	if len(body) == 0 {
		return resp, nil
	}

	parsed, err := ics.ParseICS(ics.Source{ID: "device", Path: a.Calendar.Path()}, body)
	if err != nil {
		return resp, err
	}
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return resp, err
	}

	for _, occ := range expanded.Occurrences {
		resp.Occurrences = append(resp.Occurrences, OccurrenceDTO{
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
	resp.TruncatedUIDs = expanded.TruncatedEvents
	return resp, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps blank-field rejections to 422 and everything else
// (storage failures, strict-mode corruption) to 500.
func writeServiceError(w http.ResponseWriter, logMsg string, err error) {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		writeError(w, http.StatusUnprocessableEntity, fe.Error())
		return
	}
	appLog.Error(logMsg, err)
	writeError(w, http.StatusInternalServerError, "failed to store record")
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
