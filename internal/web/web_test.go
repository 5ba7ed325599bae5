package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishmaker/internal/app"
	"wishmaker/internal/config"
	"wishmaker/internal/model"
	"wishmaker/internal/store"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Calendar.Path = filepath.Join(t.TempDir(), "calendar.ics")
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}

	a, err := app.New(cfg)
	require.NoError(t, err)
	s := NewServer(a)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		s.Close()
		_ = a.Close()
	})
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/wishes", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/wishes", nil)
	req.SetBasicAuth("me", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/wishes", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWishesAPI(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/wishes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"wishes":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/wishes", `{"text":"  Learn Rust "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"index":0,"wish":"Learn Rust"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/wishes", `{"text":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/wishes", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/wishes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"wishes":["Learn Rust"]}`, rec.Body.String())
}

func TestEventsAPI(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body := `{"title":"Gym","description":"Leg day","startDate":"2025-06-01T18:00:00Z","endDate":"2025-06-01T19:30:00Z"}`
	rec := do(t, h, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decode[addEventResponse](t, rec)
	assert.Equal(t, 0, created.Index)
	assert.Equal(t, "Event added to calendar", created.Message)
	assert.True(t, created.Mirrored)
	assert.Equal(t, "Gym", created.Event.Title)

	rec = do(t, h, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[eventsResponse](t, rec)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Leg day", list.Events[0].Description)
	assert.True(t, list.Events[0].StartDate.Equal(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)))
}

func TestEventsAPI_Rejections(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/events", `{"title":"","description":"Leg day","startDate":"2025-06-01T18:00:00Z","endDate":"2025-06-01T19:00:00Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "title")

	rec = do(t, h, http.MethodPost, "/api/events", `{"title":"Gym","description":"Leg day"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/events", `{"title":"Gym","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/events", "")
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestAgenda_InvalidatedOnNewEvent(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/agenda?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AgendaResponse](t, rec).Occurrences)

	body := `{"title":"Gym","description":"Leg day","startDate":"2025-06-02T18:00:00Z","endDate":"2025-06-02T19:00:00Z"}`
	rec = do(t, h, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/agenda?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	agenda := decode[AgendaResponse](t, rec)
	require.Len(t, agenda.Occurrences, 1)
	occ := agenda.Occurrences[0]
	assert.Equal(t, "Gym", occ.Summary)
	assert.Equal(t, "Leg day", occ.Description)
	assert.True(t, occ.Start.Equal(time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, "UTC", agenda.DisplayTimeZone)
}

func TestAgenda_WindowExcludesFarEvents(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body := `{"title":"Trip","description":"Lisbon","startDate":"2025-07-01T08:00:00Z","endDate":"2025-07-05T08:00:00Z"}`
	rec := do(t, h, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/agenda?days=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AgendaResponse](t, rec).Occurrences)

	rec = do(t, h, http.MethodGet, "/api/agenda?days=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AgendaResponse](t, rec).Occurrences, 1)
}

func TestAgenda_CalendarDisabled(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Calendar.Enabled = false }).Handler()

	rec := do(t, h, http.MethodGet, "/api/agenda", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodDelete, "/api/wishes", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, parseIntDefault("", 7))
	assert.Equal(t, 7, parseIntDefault("x", 7))
	assert.Equal(t, 3, parseIntDefault("3", 7))
}

func TestAgenda_ReflectsSync(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	start := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	_, err := s.app.Service.EventList().Append(model.Event{
		Title: "Gym", Description: "Leg day", StartDate: start, EndDate: start.Add(time.Hour),
	})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/agenda", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AgendaResponse](t, rec).Occurrences)

	added, err := s.app.Syncer.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, added)

	rec = do(t, h, http.MethodGet, "/api/agenda", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AgendaResponse](t, rec).Occurrences, 1)
}

func TestAgenda_RequestBetweenSaveAndMirrorIsNotCached(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	var during []OccurrenceDTO
	cancel := s.app.Service.EventList().Subscribe(store.ObserverFunc[model.Event](
		func(string, int, model.Event) {
			rec := do(t, h, http.MethodGet, "/api/agenda", "")
			during = decode[AgendaResponse](t, rec).Occurrences
		},
	))
	defer cancel()

	body := `{"title":"Gym","description":"Leg day","startDate":"2025-06-02T18:00:00Z","endDate":"2025-06-02T19:00:00Z"}`
	rec := do(t, h, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, during, "calendar file is written after the save")

	rec = do(t, h, http.MethodGet, "/api/agenda", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AgendaResponse](t, rec).Occurrences, 1)
}

func TestAgenda_QueryIsClamped(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	for _, q := range []string{"days=1000&backfill=5000", "days=2000&backfill=9999", "days=366&backfill=366"} {
		rec := do(t, h, http.MethodGet, "/api/agenda?"+q, "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[AgendaResponse](t, rec)
		assert.True(t, resp.RangeEnd.Equal(fixedNow.AddDate(0, 0, maxAgendaDays)), q)
		assert.True(t, resp.RangeStart.Equal(fixedNow.AddDate(0, 0, -maxAgendaDays)), q)
	}

	s.agendaMu.RLock()
	defer s.agendaMu.RUnlock()
	assert.Len(t, s.agendaCache, 1)
}
