package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
	"github.com/lysyi3m/content-hub/app/importer"
	"github.com/lysyi3m/content-hub/app/tasks"
)

// Mock implementations for testing
type mockStore struct {
	items       []database.ContentItem
	sources     []database.ContentSource
	lastFilter  database.ContentFilter
	deleted     []string
	deleteErr   error
	listErr     error
	contentSize int
}

func (m *mockStore) ListContentSources(ctx context.Context, filter database.SourceFilter) ([]database.ContentSource, error) {
	var out []database.ContentSource
	for _, s := range m.sources {
		if filter.Type == "" || s.Type == filter.Type {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteContentSource(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) ListContent(ctx context.Context, filter database.ContentFilter) ([]database.ContentItem, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.items, nil
}

func (m *mockStore) CountContent(ctx context.Context) (int, error) {
	return m.contentSize, nil
}

type mockAuth struct {
	sessions map[string]*auth.User
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	if email == "admin@example.com" && password == "secret" {
		return &auth.Session{ID: "admin-token", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, auth.ErrInvalidCredentials
}

func (m *mockAuth) Logout(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *mockAuth) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	if user, ok := m.sessions[token]; ok {
		return user, nil
	}
	return nil, auth.ErrSessionNotFound
}

type mockScheduler struct {
	mu      sync.Mutex
	tasks   []tasks.TaskInterface
	failing bool
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("task queue is full")
	}
	m.tasks = append(m.tasks, task)
	return nil
}

type mockParser struct {
	resp *feed.ParseResponse
	err  error
	req  feed.ParseRequest
}

func (m *mockParser) Parse(ctx context.Context, req feed.ParseRequest) (*feed.ParseResponse, error) {
	m.req = req
	return m.resp, m.err
}

type mockPresets struct {
	entries map[feed.Kind][]feed.Entry
}

func (m *mockPresets) GetPreset(kind feed.Kind) []feed.Entry {
	return m.entries[kind]
}

func (m *mockPresets) GetPresetCount() int {
	return len(m.entries)
}

type mockChecker struct {
	status string
}

func (m mockChecker) Health(ctx context.Context) map[string]any {
	return map[string]any{"status": m.status}
}

type testEnv struct {
	handler   *Handler
	router    *gin.Engine
	store     *mockStore
	parser    *mockParser
	scheduler *mockScheduler
	wordpress *importer.Importer
	recorder  *importer.Recorder
}

func newTestEnv(t *testing.T, functionKey string) *testEnv {
	t.Helper()

	store := &mockStore{contentSize: 3}
	authenticator := &mockAuth{sessions: map[string]*auth.User{
		"admin-token": {ID: "u1", Email: "admin@example.com", IsAdmin: true},
		"user-token":  {ID: "u2", Email: "user@example.com"},
	}}
	parser := &mockParser{resp: &feed.ParseResponse{Items: []feed.ParsedItem{}}}
	scheduler := &mockScheduler{}
	recorder := importer.NewRecorder(10, nil)
	presets := &mockPresets{entries: map[feed.Kind][]feed.Entry{
		feed.KindWordPress: {{Name: "Preset Blog", URL: "https://blog.example.com/feed", DisplaySummary: true}},
	}}

	wordpress := importer.NewImporter(feed.KindWordPress, nil, parser, recorder, time.Second, time.Minute)
	podcast := importer.NewImporter(feed.KindPodcast, nil, parser, recorder, time.Second, time.Minute)

	handler := NewHandler(store, authenticator, parser, []*importer.Importer{wordpress, podcast},
		presets, recorder, scheduler, "test", "https://hub.example.com")

	return &testEnv{
		handler:   handler,
		router:    NewServer(handler, functionKey),
		store:     store,
		parser:    parser,
		scheduler: scheduler,
		wordpress: wordpress,
		recorder:  recorder,
	}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["content"] != float64(3) {
		t.Errorf("Expected content count 3, got %v", body["content"])
	}
	if body["loaded_presets"] != float64(1) {
		t.Errorf("Expected 1 loaded preset, got %v", body["loaded_presets"])
	}
}

func TestGetHealthDegraded(t *testing.T) {
	env := newTestEnv(t, "")
	env.handler.AddHealthCheck("redis", mockChecker{status: "unhealthy"})

	w := env.do(http.MethodGet, "/health", "", nil)
	body := decode(t, w)
	if body["status"] != "degraded" {
		t.Errorf("Expected status degraded, got %v", body["status"])
	}
	redis, ok := body["redis"].(map[string]any)
	if !ok || redis["status"] != "unhealthy" {
		t.Errorf("Expected redis report, got %v", body["redis"])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodOptions, "/functions/parse-feed", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Allow-Origin *, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
		t.Errorf("Expected Allow-Headers %q, got %q", corsAllowHeaders, got)
	}
}

func TestParseFeed(t *testing.T) {
	env := newTestEnv(t, "")
	env.parser.resp = &feed.ParseResponse{Items: []feed.ParsedItem{{Title: "Episode 1", GUID: "ep-1"}}}

	w := env.do(http.MethodPost, "/functions/parse-feed", "", map[string]any{"url": "https://example.com/feed"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.parser.req.URL != "https://example.com/feed" {
		t.Errorf("Expected parser to receive the URL, got %q", env.parser.req.URL)
	}

	var resp feed.ParseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Episode 1" {
		t.Errorf("Expected one item titled Episode 1, got %+v", resp.Items)
	}
}

func TestParseFeedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"no url", &feed.Error{Kind: feed.ErrNoURLProvided, Message: "No URL provided"}, http.StatusBadRequest},
		{"timeout", &feed.Error{Kind: feed.ErrFetchTimeout, Message: "Feed request timed out"}, http.StatusGatewayTimeout},
		{"too large", &feed.Error{Kind: feed.ErrFeedTooLarge, Message: "Feed too large"}, http.StatusRequestEntityTooLarge},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.parser.err = tt.err

			w := env.do(http.MethodPost, "/functions/parse-feed", "", map[string]any{"url": "x"})
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
			body := decode(t, w)
			if body["error"] != tt.err.Error() {
				t.Errorf("Expected error %q, got %v", tt.err.Error(), body["error"])
			}
		})
	}
}

func TestParseFeedFunctionKey(t *testing.T) {
	env := newTestEnv(t, "fn-key")

	w := env.do(http.MethodPost, "/functions/parse-feed", "", map[string]any{"url": "https://example.com/feed"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/functions/parse-feed", "wrong", map[string]any{"url": "https://example.com/feed"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/functions/parse-feed", "fn-key", map[string]any{"url": "https://example.com/feed"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/functions/parse-feed", strings.NewReader(`{"url":"https://example.com/feed"}`))
	req.Header.Set("apikey", "fn-key")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with apikey header, got %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body := decode(t, w); body["token"] != "admin-token" {
		t.Errorf("Expected token admin-token, got %v", body["token"])
	}

	w = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing password, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/auth/logout", "admin-token", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/admin/sources", "admin-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 after logout, got %d", w.Code)
	}
}

func TestListContent(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.items = []database.ContentItem{{ID: "c1", Type: "blog", Title: "Hello"}}

	w := env.do(http.MethodGet, "/api/content?type=blog&q=hel&limit=10&offset=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	f := env.store.lastFilter
	if f.Type != "blog" || f.Query != "hel" || f.Limit != 10 || f.Offset != 5 {
		t.Errorf("Unexpected filter: %+v", f)
	}

	body := decode(t, w)
	if body["total"] != float64(1) {
		t.Errorf("Expected total 1, got %v", body["total"])
	}
}

func TestListContentDefaults(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/content", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if env.store.lastFilter.Type != "all" {
		t.Errorf("Expected type all, got %q", env.store.lastFilter.Type)
	}
	if env.store.lastFilter.Limit != 50 {
		t.Errorf("Expected default limit 50, got %d", env.store.lastFilter.Limit)
	}
}

func TestListContentInvalidQuery(t *testing.T) {
	env := newTestEnv(t, "")

	for _, path := range []string{
		"/api/content?type=article",
		"/api/content?limit=0",
		"/api/content?limit=abc",
		"/api/content?offset=-1",
	} {
		w := env.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %s, got %d", path, w.Code)
		}
	}
}

func TestListContentStoreError(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.listErr = errors.New("database is locked")

	w := env.do(http.MethodGet, "/api/content", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestContentRSS(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.items = []database.ContentItem{{
		ID:          "c1",
		Type:        "podcast",
		Title:       "Episode <1>",
		ContentURL:  "https://pod.example.com/1.mp3",
		ExternalID:  "ep-1",
		PublishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	w := env.do(http.MethodGet, "/api/content/rss?type=podcast", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Expected RSS content type, got %q", ct)
	}

	rss := w.Body.String()
	if !strings.Contains(rss, "<title>Episode &lt;1&gt;</title>") {
		t.Error("RSS should contain the escaped item title")
	}
	if !strings.Contains(rss, `<guid isPermaLink="false">ep-1</guid>`) {
		t.Error("RSS should use the external id as guid")
	}
	if !strings.Contains(rss, "https://hub.example.com/api/content/rss?type=podcast") {
		t.Error("RSS should contain the self link")
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/admin/sources", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/admin/sources", "user-token", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-admin, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/admin/sources", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin, got %d", w.Code)
	}
}

func TestListSources(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.sources = []database.ContentSource{
		{ID: "s1", Type: "wordpress", Name: "Blog"},
		{ID: "s2", Type: "podcast", Name: "Show"},
	}

	w := env.do(http.MethodGet, "/api/admin/sources?type=podcast", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body := decode(t, w); body["total"] != float64(1) {
		t.Errorf("Expected 1 podcast source, got %v", body["total"])
	}
}

func TestDeleteSource(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodDelete, "/api/admin/sources/s1", "admin-token", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != "s1" {
		t.Errorf("Expected s1 to be deleted, got %v", env.store.deleted)
	}

	env.store.deleteErr = database.ErrNotFound
	w = env.do(http.MethodDelete, "/api/admin/sources/missing", "admin-token", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestImportFeedEditing(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/admin/import/wordpress", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/admin/import/wordpress/feeds", "admin-token", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	if got := len(env.wordpress.Snapshot().Feeds); got != 2 {
		t.Fatalf("Expected 2 feeds, got %d", got)
	}

	w = env.do(http.MethodPatch, "/api/admin/import/wordpress/feeds/1", "admin-token",
		map[string]any{"field": "url", "value": "https://blog.example.com/feed"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPatch, "/api/admin/import/wordpress/feeds/1", "admin-token",
		map[string]any{"field": "displaySummary", "value": false})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	entry := env.wordpress.Snapshot().Feeds[1]
	if entry.URL != "https://blog.example.com/feed" || entry.DisplaySummary {
		t.Errorf("Unexpected entry after update: %+v", entry)
	}

	w = env.do(http.MethodDelete, "/api/admin/import/wordpress/feeds/0", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := len(env.wordpress.Snapshot().Feeds); got != 1 {
		t.Errorf("Expected 1 feed after removal, got %d", got)
	}
}

func TestImportFeedEditingErrors(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		expected int
	}{
		{"unknown kind", http.MethodGet, "/api/admin/import/youtube", nil, http.StatusNotFound},
		{"index out of range", http.MethodPatch, "/api/admin/import/wordpress/feeds/7", map[string]any{"field": "name", "value": "x"}, http.StatusNotFound},
		{"bad index", http.MethodPatch, "/api/admin/import/wordpress/feeds/one", map[string]any{"field": "name", "value": "x"}, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/admin/import/wordpress/feeds/0", map[string]any{"field": "color", "value": "x"}, http.StatusBadRequest},
		{"wrong value type", http.MethodPatch, "/api/admin/import/wordpress/feeds/0", map[string]any{"field": "displaySummary", "value": "yes"}, http.StatusBadRequest},
		{"remove out of range", http.MethodDelete, "/api/admin/import/wordpress/feeds/9", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, "admin-token", tt.body)
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestLoadPreset(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/admin/import/wordpress/preset", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	feeds := env.wordpress.Snapshot().Feeds
	if len(feeds) != 1 || feeds[0].Name != "Preset Blog" {
		t.Errorf("Expected preset feeds, got %+v", feeds)
	}

	w = env.do(http.MethodPost, "/api/admin/import/podcast/preset", "admin-token", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for kind without preset, got %d", w.Code)
	}
}

func TestParseFeedsQueuesTask(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/admin/import/wordpress/parse", "user-token", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	if len(env.scheduler.tasks) != 1 {
		t.Fatalf("Expected 1 queued task, got %d", len(env.scheduler.tasks))
	}
	task := env.scheduler.tasks[0]
	if task.GetType() != tasks.TaskTypeImportFeeds {
		t.Errorf("Expected import task, got %s", task.GetType())
	}
	if task.GetSubject() != string(feed.KindWordPress) {
		t.Errorf("Expected subject wordpress, got %s", task.GetSubject())
	}

	body := decode(t, w)
	if body["task_id"] != task.GetID() {
		t.Errorf("Expected task_id %s, got %v", task.GetID(), body["task_id"])
	}
}

func TestParseFeedsQueueFull(t *testing.T) {
	env := newTestEnv(t, "")
	env.scheduler.failing = true

	w := env.do(http.MethodPost, "/api/admin/import/podcast/parse", "admin-token", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestListNotifications(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/admin/notifications", "admin-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decode(t, w)
	list, ok := body["notifications"].([]any)
	if !ok || len(list) != 0 {
		t.Errorf("Expected empty notifications list, got %v", body["notifications"])
	}

	env.recorder.Notify(importer.Notification{Title: "Success", Description: "done"})

	w = env.do(http.MethodGet, "/api/admin/notifications", "admin-token", nil)
	body = decode(t, w)
	list, _ = body["notifications"].([]any)
	if len(list) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(list))
	}
}
