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

	"github.com/gorilla/websocket"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/ledger"
	"github.com/quantumlife/lifectx/internal/reminders"
	"github.com/quantumlife/lifectx/internal/scheduler"
	"github.com/quantumlife/lifectx/internal/storage"
	"github.com/quantumlife/lifectx/internal/store"
)

var testNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

// switchBackend is a Memory backend that can be made unavailable
type switchBackend struct {
	*storage.Memory
	mu   sync.Mutex
	down bool
}

func (b *switchBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *switchBackend) isDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.down
}

func (b *switchBackend) LoadCollection(ctx context.Context, key string) ([]byte, error) {
	if b.isDown() {
		return nil, errors.New("backend down")
	}
	return b.Memory.LoadCollection(ctx, key)
}

func (b *switchBackend) SaveCollection(ctx context.Context, key string, doc []byte) error {
	if b.isDown() {
		return errors.New("backend down")
	}
	return b.Memory.SaveCollection(ctx, key, doc)
}

type testEnv struct {
	srv     *Server
	backend *switchBackend
	ledger  *ledger.Store
}

// testServer creates a server over in-memory stores and an in-memory ledger
func testServer(t *testing.T, mods ...func(*Config)) *testEnv {
	t.Helper()

	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	backend := &switchBackend{Memory: storage.NewMemory()}
	clock := func() time.Time { return testNow }
	opts := []store.Option{store.WithClock(clock)}

	tasks := store.NewTaskStore(backend, opts...)
	contexts := store.NewContextStore(backend, opts...)
	events := store.NewEventStore(backend, opts...)

	ledgerStore := ledger.NewStore(db.Conn())
	rec := ledger.NewRecorder(ledgerStore, ledger.ActorUser)
	tasks.Subscribe(rec.Observe)
	contexts.Subscribe(rec.Observe)
	events.Subscribe(rec.Observe)

	cfg := Config{
		Tasks:       tasks,
		Contexts:    contexts,
		Events:      events,
		LedgerStore: ledgerStore,
		Now:         clock,
	}
	for _, mod := range mods {
		mod(&cfg)
	}
	srv := New(cfg)
	t.Cleanup(func() {
		for _, unsub := range srv.unsubs {
			unsub()
		}
		srv.wsHub.Stop()
	})

	return &testEnv{srv: srv, backend: backend, ledger: ledgerStore}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

// --- Tasks ---

func TestAPI_TaskLifecycle(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/tasks", map[string]interface{}{
		"title":    "Buy wedding gift",
		"category": "social",
	})
	expectStatus(t, rr, http.StatusCreated)
	created := decodeBody[core.Task](t, rr)

	if created.Status != core.TaskDraft || created.Priority != core.PriorityMedium {
		t.Errorf("defaults not applied: %+v", created)
	}
	if !created.CreatedAt.Equal(testNow) || !created.UpdatedAt.Equal(created.CreatedAt) {
		t.Errorf("timestamps = %v/%v, want %v", created.CreatedAt, created.UpdatedAt, testNow)
	}

	rr = env.do(t, "GET", "/api/v1/tasks/"+created.ID, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, "PATCH", "/api/v1/tasks/"+created.ID, map[string]interface{}{"status": "active"})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[core.Task](t, rr); got.Status != core.TaskActive || got.Title != created.Title {
		t.Errorf("update result = %+v", got)
	}

	rr = env.do(t, "POST", "/api/v1/tasks/"+created.ID+"/toggle", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[core.Task](t, rr); got.Status != core.TaskCompleted {
		t.Errorf("toggle status = %s, want completed", got.Status)
	}

	rr = env.do(t, "DELETE", "/api/v1/tasks/"+created.ID, nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = env.do(t, "GET", "/api/v1/tasks/"+created.ID, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestAPI_CreateTask_Validation(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": "  "})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/v1/tasks", `{"title": "x", "colour": "red"}`)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/v1/tasks", `not json`)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestAPI_UpdateTask_NotFound(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "PATCH", "/api/v1/tasks/missing", map[string]string{"title": "x"})
	expectStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "DELETE", "/api/v1/tasks/missing", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestAPI_ListTasks_FilterAndSort(t *testing.T) {
	env := testServer(t)

	for _, in := range []map[string]string{
		{"title": "low one", "priority": "low", "status": "active"},
		{"title": "urgent one", "priority": "urgent", "status": "active"},
		{"title": "high draft", "priority": "high"},
		{"title": "medium one", "priority": "medium", "status": "active"},
	} {
		expectStatus(t, env.do(t, "POST", "/api/v1/tasks", in), http.StatusCreated)
	}

	rr := env.do(t, "GET", "/api/v1/tasks?status=active&sort_by=priority&sort_order=desc", nil)
	expectStatus(t, rr, http.StatusOK)
	got := decodeBody[[]core.Task](t, rr)

	var titles []string
	for _, task := range got {
		titles = append(titles, task.Title)
	}
	want := []string{"urgent one", "medium one", "low one"}
	if strings.Join(titles, ",") != strings.Join(want, ",") {
		t.Errorf("titles = %v, want %v", titles, want)
	}

	rr = env.do(t, "GET", "/api/v1/tasks?search=DRAFT", nil)
	if got := decodeBody[[]core.Task](t, rr); len(got) != 1 || got[0].Title != "high draft" {
		t.Errorf("search result = %+v", got)
	}

	rr = env.do(t, "GET", "/api/v1/tasks?sort_by=title", nil)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "GET", "/api/v1/tasks?from=yesterday", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Store state ---

func TestAPI_StorageFailure(t *testing.T) {
	env := testServer(t)

	env.backend.setDown(true)
	rr := env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": "will fail"})
	expectStatus(t, rr, http.StatusServiceUnavailable)

	rr = env.do(t, "GET", "/api/v1/stores", nil)
	expectStatus(t, rr, http.StatusOK)
	stores := decodeBody[[]storeStatus](t, rr)
	if len(stores) != 3 {
		t.Fatalf("expected 3 stores, got %d", len(stores))
	}
	if stores[0].Family != "task" || stores[0].LastError == "" || stores[0].Count != 0 {
		t.Errorf("task store status = %+v", stores[0])
	}

	rr = env.do(t, "POST", "/api/v1/stores/reload", nil)
	expectStatus(t, rr, http.StatusServiceUnavailable)

	env.backend.setDown(false)
	rr = env.do(t, "DELETE", "/api/v1/stores/task/error", nil)
	expectStatus(t, rr, http.StatusNoContent)

	stores = decodeBody[[]storeStatus](t, env.do(t, "GET", "/api/v1/stores", nil))
	if stores[0].LastError != "" {
		t.Errorf("error not cleared: %+v", stores[0])
	}

	rr = env.do(t, "DELETE", "/api/v1/stores/widgets/error", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestAPI_Reload(t *testing.T) {
	env := testServer(t)

	expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": "persisted"}), http.StatusCreated)

	rr := env.do(t, "POST", "/api/v1/stores/reload", nil)
	expectStatus(t, rr, http.StatusOK)
	stores := decodeBody[[]storeStatus](t, rr)
	if stores[0].Count != 1 {
		t.Errorf("task count after reload = %d, want 1", stores[0].Count)
	}
}

// --- Contexts ---

func TestAPI_CaptureContext(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/contexts/capture", map[string]interface{}{
		"source": "chat",
		"payload": map[string]interface{}{
			"platform":        "kakao",
			"sender":          "Minji",
			"message":         "Wedding on 2025-07-05, please come!",
			"conversation_id": "c-1",
		},
	})
	expectStatus(t, rr, http.StatusCreated)
	c := decodeBody[core.Context](t, rr)

	if c.Status != core.ContextCompleted {
		t.Errorf("status = %s, want completed", c.Status)
	}
	if c.Data == nil || c.Data.Source() != core.SourceChat {
		t.Fatalf("data = %#v, want chat payload", c.Data)
	}
	if len(c.Entities) != 1 || c.Entities[0].Type != core.EntityDate || c.Entities[0].Text != "2025-07-05" {
		t.Errorf("entities = %+v", c.Entities)
	}

	rr = env.do(t, "GET", "/api/v1/contexts?source=chat&search=minji", nil)
	if got := decodeBody[[]core.Context](t, rr); len(got) != 1 {
		t.Errorf("expected 1 context, got %d", len(got))
	}
}

func TestAPI_CreateContext_ThenProcess(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/contexts", map[string]interface{}{
		"data": map[string]interface{}{
			"source":  "manual",
			"payload": map[string]interface{}{"content": "dinner 3월 5일", "tags": []string{"family"}},
		},
	})
	expectStatus(t, rr, http.StatusCreated)
	c := decodeBody[core.Context](t, rr)
	if c.Status != core.ContextPending {
		t.Fatalf("status = %s, want pending", c.Status)
	}

	rr = env.do(t, "POST", "/api/v1/contexts/"+c.ID+"/extract", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[core.Context](t, rr); got.Status != core.ContextCompleted || len(got.Entities) != 1 {
		t.Errorf("extract result = %+v", got)
	}

	// Changing the capture source is rejected
	rr = env.do(t, "PATCH", "/api/v1/contexts/"+c.ID, map[string]interface{}{
		"data": map[string]interface{}{
			"source":  "voice",
			"payload": map[string]interface{}{"audio_path": "/a.m4a"},
		},
	})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestAPI_CreateContext_UnknownSource(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/contexts/capture", map[string]interface{}{
		"source":  "fax",
		"payload": map[string]interface{}{},
	})
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Events ---

func createEvent(t *testing.T, env *testEnv, body map[string]interface{}) core.SocialEvent {
	t.Helper()
	rr := env.do(t, "POST", "/api/v1/events", body)
	expectStatus(t, rr, http.StatusCreated)
	return decodeBody[core.SocialEvent](t, rr)
}

func TestAPI_EventGiftFlow(t *testing.T) {
	env := testServer(t)

	e := createEvent(t, env, map[string]interface{}{
		"type":       "wedding",
		"title":      "Cousin's wedding",
		"event_date": "2025-07-05T12:00:00Z",
		"contact":    map[string]string{"name": "Jiwoo", "relationship": "family"},
	})
	if e.Status != core.EventPending || e.Priority != core.PriorityMedium {
		t.Errorf("defaults not applied: %+v", e)
	}

	rr := env.do(t, "GET", "/api/v1/events/"+e.ID+"/gift", nil)
	expectStatus(t, rr, http.StatusOK)
	suggestion := decodeBody[map[string]interface{}](t, rr)
	if suggestion["amount"] != float64(150000) {
		t.Errorf("suggested amount = %v, want 150000", suggestion["amount"])
	}

	rr = env.do(t, "POST", "/api/v1/events/"+e.ID+"/gift", nil)
	expectStatus(t, rr, http.StatusOK)
	sent := decodeBody[core.SocialEvent](t, rr)
	if !sent.GiftSent || sent.GiftSentDate == nil || !sent.GiftSentDate.Equal(testNow) {
		t.Errorf("gift not marked sent: %+v", sent)
	}
	if sent.GiftAmount == nil || *sent.GiftAmount != 150000 {
		t.Errorf("gift amount = %v, want 150000", sent.GiftAmount)
	}
}

func TestAPI_EventInvariants(t *testing.T) {
	env := testServer(t)

	e := createEvent(t, env, map[string]interface{}{
		"type":       "funeral",
		"title":      "Neighbor's father",
		"event_date": "2025-06-12T10:00:00Z",
	})

	rr := env.do(t, "PATCH", "/api/v1/events/"+e.ID, map[string]interface{}{
		"gift_sent_date": "2025-06-12T10:00:00Z",
	})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/v1/events", map[string]interface{}{"type": "wedding", "title": "no date"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "PUT", "/api/v1/events/"+e.ID+"/reminder", map[string]string{"at": "2025-06-11T09:00:00Z"})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[core.SocialEvent](t, rr); !got.ReminderSet || got.ReminderDate == nil {
		t.Errorf("reminder not set: %+v", got)
	}

	rr = env.do(t, "DELETE", "/api/v1/events/"+e.ID+"/reminder", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[core.SocialEvent](t, rr); got.ReminderSet || got.ReminderDate != nil {
		t.Errorf("reminder not cleared: %+v", got)
	}
}

func TestAPI_SyncRoutesAbsentWithoutSyncer(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/events/sync", nil)
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected sync route to be absent, got %d", rr.Code)
	}
}

// --- Stateless helpers ---

func TestAPI_RecommendGift(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		query string
		want  float64
	}{
		{"type=wedding&relationship=family", 150000},
		{"type=birthday&relationship=neighbor", 20000},
		{"type=etc&relationship=unknown_relationship", 50000},
	}

	for _, tt := range tests {
		rr := env.do(t, "GET", "/api/v1/gift/recommend?"+tt.query, nil)
		expectStatus(t, rr, http.StatusOK)
		if got := decodeBody[map[string]interface{}](t, rr)["amount"]; got != tt.want {
			t.Errorf("%s: amount = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestAPI_ParseDate(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/dates/parse", map[string]string{"text": "내일 점심"})
	expectStatus(t, rr, http.StatusOK)
	resp := decodeBody[struct {
		Found  bool `json:"found"`
		Result struct {
			ISODate    string  `json:"iso_date"`
			Confidence float64 `json:"confidence"`
		} `json:"result"`
	}](t, rr)
	if !resp.Found || resp.Result.ISODate != "2025-06-11" || resp.Result.Confidence != 0.6 {
		t.Errorf("parse result = %+v", resp)
	}

	rr = env.do(t, "POST", "/api/v1/dates/parse", map[string]string{"text": "random text"})
	expectStatus(t, rr, http.StatusOK)
	if found := decodeBody[map[string]interface{}](t, rr)["found"]; found != false {
		t.Errorf("found = %v, want false", found)
	}
}

func TestAPI_Reminders(t *testing.T) {
	env := testServer(t)

	deadline := testNow.Add(48 * time.Hour)
	expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]interface{}{
		"title":    "RSVP",
		"deadline": deadline,
	}), http.StatusCreated)
	expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]interface{}{
		"title":    "far away",
		"deadline": testNow.Add(30 * 24 * time.Hour),
	}), http.StatusCreated)

	rr := env.do(t, "GET", "/api/v1/reminders?window=72h", nil)
	expectStatus(t, rr, http.StatusOK)
	intents := decodeBody[[]reminders.Intent](t, rr)
	if len(intents) != 1 || intents[0].Title != "RSVP" {
		t.Errorf("intents = %+v", intents)
	}

	rr = env.do(t, "GET", "/api/v1/reminders?window=soon", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Ledger ---

func TestAPI_LedgerRecordsMutations(t *testing.T) {
	env := testServer(t)

	rr := env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": "audited"})
	expectStatus(t, rr, http.StatusCreated)
	task := decodeBody[core.Task](t, rr)
	expectStatus(t, env.do(t, "PATCH", "/api/v1/tasks/"+task.ID, map[string]string{"status": "active"}), http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/ledger/entity/task/"+task.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	history := decodeBody[struct {
		Count   int             `json:"count"`
		Entries []*ledger.Entry `json:"entries"`
	}](t, rr)
	if history.Count != 2 {
		t.Fatalf("history count = %d, want 2", history.Count)
	}
	if history.Entries[0].Action != "task.updated" || history.Entries[1].Action != "task.created" {
		t.Errorf("actions = %s, %s", history.Entries[0].Action, history.Entries[1].Action)
	}

	rr = env.do(t, "GET", "/api/v1/ledger/verify", nil)
	expectStatus(t, rr, http.StatusOK)
	if valid := decodeBody[map[string]interface{}](t, rr)["chain_valid"]; valid != true {
		t.Errorf("chain_valid = %v", valid)
	}

	rr = env.do(t, "GET", "/api/v1/ledger/entry/nope", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestAPI_LedgerListing(t *testing.T) {
	env := testServer(t)

	for _, title := range []string{"one", "two", "three"} {
		expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": title}), http.StatusCreated)
	}
	expectStatus(t, env.do(t, "POST", "/api/v1/dates/parse", map[string]string{"text": "no date"}), http.StatusOK)

	rr := env.do(t, "GET", "/api/v1/ledger?action=task.created&limit=2", nil)
	expectStatus(t, rr, http.StatusOK)
	page := decodeBody[struct {
		Count        int `json:"count"`
		TotalEntries int `json:"total_entries"`
	}](t, rr)
	if page.Count != 2 || page.TotalEntries != 3 {
		t.Errorf("page = %+v, want 2 of 3", page)
	}

	for _, bad := range []string{"limit=0", "limit=abc", "limit=5000", "offset=-1"} {
		expectStatus(t, env.do(t, "GET", "/api/v1/ledger?"+bad, nil), http.StatusBadRequest)
	}

	expectStatus(t, env.do(t, "GET", "/api/v1/ledger/entity/hat/x", nil), http.StatusNotFound)

	rr = env.do(t, "GET", "/api/v1/ledger/summary", nil)
	expectStatus(t, rr, http.StatusOK)
	summary := decodeBody[ledger.Summary](t, rr)
	if summary.ByAction["task.created"] != 3 || !summary.ChainValid {
		t.Errorf("summary = %+v", summary)
	}
}

// --- Jobs ---

func TestAPI_JobRoutesAbsentWithoutScheduler(t *testing.T) {
	env := testServer(t)
	expectStatus(t, env.do(t, "GET", "/api/v1/jobs", nil), http.StatusNotFound)
}

func TestAPI_Jobs(t *testing.T) {
	var runs int
	sched := scheduler.New()
	sched.Add(scheduler.Job{Name: "reminder-sweep", Every: time.Minute, Run: func(ctx context.Context) error {
		runs++
		return nil
	}})
	sched.Add(scheduler.Job{Name: "calendar-sync", Every: time.Hour, Run: func(ctx context.Context) error {
		return errors.New("calendar unreachable")
	}})
	env := testServer(t, func(c *Config) { c.Jobs = sched })

	rr := env.do(t, "GET", "/api/v1/jobs", nil)
	expectStatus(t, rr, http.StatusOK)
	if stats := decodeBody[[]scheduler.Stats](t, rr); len(stats) != 2 || stats[0].Name != "calendar-sync" {
		t.Errorf("stats = %+v", stats)
	}

	rr = env.do(t, "POST", "/api/v1/jobs/reminder-sweep/run", nil)
	expectStatus(t, rr, http.StatusOK)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if stats := decodeBody[[]scheduler.Stats](t, rr); stats[1].Runs != 1 {
		t.Errorf("reminder-sweep runs = %d, want 1", stats[1].Runs)
	}

	rr = env.do(t, "POST", "/api/v1/jobs/calendar-sync/run", nil)
	expectStatus(t, rr, http.StatusBadGateway)

	rr = env.do(t, "POST", "/api/v1/jobs/nope/run", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

// --- WebSocket ---

func dialFeed(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	go env.srv.wsHub.Run()

	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.wsHub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestAPI_AnnounceReminders(t *testing.T) {
	env := testServer(t)
	conn := dialFeed(t, env)

	expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]interface{}{
		"title":    "call the florist",
		"deadline": testNow.Add(30 * time.Minute),
	}), http.StatusCreated)

	if n := env.srv.AnnounceReminders(time.Hour); n != 1 {
		t.Fatalf("announced %d, want 1", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var created, due struct {
		Type string           `json:"type"`
		Data reminders.Intent `json:"data"`
	}
	if err := conn.ReadJSON(&created); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := conn.ReadJSON(&due); err != nil {
		t.Fatalf("read: %v", err)
	}
	if created.Type != "task.created" {
		t.Errorf("first message = %s, want task.created", created.Type)
	}
	if due.Type != "reminder.due" || due.Data.Title != "call the florist" {
		t.Errorf("reminder message = %+v", due)
	}
}

func TestAPI_WebSocketFeed(t *testing.T) {
	env := testServer(t)
	conn := dialFeed(t, env)

	expectStatus(t, env.do(t, "POST", "/api/v1/tasks", map[string]string{"title": "broadcast me"}), http.StatusCreated)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string       `json:"type"`
		Data store.Change `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "task.created" || msg.Data.Family != "task" || msg.Data.ID == "" {
		t.Errorf("message = %+v", msg)
	}
}
