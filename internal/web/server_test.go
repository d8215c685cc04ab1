package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/internal/services"
	"mychat/internal/session"
	"mychat/internal/testutils"
	"mychat/pkg/chattypes"
)

type stubModels struct{}

func (stubModels) ModelFor(tier chattypes.Tier, temperature float64) (chattypes.ModelConfig, error) {
	models := map[chattypes.Tier]string{
		chattypes.TierFast:     "gpt-3.5-turbo-0613",
		chattypes.TierAdvanced: "gpt-4",
	}
	return chattypes.ModelConfig{Tier: tier, Provider: "openai", Model: models[tier], Temperature: temperature}, nil
}

func (stubModels) TierLabel(tier chattypes.Tier) string {
	if tier == chattypes.TierAdvanced {
		return "GPT-4"
	}
	return "GPT-3.5"
}

type testServer struct {
	handler   http.Handler
	store     *Store
	completer *testutils.FakeCompleter
	cookie    *http.Cookie
}

func newTestServer(t *testing.T, completer *testutils.FakeCompleter, opts StoreOptions) *testServer {
	t.Helper()
	if opts.NewID == nil {
		opts.NewID = testutils.DeterministicIDs()
	}
	store := NewStore(opts)
	srv, err := NewServer(Options{Store: store, Completer: completer, Models: stubModels{}, Version: "0.1.0"})
	require.NoError(t, err)
	return &testServer{handler: srv.Handler(), store: store, completer: completer}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			ts.cookie = c
		}
	}
	return rec
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func chatRequest(message, model, temperature string) *http.Request {
	form := url.Values{"message": {message}, "model": {model}, "temperature": {temperature}}
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (ts *testServer) chat(message, model, temperature string) *httptest.ResponseRecorder {
	return ts.do(chatRequest(message, model, temperature))
}

func (ts *testServer) snapshot(t *testing.T) session.Snapshot {
	t.Helper()
	rec := ts.get("/api/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func TestServer_Index(t *testing.T) {
	ts := newTestServer(t, testutils.NewFakeCompleter(), StoreOptions{})

	rec := ts.get("/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<title>My ChatGPT</title>")
	assert.Contains(t, body, "Options")
	assert.Contains(t, body, "GPT-3.5")
	assert.Contains(t, body, "GPT-4")
	assert.Contains(t, body, "Clear Conversation")
	assert.Contains(t, body, "System message: You are a helpful assistant.")
	assert.Contains(t, body, "Total cost: $0.00000")
	assert.Contains(t, body, `value="fast" checked`)
	assert.Contains(t, body, `step="0.1" value="0.0"`)
}

func TestServer_PageViewsDoNotCreateSessions(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "hi", Cost: 0.001})
	ts := newTestServer(t, completer, StoreOptions{})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, ts.get("/").Code)
	}
	assert.Len(t, ts.snapshot(t).History, 1)
	assert.Equal(t, http.StatusSeeOther, ts.do(httptest.NewRequest(http.MethodPost, "/reset", nil)).Code)
	assert.Nil(t, ts.cookie)
	assert.Equal(t, 0, ts.store.Len())

	require.Equal(t, http.StatusSeeOther, ts.chat("hello", "fast", "0").Code)
	require.NotNil(t, ts.cookie)
	assert.True(t, ts.cookie.HttpOnly)
	assert.Equal(t, 1, ts.store.Len())

	rec := ts.get("/")
	assert.Contains(t, rec.Body.String(), "Total cost: $0.00100")
	assert.Equal(t, 1, ts.store.Len())
}

func TestServer_UnknownPath(t *testing.T) {
	ts := newTestServer(t, testutils.NewFakeCompleter(), StoreOptions{})
	assert.Equal(t, http.StatusNotFound, ts.get("/nope").Code)
}

func TestServer_ChatRoundTrip(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "hi there", Cost: 0.0021})
	ts := newTestServer(t, completer, StoreOptions{})

	rec := ts.chat("hello", "fast", "0.5")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	calls := completer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gpt-3.5-turbo-0613", calls[0].Model.Model)
	assert.Equal(t, 0.5, calls[0].Model.Temperature)
	assert.Equal(t, []chattypes.Message{
		chattypes.SystemMessage(session.DefaultSystemPrompt),
		chattypes.UserMessage("hello"),
	}, calls[0].History)

	snap := ts.snapshot(t)
	assert.Equal(t, []chattypes.Message{
		chattypes.SystemMessage(session.DefaultSystemPrompt),
		chattypes.UserMessage("hello"),
		chattypes.AssistantMessage("hi there"),
	}, snap.History)
	assert.Equal(t, []float64{0.0021}, snap.Costs)
	assert.InDelta(t, 0.0021, snap.TotalCost, 1e-12)

	body := ts.get("/").Body.String()
	assert.Contains(t, body, "Total cost: $0.00210")
	assert.Contains(t, body, "- $0.00210")
	assert.Contains(t, body, "hi there")
	assert.Contains(t, body, `step="0.1" value="0.5"`, "selection is remembered")
}

func TestServer_ChatRendersMarkdown(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "**bold** <script>x</script>", Cost: 0.001})
	markdown := services.NewMarkdownService("notty", 80)
	require.NoError(t, markdown.Initialize())

	store := NewStore(StoreOptions{NewID: testutils.DeterministicIDs()})
	srv, err := NewServer(Options{Store: store, Completer: completer, Models: stubModels{}, Markdown: markdown})
	require.NoError(t, err)
	ts := &testServer{handler: srv.Handler(), store: store, completer: completer}

	require.Equal(t, http.StatusSeeOther, ts.chat("hello", "advanced", "1.0").Code)
	body := ts.get("/").Body.String()
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>x</script>")
}

func TestServer_ChatEscapesWithoutMarkdown(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "<b>raw</b>", Cost: 0.001})
	ts := newTestServer(t, completer, StoreOptions{})

	require.Equal(t, http.StatusSeeOther, ts.chat("hello", "fast", "0").Code)
	body := ts.get("/").Body.String()
	assert.Contains(t, body, "&lt;b&gt;raw&lt;/b&gt;")
}

func TestServer_ChatValidation(t *testing.T) {
	tests := []struct {
		name        string
		model       string
		temperature string
	}{
		{"unknown tier", "turbo", "0.5"},
		{"temperature too high", "fast", "2.1"},
		{"negative temperature", "advanced", "-0.1"},
		{"temperature not a number", "fast", "warm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "unused"})
			ts := newTestServer(t, completer, StoreOptions{})

			rec := ts.chat("hello", tt.model, tt.temperature)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, completer.Calls())
		})
	}
}

func TestServer_EmptyMessageIsIgnored(t *testing.T) {
	completer := testutils.NewFakeCompleter()
	ts := newTestServer(t, completer, StoreOptions{})

	rec := ts.chat("   ", "fast", "0")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, completer.Calls())
	assert.Len(t, ts.snapshot(t).History, 1)
}

func TestServer_CompletionFailure(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Err: &chattypes.CompletionServiceError{
		Provider: "openai", Model: "gpt-4", Kind: chattypes.KindRateLimited, StatusCode: 429, Err: errors.New("slow down"),
	}})
	ts := newTestServer(t, completer, StoreOptions{})

	rec := ts.chat("hello", "advanced", "0")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "rate limiting")

	snap := ts.snapshot(t)
	assert.Empty(t, snap.Costs)
	assert.Equal(t, 0.0, snap.TotalCost)
	require.Len(t, snap.History, 2)
	assert.Equal(t, chattypes.RoleUser, snap.History[1].Role)
}

func TestServer_ConcurrentSubmissionConflict(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "first", Cost: 0.001}).Blocking()
	ts := newTestServer(t, completer, StoreOptions{})
	_, id := ts.store.Get("")
	cookie := &http.Cookie{Name: SessionCookie, Value: id}
	ts.cookie = cookie

	var wg sync.WaitGroup
	first := httptest.NewRecorder()
	wg.Add(1)
	go func() {
		defer wg.Done()
		req := chatRequest("hello", "fast", "0")
		req.AddCookie(cookie)
		ts.handler.ServeHTTP(first, req)
	}()
	<-completer.Entered()

	second := ts.chat("again", "fast", "0")
	assert.Equal(t, http.StatusConflict, second.Code)

	completer.Release()
	wg.Wait()
	assert.Equal(t, http.StatusSeeOther, first.Code)

	snap := ts.snapshot(t)
	assert.Len(t, snap.History, 3)
	assert.Equal(t, []float64{0.001}, snap.Costs)
}

func TestServer_SessionsAreIndependent(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "hi", Cost: 0.001})
	ts := newTestServer(t, completer, StoreOptions{})
	require.Equal(t, http.StatusSeeOther, ts.chat("hello", "fast", "0").Code)

	other := &testServer{handler: ts.handler}
	assert.Len(t, other.snapshot(t).History, 1)
	assert.Len(t, ts.snapshot(t).History, 3)
	assert.Equal(t, 1, ts.store.Len())
}

func TestServer_Reset(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "hi", Cost: 0.001})
	ts := newTestServer(t, completer, StoreOptions{})
	require.Equal(t, http.StatusSeeOther, ts.chat("hello", "fast", "0").Code)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	snap := ts.snapshot(t)
	assert.Equal(t, []chattypes.Message{chattypes.SystemMessage(session.DefaultSystemPrompt)}, snap.History)
	assert.Empty(t, snap.Costs)
}

func TestServer_RateLimit(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "one", Cost: 0.001}, testutils.FakeReply{Text: "two", Cost: 0.001})
	ts := newTestServer(t, completer, StoreOptions{RatePerMinute: 1, Burst: 1})

	assert.Equal(t, http.StatusSeeOther, ts.chat("hello", "fast", "0").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.chat("again", "fast", "0").Code)
	assert.Len(t, completer.Calls(), 1)
}

func TestServer_RateLimitCountsOnlySentMessages(t *testing.T) {
	completer := testutils.NewFakeCompleter(testutils.FakeReply{Text: "one", Cost: 0.001}, testutils.FakeReply{Text: "two", Cost: 0.001}).Blocking()
	ts := newTestServer(t, completer, StoreOptions{RatePerMinute: 1, Burst: 2})
	_, id := ts.store.Get("")
	cookie := &http.Cookie{Name: SessionCookie, Value: id}
	ts.cookie = cookie

	assert.Equal(t, http.StatusSeeOther, ts.chat("  ", "fast", "0").Code, "empty message")

	var wg sync.WaitGroup
	first := httptest.NewRecorder()
	wg.Add(1)
	go func() {
		defer wg.Done()
		req := chatRequest("hello", "fast", "0")
		req.AddCookie(cookie)
		ts.handler.ServeHTTP(first, req)
	}()
	<-completer.Entered()
	assert.Equal(t, http.StatusConflict, ts.chat("again", "fast", "0").Code)

	completer.Release()
	wg.Wait()
	require.Equal(t, http.StatusSeeOther, first.Code)

	// The empty and conflicting submissions left the second token unspent.
	assert.Equal(t, http.StatusSeeOther, ts.chat("second", "fast", "0").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.chat("third", "fast", "0").Code)
	assert.Len(t, completer.Calls(), 2)
	assert.Equal(t, []float64{0.001, 0.001}, ts.snapshot(t).Costs)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, testutils.NewFakeCompleter(), StoreOptions{})
	rec := ts.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "0.1.0", body["version"])
	assert.Equal(t, false, body["development"])
	assert.Contains(t, body, "catalog_version")
	assert.EqualValues(t, 0, body["sessions"])

	assert.Equal(t, http.StatusNotFound, ts.get("/api/debug").Code, "debug route needs a recorder")
}

type stubRecorder struct{ data string }

func (s stubRecorder) CapturedJSON() (string, error) { return s.data, nil }

func TestServer_DebugTraffic(t *testing.T) {
	store := NewStore(StoreOptions{NewID: testutils.DeterministicIDs()})
	srv, err := NewServer(Options{
		Store:          store,
		Completer:      testutils.NewFakeCompleter(),
		Models:         stubModels{},
		Debug:          stubRecorder{data: `[{"method":"POST"}]`},
		Development:    true,
		CatalogVersion: "2025-06",
	})
	require.NoError(t, err)
	ts := &testServer{handler: srv.Handler(), store: store}

	rec := ts.get("/api/debug")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"method":"POST"}]`, rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(ts.get("/health").Body.Bytes(), &body))
	assert.Equal(t, true, body["development"])
	assert.Equal(t, "2025-06", body["catalog_version"])
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestParseSelection(t *testing.T) {
	tier, temp, err := parseSelection("", "")
	require.NoError(t, err)
	assert.Equal(t, chattypes.TierFast, tier)
	assert.Equal(t, 0.0, temp)

	tier, temp, err = parseSelection("Advanced", "2.0")
	require.NoError(t, err)
	assert.Equal(t, chattypes.TierAdvanced, tier)
	assert.Equal(t, 2.0, temp)

	_, _, err = parseSelection("gpt-5", "1")
	assert.ErrorIs(t, err, chattypes.ErrUnknownTier)

	_, _, err = parseSelection("fast", "NaN")
	assert.ErrorIs(t, err, chattypes.ErrTemperatureRange)
}
