package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mock-interview/internal/activity"
	"mock-interview/internal/config"
	"mock-interview/internal/domain"
	"mock-interview/internal/metrics"
	"mock-interview/internal/questions"
	"mock-interview/internal/storage"
)

type wireEvent struct {
	Seq  int             `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore, *httptest.Server) {
	t.Helper()

	app := &config.AppConfig{}
	app.Session.PersistTimeout = time.Second
	app.Activity.Interval = 5 * time.Millisecond
	app.Server.SessionTTL = time.Minute

	store := storage.NewMemoryStore()
	m := metrics.NewMetrics()
	srv := NewServer(Deps{
		App:       app,
		Interview: config.Default(),
		Questions: questions.NewService(nil, nil, m),
		InferRole: questions.InferRole,
		Store:     store,
		Metrics:   m,
	})
	ts := httptest.NewServer(New(srv))
	t.Cleanup(func() {
		ts.Close()
		srv.closeAll()
	})
	return srv, store, ts
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func dialEvents(t *testing.T, ts *httptest.Server, id string, after int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/api/sessions/%s/events?after=%d", id, after)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(wireEvent) bool) wireEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var ev wireEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if ev.Type == typ && (match == nil || match(ev)) {
			return ev
		}
	}
}

func questionIndex(i int) func(wireEvent) bool {
	return func(ev wireEvent) bool {
		var p questionPayload
		return json.Unmarshal(ev.Data, &p) == nil && p.Index == i
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := NewServer(Deps{App: &config.AppConfig{}})
	e := New(srv)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestSetupRoutes(t *testing.T) {
	t.Parallel()
	_, _, ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/setup", `{"jobDescription":"Go developer"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/setup",
		`{"jobDescription":"Go developer","numberOfQuestions":4,"difficultyLevel":"extreme"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown difficulty, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/setup",
		`{"jobDescription":"Go developer","numberOfQuestions":4,"difficultyLevel":"high"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	id, _ := body["id"].(string)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/setup/"+id, "")
	if resp.StatusCode != http.StatusOK || body["difficulty"] != "high" || body["question_count"] != float64(4) {
		t.Fatalf("unexpected setup %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/setup/missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestManualSessionOverHTTP(t *testing.T) {
	t.Parallel()
	srv, store, ts := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/setup",
		`{"jobDescription":"Backend Developer building Go services","numberOfQuestions":3,"difficultyLevel":"low"}`)
	setupID, _ := body["id"].(string)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions",
		fmt.Sprintf(`{"setupId":%q,"candidateName":"Ada Lovelace"}`, setupID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	id, _ := body["sessionId"].(string)

	conn := dialEvents(t, ts, id, 0)
	ready := readUntil(t, conn, "questions_ready", nil)
	var qs questionsPayload
	if err := json.Unmarshal(ready.Data, &qs); err != nil || len(qs.Questions) != 3 || !qs.Fallback {
		t.Fatalf("unexpected questions_ready %s", ready.Data)
	}

	for i := 0; i < 3; i++ {
		readUntil(t, conn, "question_changed", questionIndex(i))
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers",
			fmt.Sprintf(`{"index":%d,"text":"answer %d"}`, i, i))
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("answer %d: expected 202, got %d", i, resp.StatusCode)
		}
	}
	readUntil(t, conn, "complete", nil)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id, "")
	if resp.StatusCode != http.StatusOK || body["state"] != "complete" {
		t.Fatalf("unexpected status %d %v", resp.StatusCode, body)
	}
	keys, _ := store.List(context.Background())
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "Ada_Lovelace_") {
		t.Fatalf("expected one record keyed by name, got %v", keys)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers", `{"index":0,"text":"late"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a late answer, got %d", resp.StatusCode)
	}

	// Replay after reconnect starts from the requested sequence.
	replayConn := dialEvents(t, ts, id, ready.Seq)
	var first wireEvent
	_ = replayConn.SetReadDeadline(time.Now().Add(time.Second))
	if err := replayConn.ReadJSON(&first); err != nil || first.Seq <= ready.Seq || first.Type != "question_changed" {
		t.Fatalf("expected replay to resume after seq %d, got %+v (%v)", ready.Seq, first, err)
	}

	if n := srv.evict(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected the finished session to be evicted, got %d", n)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after eviction, got %d", resp.StatusCode)
	}
}

func TestSpeechSessionOverHTTP(t *testing.T) {
	t.Parallel()
	_, store, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", `{
		"setup": {"candidateName":"Grace","role":"Data Scientist","questionCount":3},
		"speech": {"synthesis": true, "recognition": true}
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	id, _ := body["sessionId"].(string)
	base := ts.URL + "/api/sessions/" + id

	conn := dialEvents(t, ts, id, 0)
	for i := 0; i < 3; i++ {
		readUntil(t, conn, "question_changed", questionIndex(i))
		doJSON(t, http.MethodPost, base+"/speech/ended", fmt.Sprintf(`{"index":%d}`, i))
		readUntil(t, conn, "listening_state_changed", func(ev wireEvent) bool {
			return strings.Contains(string(ev.Data), "true")
		})
		doJSON(t, http.MethodPost, base+"/speech/transcript", fmt.Sprintf(`{"index":%d,"text":"partial","final":false}`, i))
		readUntil(t, conn, "interim_transcript", nil)
		_, ack := doJSON(t, http.MethodPost, base+"/speech/transcript", fmt.Sprintf(`{"index":%d,"text":"spoken %d","final":true}`, i, i))
		if ack["accepted"] != true {
			t.Fatalf("transcript %d not accepted: %v", i, ack)
		}
		rec := readUntil(t, conn, "answer_recorded", nil)
		if !strings.Contains(string(rec.Data), `"speech"`) {
			t.Fatalf("expected a speech answer, got %s", rec.Data)
		}
	}
	readUntil(t, conn, "complete", nil)

	_, ack := doJSON(t, http.MethodPost, base+"/speech/transcript", `{"index":0,"text":"stale","final":true}`)
	if ack["accepted"] != false {
		t.Fatalf("stale transcript must be ignored, got %v", ack)
	}
	if keys, _ := store.List(context.Background()); len(keys) != 1 {
		t.Fatalf("expected one record, got %v", keys)
	}
}

func TestCancelSessionAndActivity(t *testing.T) {
	t.Parallel()
	_, store, ts := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions",
		`{"setup":{"candidateName":"Alan","jobDescription":"Frontend Developer","questionCount":5}}`)
	id, _ := body["sessionId"].(string)
	base := ts.URL + "/api/sessions/" + id

	conn := dialEvents(t, ts, id, 0)
	readUntil(t, conn, "question_changed", questionIndex(0))

	resp, _ := doJSON(t, http.MethodPost, base+"/activity", `{"status":"hidden"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for tracking, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/activity", `{"status":"minimised"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown status, got %d", resp.StatusCode)
	}
	readUntil(t, conn, "tab_activity", func(ev wireEvent) bool {
		var m activity.Metrics
		return json.Unmarshal(ev.Data, &m) == nil && m.TabSwitchCount == 1
	})
	resp, body = doJSON(t, http.MethodGet, base+"/activity", "")
	if resp.StatusCode != http.StatusOK || body["metrics"] == nil {
		t.Fatalf("unexpected activity report %d %v", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodDelete, base, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", del.StatusCode)
	}
	readUntil(t, conn, "cancelled", nil)

	del, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a second cancel, got %d", del.StatusCode)
	}
	if keys, _ := store.List(context.Background()); len(keys) != 0 {
		t.Fatalf("cancelled session was persisted: %v", keys)
	}
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	t.Parallel()
	_, _, ts := newTestServer(t)

	tests := map[string]struct {
		body string
		code int
	}{
		"no setup":       {`{}`, http.StatusBadRequest},
		"unknown setup":  {`{"setupId":"nope"}`, http.StatusNotFound},
		"no name":        {`{"setup":{"role":"Data Scientist"}}`, http.StatusBadRequest},
		"bad json":       {`{`, http.StatusBadRequest},
		"bad difficulty": {`{"setup":{"candidateName":"A","role":"QA","difficulty":"extreme"}}`, http.StatusBadRequest},
		"count too high": {`{"setup":{"candidateName":"A","role":"QA","questionCount":25}}`, http.StatusBadRequest},
		"count too low":  {`{"setup":{"candidateName":"A","role":"QA","questionCount":2}}`, http.StatusBadRequest},
	}
	for name, tt := range tests {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", tt.body)
		if resp.StatusCode != tt.code {
			t.Errorf("%s: expected %d, got %d", name, tt.code, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/unknown/answers", `{"index":0,"text":"x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown session, got %d", resp.StatusCode)
	}
}

func TestHubReplayAndClose(t *testing.T) {
	t.Parallel()
	h := newHub()
	h.QuestionsReady([]string{"a", "b", "c"}, false)
	h.QuestionChanged(0, "a")

	replay, live, unsubscribe := h.subscribe(1)
	if len(replay) != 1 || replay[0].Type != "question_changed" {
		t.Fatalf("unexpected replay %+v", replay)
	}
	h.ListeningStateChanged(true)
	if ev := <-live; ev.Seq != 3 || ev.Type != "listening_state_changed" {
		t.Fatalf("unexpected live event %+v", ev)
	}
	unsubscribe()
	unsubscribe()

	_, live, _ = h.subscribe(0)
	h.close()
	if _, ok := <-live; ok {
		t.Fatalf("expected the channel to close with the hub")
	}
	h.QuestionChanged(1, "b")
	if replay, _, _ := h.subscribe(0); len(replay) != 3 {
		t.Fatalf("closed hub must not buffer new events, got %d", len(replay))
	}
}

func TestInlineSetupAcceptsFormDifficulty(t *testing.T) {
	t.Parallel()
	_, _, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions",
		`{"candidateName":"Ann","setup":{"role":"Backend Developer","difficulty":"low","questionCount":3}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	id, _ := body["sessionId"].(string)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id, "")
	setup, _ := body["setup"].(map[string]any)
	if resp.StatusCode != http.StatusOK || setup["difficulty"] != "basic" {
		t.Fatalf("expected low to map to basic, got %d %v", resp.StatusCode, body)
	}
}

func TestEvictAbandonedSession(t *testing.T) {
	t.Parallel()
	srv, store, ts := newTestServer(t)

	create := func(name string) string {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions",
			fmt.Sprintf(`{"setup":{"candidateName":%q,"role":"QA Engineer","questionCount":3},"speech":{"synthesis":true,"recognition":true}}`, name))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
		}
		id, _ := body["sessionId"].(string)
		return id
	}
	abandoned := create("Left")
	watched := create("Stayed")

	conn := dialEvents(t, ts, watched, 0)
	readUntil(t, conn, "question_changed", questionIndex(0))

	srv.mu.RLock()
	sess := srv.sessions[abandoned]
	srv.mu.RUnlock()

	if n := srv.evict(time.Now().Add(30 * time.Second)); n != 0 {
		t.Fatalf("sessions evicted before the TTL: %d", n)
	}
	if n := srv.evict(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected only the abandoned session to be evicted, got %d", n)
	}

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+abandoned, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for the evicted session, got %d", resp.StatusCode)
	}
	if state := sess.facade.Status().State; state != domain.StateNotStarted {
		t.Fatalf("abandoned interview still running: %s", state)
	}
	if _, live, _ := sess.hub.subscribe(0); !isClosed(live) {
		t.Fatalf("expected the evicted session's stream to be closed")
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+watched, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session with a connected stream must stay, got %d", resp.StatusCode)
	}
	if keys, _ := store.List(context.Background()); len(keys) != 0 {
		t.Fatalf("abandoned session was persisted: %v", keys)
	}
}

func isClosed(ch <-chan Event) bool {
	select {
	case _, ok := <-ch:
		return !ok
	case <-time.After(time.Second):
		return false
	}
}

func TestHubReplayBufferIsBounded(t *testing.T) {
	t.Parallel()
	h := newHub()
	h.QuestionsReady([]string{"a", "b", "c"}, false)
	for i := 0; i < maxReplayEvents+50; i++ {
		h.InterimTranscript(0, "partial")
		h.TabActivity(activity.Metrics{TabSwitchCount: i})
		h.ListeningStateChanged(i%2 == 0)
	}

	replay, _, unsubscribe := h.subscribe(0)
	defer unsubscribe()
	if len(replay) != maxReplayEvents {
		t.Fatalf("expected %d buffered events, got %d", maxReplayEvents, len(replay))
	}
	for i, ev := range replay {
		if ev.Type == "interim_transcript" || ev.Type == "tab_activity" {
			t.Fatalf("transient event %s buffered for replay", ev.Type)
		}
		if i > 0 && ev.Seq <= replay[i-1].Seq {
			t.Fatalf("replay out of order at %d", i)
		}
	}
	if last := replay[len(replay)-1]; last.Seq != 1+3*(maxReplayEvents+50) {
		t.Fatalf("unexpected last seq %d", last.Seq)
	}
}
