package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worlds-rag/internal/rag"
	"worlds-rag/internal/store"
)

type stubQA struct {
	ready     bool
	result    *rag.Result
	queryErr  error
	initErr   error
	initCalls int
}

func (s *stubQA) Initialize(context.Context, bool) error {
	s.initCalls++
	if s.initErr != nil {
		return s.initErr
	}
	s.ready = true
	return nil
}

func (s *stubQA) Query(_ context.Context, question string) (*rag.Result, error) {
	if !s.ready {
		return nil, rag.ErrNotInitialized
	}
	if strings.TrimSpace(question) == "" {
		return nil, rag.ErrEmptyQuestion
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.result, nil
}

func (s *stubQA) Ready() bool { return s.ready }

func (s *stubQA) Status() rag.Status {
	return rag.Status{Ready: s.ready, SegmentCount: 42}
}

func readyStub() *stubQA {
	return &stubQA{
		ready: true,
		result: &rag.Result{
			Answer: "The narrator is an unnamed writer living in Woking.",
			Sources: []store.ScoredSegment{
				{Segment: store.Segment{Content: "I live in Woking.", Page: 3, Sequence: 12}, Similarity: 0.87},
			},
		},
	}
}

func newTestServer(qa QA) *httptest.Server {
	h := NewHandler(qa, "The War of the Worlds", "H.G. Wells", slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAskAPINotReady(t *testing.T) {
	srv := newTestServer(&stubQA{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/ask", `{"question":"Who narrates the story?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "not ready")
}

func TestAskAPISuccess(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/ask", `{"question":"Who narrates the story?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body askResponse
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Answer, "Woking")
	require.Len(t, body.Sources, 1)
	assert.Equal(t, 3, body.Sources[0].Page)
	assert.InDelta(t, 0.87, body.Sources[0].Similarity, 1e-9)
}

func TestAskAPIEmptyQuestion(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAskAPIInvalidJSON(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/ask", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAskAPIAppendsHistory(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	postJSON(t, srv.URL+"/api/ask", `{"question":"first"}`).Body.Close()
	postJSON(t, srv.URL+"/api/ask", `{"question":"second"}`).Body.Close()

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []Entry `json:"entries"`
		Count   int     `json:"count"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, 2, body.Count)
	// Newest first.
	assert.Equal(t, "second", body.Entries[0].Question)
	assert.Equal(t, "first", body.Entries[1].Question)
}

func TestRebuildClearsHistory(t *testing.T) {
	qa := readyStub()
	srv := newTestServer(qa)
	defer srv.Close()

	postJSON(t, srv.URL+"/api/ask", `{"question":"first"}`).Body.Close()

	resp, err := http.Post(srv.URL+"/rebuild", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, qa.initCalls)

	resp, err = http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 0, body.Count)
}

func TestRebuildAPI(t *testing.T) {
	qa := readyStub()
	srv := newTestServer(qa)
	defer srv.Close()

	postJSON(t, srv.URL+"/api/ask", `{"question":"first"}`).Body.Close()

	resp := postJSON(t, srv.URL+"/api/rebuild", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string `json:"status"`
		Segments int    `json:"segments"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "rebuilt", body.Status)
	assert.Equal(t, 42, body.Segments)

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	var hist struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &hist)
	assert.Equal(t, 0, hist.Count)
}

func TestHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(readyStub())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body healthResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, 42, body.Segments)
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(&stubQA{})
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body healthResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, "unhealthy", body.Status)
	})
}

func TestPageRenders(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	postJSON(t, srv.URL+"/api/ask", `{"question":"Who narrates the story?"}`).Body.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)
	assert.Contains(t, page, "The War of the Worlds")
	assert.Contains(t, page, "Who narrates the story?")
	assert.Contains(t, page, "Woking")
	assert.Contains(t, page, "page 3")
}

func TestPageUnknownPathNotFound(t *testing.T) {
	srv := newTestServer(readyStub())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueryErrorRendersPage(t *testing.T) {
	qa := readyStub()
	qa.queryErr = errors.New("model overloaded")
	srv := newTestServer(qa)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/x-www-form-urlencoded",
		strings.NewReader("question=anything"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "model overloaded")
}

func TestRenderAnswerEscapesRawHTML(t *testing.T) {
	out := string(renderAnswer("hello <script>alert(1)</script>"))
	assert.NotContains(t, out, "<script>")

	out = string(renderAnswer("a **bold** claim"))
	assert.Contains(t, out, "<strong>bold</strong>")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
}
