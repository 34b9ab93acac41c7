package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeMessages serves canned Messages API responses in order and records
// the request bodies it received.
type fakeMessages struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []map[string]any
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeMessages(t *testing.T, responses ...fakeResponse) (*fakeMessages, *Client) {
	t.Helper()
	f := &fakeMessages{responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return f, client
}

func (f *fakeMessages) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
		http.NotFound(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)
	f.requests = append(f.requests, req)

	if len(f.responses) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"no more responses"}}`))
		return
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]

	w.Header().Set("Content-Type", "application/json")
	if resp.status != 0 {
		w.WriteHeader(resp.status)
	}
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeMessages) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func textMessage(text string) fakeResponse {
	content, _ := json.Marshal([]map[string]any{{"type": "text", "text": text}})
	return messageResponse(string(content), "end_turn")
}

func toolUseMessage(id, name, input string) fakeResponse {
	content := `[{"type":"tool_use","id":"` + id + `","name":"` + name + `","input":` + input + `}]`
	return messageResponse(content, "tool_use")
}

func messageResponse(content, stopReason string) fakeResponse {
	return fakeResponse{body: `{
		"id": "msg_test",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": ` + content + `,
		"stop_reason": "` + stopReason + `",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`}
}

func errorResponse(status int, errType, message string) fakeResponse {
	return fakeResponse{
		status: status,
		body:   `{"type":"error","error":{"type":"` + errType + `","message":"` + message + `"}}`,
	}
}
