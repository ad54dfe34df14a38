package itests

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

var client = &http.Client{Timeout: 5 * time.Second}

// do sends a request to the test server and returns status and body.
func do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	if testBaseURL == "" {
		t.Fatal("bootstrap not ready: HTTP server/baseURL missing")
	}
	req, err := http.NewRequest(method, testBaseURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp.StatusCode, b
}

func ids(t *testing.T, body []byte) []int {
	t.Helper()
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("invalid JSON response: %v; body=%s", err, string(body))
	}
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		n, ok := r["id"].(float64)
		if !ok {
			t.Fatalf("row without numeric id: %v", r)
		}
		out = append(out, int(n))
	}
	return out
}

func object(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid JSON response: %v; body=%s", err, string(body))
	}
	return out
}
