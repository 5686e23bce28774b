package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func passCheck(context.Context) error { return nil }

func failCheck(context.Context) error { return errors.New("connection refused") }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   string
	}{
		{
			name:   "all healthy",
			checks: []Check{{Name: "database", Critical: true, Fn: passCheck}, {Name: "redis", Fn: passCheck}},
			want:   StatusHealthy,
		},
		{
			name:   "non-critical failure",
			checks: []Check{{Name: "database", Critical: true, Fn: passCheck}, {Name: "redis", Fn: failCheck}},
			want:   StatusDegraded,
		},
		{
			name:   "critical failure",
			checks: []Check{{Name: "redis", Fn: failCheck}, {Name: "database", Critical: true, Fn: failCheck}},
			want:   StatusUnhealthy,
		},
		{
			name: "no checks",
			want: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Evaluate(context.Background(), tt.checks, nil)
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
			if len(resp.Components) != len(tt.checks) {
				t.Errorf("Components = %d, want %d", len(resp.Components), len(tt.checks))
			}
		})
	}
}

func TestHandler_Healthy(t *testing.T) {
	infos := []Info{{Name: "writer", Fn: func() any {
		return map[string]int64{"inserts": 42}
	}}}
	h := NewHandler([]Check{{Name: "database", Critical: true, Fn: passCheck}}, infos)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if string(body.Components["database"]) != `"up"` {
		t.Errorf("database = %s, want \"up\"", body.Components["database"])
	}
	if string(body.Components["writer"]) != `{"inserts":42}` {
		t.Errorf("writer = %s", body.Components["writer"])
	}
}

func TestHandler_Unhealthy(t *testing.T) {
	h := NewHandler([]Check{{Name: "database", Critical: true, Fn: failCheck}}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}

	var body Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	db, ok := body.Components["database"].(map[string]any)
	if !ok {
		t.Fatalf("database component = %#v, want object", body.Components["database"])
	}
	if db["error"] != "connection refused" {
		t.Errorf("error = %v, want connection refused", db["error"])
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewServer(0, NewHandler(nil, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
