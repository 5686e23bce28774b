package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/ticker-feed/internal/config"
)

func newQuoteServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %q, want /quote", r.URL.Path)
		}
		body, ok := bodies[r.URL.Query().Get("symbol")]
		if !ok {
			body = `{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFinnhub_GetQuote(t *testing.T) {
	server := newQuoteServer(t, map[string]string{
		"MSFT": `{"c":187.32,"d":1.5,"dp":0.81,"h":188,"l":185.1,"o":186,"pc":185.82,"t":1705320000}`,
	})

	c := NewFinnhub(config.SourceConfig{BaseURL: server.URL, APIKey: "key"})
	q, err := c.GetQuote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if q.Current != 187.32 {
		t.Errorf("Current = %v, want 187.32", q.Current)
	}
	if q.PreviousClose != 185.82 {
		t.Errorf("PreviousClose = %v, want 185.82", q.PreviousClose)
	}
	if q.Timestamp != 1705320000 {
		t.Errorf("Timestamp = %d, want 1705320000", q.Timestamp)
	}
}

func TestFinnhub_Price(t *testing.T) {
	server := newQuoteServer(t, map[string]string{
		"MSFT":   `{"c":187.32,"t":1705320000}`,
		"HALTED": `{"c":0,"pc":12.5,"t":1705320000}`,
		"BROKEN": `{"c":`,
	})
	c := NewFinnhub(config.SourceConfig{BaseURL: server.URL, APIKey: "key"})

	tests := []struct {
		ticker  string
		want    float64
		wantErr error
	}{
		{ticker: "MSFT", want: 187.32},
		{ticker: "NOPE", wantErr: ErrUnknownTicker},
		{ticker: "HALTED", wantErr: ErrNoPrice},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			got, err := c.Price(context.Background(), tt.ticker)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Price = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		if _, err := c.Price(context.Background(), "BROKEN"); err == nil {
			t.Fatal("expected unmarshal error")
		}
	})
}
