package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates incoming", incoming: "req-incoming-123", keep: true},
		{name: "generates when missing"},
		{name: "replaces spaces", incoming: "has space"},
		{name: "replaces oversized", incoming: strings.Repeat("a", maxRequestIDLen+1)},
		{name: "replaces non ascii", incoming: "req-é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
				if LoggerFromContext(r.Context()) == nil {
					t.Fatal("expected request logger in context")
				}
			}))
			req := httptest.NewRequest(http.MethodGet, "/movies", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tt.keep != (got == tt.incoming) {
				t.Fatalf("request id = %q, incoming %q, keep %v", got, tt.incoming, tt.keep)
			}
		})
	}
}
