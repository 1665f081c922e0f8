package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP_xForwardedFor(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "single IP",
			header:   "192.168.1.1",
			expected: "192.168.1.1",
		},
		{
			name:     "multiple IPs (take first)",
			header:   "203.0.113.1, 198.51.100.1",
			expected: "203.0.113.1",
		},
		{
			name:     "multiple IPs with extra spaces",
			header:   " 203.0.113.1  ,  198.51.100.1",
			expected: "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/normalize", nil)
			r.Header.Set("X-Forwarded-For", tt.header)

			require.Equal(t, tt.expected, ExtractClientIP(r))
		})
	}
}

func TestExtractClientIP_xForwardedForTakesPreference(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/normalize", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.1")
	r.Header.Set("X-Real-IP", "192.168.1.100")

	require.Equal(t, "203.0.113.1", ExtractClientIP(r))
}

func TestExtractClientIP_remoteAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{name: "IPv4 with port", remoteAddr: "192.168.1.1:54321", expected: "192.168.1.1"},
		{name: "IPv6 with port", remoteAddr: "[2001:db8::1]:54321", expected: "2001:db8::1"},
		{name: "no port", remoteAddr: "192.168.1.1", expected: "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/normalize", nil)
			r.RemoteAddr = tt.remoteAddr

			require.Equal(t, tt.expected, ExtractClientIP(r))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	middleware := RequestLogger(zerolog.New(buf))

	var capturedIP, capturedID string
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedIP = ClientIPFromContext(r.Context())
		capturedID = RequestIDFromContext(r.Context())
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/normalize", nil)
	r.Header.Set("X-Real-IP", "203.0.113.1")

	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "203.0.113.1", capturedIP)
	_, err := uuid.Parse(capturedID)
	require.NoError(t, err)
	require.Equal(t, capturedID, w.Header().Get(RequestIDHeader))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"request_id":"`+capturedID+`"`)
	require.Contains(t, lines[1], `"status":418`)
	require.Contains(t, lines[1], `"path":"/v1/normalize"`)
}

func TestRequestLogger_reusesValidRequestID(t *testing.T) {
	id := uuid.NewString()
	handler := RequestLogger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(RequestIDHeader, id)
	handler.ServeHTTP(w, r)
	require.Equal(t, id, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(RequestIDHeader, "not-a-uuid")
	handler.ServeHTTP(w, r)
	require.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}

func TestMaxBodyBytes(t *testing.T) {
	var readErr error
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	r := httptest.NewRequest(http.MethodPost, "/v1/normalize", strings.NewReader("too long"))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	var maxErr *http.MaxBytesError
	require.ErrorAs(t, readErr, &maxErr)
}

func TestContextValues_missing(t *testing.T) {
	ctx := context.Background()

	require.Empty(t, ClientIPFromContext(ctx))
	require.Empty(t, RequestIDFromContext(ctx))
}
