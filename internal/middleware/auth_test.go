package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeAuth(t *testing.T) {
	var seen string
	handler := BridgeAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := NewBridgeToken("secret", "shell", time.Minute)
	require.NoError(t, err)
	expired, err := NewBridgeToken("secret", "shell", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewBridgeToken("other", "shell", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
	assert.Equal(t, "shell", seen)
}
