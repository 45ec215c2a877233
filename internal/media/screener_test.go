package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/rummage/profilesync/internal/models"
)

func newTestScreener(t *testing.T, adult string) *SafeSearchScreener {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images:annotate") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Requests []struct {
				Image struct {
					Content string `json:"content"`
				} `json:"image"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Requests, 1)
		assert.NotEmpty(t, body.Requests[0].Image.Content)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responses": []interface{}{
				map[string]interface{}{
					"safeSearchAnnotation": map[string]string{
						"adult": adult, "violence": "UNLIKELY", "racy": "VERY_UNLIKELY",
					},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	s, err := NewSafeSearchScreener(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestSafeSearchScreener_Allows(t *testing.T) {
	s := newTestScreener(t, "VERY_UNLIKELY")
	assert.NoError(t, s.Screen(context.Background(), &models.ImageRef{Data: []byte("jpeg")}))
}

func TestSafeSearchScreener_Rejects(t *testing.T) {
	s := newTestScreener(t, "LIKELY")
	err := s.Screen(context.Background(), &models.ImageRef{Data: []byte("jpeg")})
	assert.ErrorIs(t, err, ErrUnsafeImage)
}

func TestSafeSearchResult_IsUnsafe(t *testing.T) {
	assert.False(t, (&SafeSearchResult{Adult: "POSSIBLE", Spoof: "VERY_LIKELY"}).IsUnsafe())
	assert.True(t, (&SafeSearchResult{Racy: "VERY_LIKELY"}).IsUnsafe())
	assert.True(t, (&SafeSearchResult{Violence: "LIKELY"}).IsUnsafe())
}
