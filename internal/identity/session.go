package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/storage"
)

// Session is the persisted signed-in state.
type Session struct {
	Identity     models.Identity `json:"identity"`
	IDToken      string          `json:"id_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

type sessionStore struct {
	file *storage.JSONFile[*Session]
}

func newSessionStore(dataDir string) (*sessionStore, error) {
	file, err := storage.NewJSONFile[*Session](dataDir, "session.json")
	if err != nil {
		return nil, err
	}
	return &sessionStore{file: file}, nil
}

func (s *sessionStore) load() (*Session, error)  { return s.file.Load() }
func (s *sessionStore) save(sess *Session) error { return s.file.Save(sess) }
func (s *sessionStore) clear() error             { return s.file.Remove() }

// tokenExpiry reads the exp claim of an ID token without verifying its signature.
// Verification is the provider's job; the client only needs to know when to drop the session.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return exp.Time, nil
}
