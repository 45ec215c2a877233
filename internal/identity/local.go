package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/storage"
)

const minPasswordLength = 6

type localAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	DisplayName  string    `json:"display_name,omitempty"`
	PhotoURI     string    `json:"photo_uri,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *localAccount) identity() *models.Identity {
	return &models.Identity{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURI:    a.PhotoURI,
	}
}

// LocalProvider is an offline identity provider: accounts live in a JSON file with
// bcrypt password hashes and sessions carry HS256 tokens signed with a local secret.
type LocalProvider struct {
	mu       sync.Mutex
	accounts *storage.JSONFile[map[string]*localAccount] // lowercased email -> account
	sessions *sessionStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	hub      *stateHub
	current  *Session
	log      zerolog.Logger
}

func NewLocalProvider(dataDir, secret string, ttl time.Duration, log zerolog.Logger) (*LocalProvider, error) {
	accounts, err := storage.NewJSONFile[map[string]*localAccount](dataDir, "accounts.json")
	if err != nil {
		return nil, err
	}
	sessions, err := newSessionStore(dataDir)
	if err != nil {
		return nil, err
	}

	p := &LocalProvider{
		accounts: accounts,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "local_identity").Logger(),
	}

	sess, err := sessions.load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		if _, err := p.verifyToken(sess.IDToken); err != nil {
			p.log.Info().Err(err).Msg("discarding stored session")
			_ = sessions.clear()
			sess = nil
		}
	}
	p.current = sess

	var current *models.Identity
	if sess != nil {
		current = &sess.Identity
	}
	p.hub = newStateHub(current)
	return p, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	accounts, err := p.accounts.Load()
	if err != nil {
		return nil, err
	}
	acct, ok := accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.startSession(acct)
}

// CreateIdentity registers a new account and signs it in, like the hosted providers do.
func (p *LocalProvider) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct := &localAccount{
		ID:           uuid.New().String(),
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hashedPassword),
		CreatedAt:    p.now().UTC(),
	}
	err = p.accounts.Update(func(accounts *map[string]*localAccount) error {
		if *accounts == nil {
			*accounts = make(map[string]*localAccount)
		}
		key := normalizeEmail(email)
		if _, exists := (*accounts)[key]; exists {
			return ErrEmailExists
		}
		(*accounts)[key] = acct
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p.startSession(acct)
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sessions.clear(); err != nil {
		return err
	}
	p.current = nil
	p.hub.publish(nil)
	return nil
}

func (p *LocalProvider) PatchIdentity(ctx context.Context, id string, patch models.IdentityPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var updated *localAccount
	err := p.accounts.Update(func(accounts *map[string]*localAccount) error {
		for _, acct := range *accounts {
			if acct.ID != id {
				continue
			}
			if patch.DisplayName != nil {
				acct.DisplayName = *patch.DisplayName
			}
			if patch.PhotoURI != nil {
				acct.PhotoURI = *patch.PhotoURI
			}
			updated = acct
			return nil
		}
		return ErrUserNotFound
	})
	if err != nil {
		return err
	}

	if p.current != nil && p.current.Identity.ID == id {
		p.current.Identity = *updated.identity()
		if err := p.sessions.save(p.current); err != nil {
			return err
		}
		p.hub.update(&p.current.Identity)
	}
	return nil
}

func (p *LocalProvider) ObserveState(callback func(*models.Identity)) func() {
	return p.hub.subscribe(callback)
}

// CurrentIdentity returns the signed-in identity or nil.
func (p *LocalProvider) CurrentIdentity() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return cloneIdentity(&p.current.Identity)
}

// CurrentToken returns the signed-in session token, or "" when signed out.
func (p *LocalProvider) CurrentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.IDToken
}

func (p *LocalProvider) startSession(acct *localAccount) (*models.Identity, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)
	token, err := p.generateToken(acct, now, expiresAt)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Identity:  *acct.identity(),
		IDToken:   token,
		ExpiresAt: expiresAt,
	}
	if err := p.sessions.save(sess); err != nil {
		return nil, err
	}
	p.current = sess
	p.log.Debug().Str("user_id", acct.ID).Msg("session started")
	p.hub.publish(&sess.Identity)
	return cloneIdentity(&sess.Identity), nil
}

func (p *LocalProvider) generateToken(acct *localAccount, now, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": acct.ID,
		"email":   acct.Email,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// verifyToken checks the signature and expiry of a locally issued token.
func (p *LocalProvider) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid user id in token")
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
