package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/rummage/profilesync/internal/models"
)

// DefaultTokenURL is the Secure Token endpoint that exchanges refresh tokens.
const DefaultTokenURL = "https://securetoken.googleapis.com/v1/token"

// ID tokens are refreshed this long before they expire.
const refreshSkew = 5 * time.Minute

// ToolkitConfig locates the project and the on-disk session.
type ToolkitConfig struct {
	APIKey  string
	DataDir string
	// TokenURL overrides DefaultTokenURL, e.g. for the auth emulator.
	TokenURL string
}

// ToolkitProvider talks to the Firebase Auth REST surface (Identity Toolkit v3)
// with a project API key, the same way a mobile client does.
type ToolkitProvider struct {
	mu       sync.Mutex
	svc      *identitytoolkit.Service
	client   *http.Client
	tokenURL string
	sessions *sessionStore
	hub      *stateHub
	current  *Session
	now      func() time.Time
	log      zerolog.Logger
}

// NewToolkitProvider restores the stored session, refreshing its ID token when it
// is close to expiry. The session is dropped only if the refresh is rejected.
// Extra client options are appended after the API key (tests point the endpoint elsewhere).
func NewToolkitProvider(ctx context.Context, cfg ToolkitConfig, log zerolog.Logger, opts ...option.ClientOption) (*ToolkitProvider, error) {
	clientOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit client: %w", err)
	}
	httpClient, _, err := htransport.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secure token client: %w", err)
	}

	sessions, err := newSessionStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	p := &ToolkitProvider{
		svc:      svc,
		client:   httpClient,
		tokenURL: tokenURL,
		sessions: sessions,
		now:      time.Now,
		log:      log.With().Str("component", "toolkit_identity").Logger(),
	}

	sess, err := sessions.load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	p.current = sess
	if sess != nil {
		if err := p.ensureFreshLocked(ctx); err != nil && p.current != nil {
			// Not a rejection: keep the session and try again on next use.
			p.log.Warn().Err(err).Str("user_id", sess.Identity.ID).Msg("token refresh failed")
		}
	}

	var current *models.Identity
	if p.current != nil {
		current = &p.current.Identity
	}
	p.hub = newStateHub(current)
	return p, nil
}

func (p *ToolkitProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startSession(models.Identity{
		ID:          resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURI:    resp.PhotoUrl,
	}, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

func (p *ToolkitProvider) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startSession(models.Identity{
		ID:          resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

func (p *ToolkitProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sessions.clear(); err != nil {
		return err
	}
	p.current = nil
	p.hub.publish(nil)
	return nil
}

// PatchIdentity updates the signed-in account. The toolkit only accepts patches
// authorized by the account's own ID token, so other ids are rejected locally.
func (p *ToolkitProvider) PatchIdentity(ctx context.Context, id string, patch models.IdentityPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotSignedIn
	}
	if p.current.Identity.ID != id {
		return ErrIdentityMismatch
	}
	if err := p.ensureFreshLocked(ctx); err != nil {
		return err
	}

	resp, err := p.setAccountInfo(ctx, patch)
	if errors.Is(err, ErrNotSignedIn) && p.current.RefreshToken != "" {
		// The server can reject a token we still consider valid (clock drift).
		if err := p.refreshLocked(ctx); err != nil {
			return err
		}
		resp, err = p.setAccountInfo(ctx, patch)
	}
	if err != nil {
		return err
	}

	if patch.DisplayName != nil {
		p.current.Identity.DisplayName = resp.DisplayName
	}
	if patch.PhotoURI != nil {
		p.current.Identity.PhotoURI = resp.PhotoUrl
	}
	if err := p.sessions.save(p.current); err != nil {
		return err
	}
	p.hub.update(&p.current.Identity)
	return nil
}

func (p *ToolkitProvider) setAccountInfo(ctx context.Context, patch models.IdentityPatch) (*identitytoolkit.SetAccountInfoResponse, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken: p.current.IDToken,
	}
	if patch.DisplayName != nil {
		req.DisplayName = *patch.DisplayName
	}
	if patch.PhotoURI != nil {
		req.PhotoUrl = *patch.PhotoURI
	}

	resp, err := p.svc.Relyingparty.SetAccountInfo(req).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err)
	}
	return resp, nil
}

// ensureFreshLocked refreshes the ID token when it expires within refreshSkew.
// A session that can no longer be refreshed is ended and reported as signed out.
func (p *ToolkitProvider) ensureFreshLocked(ctx context.Context) error {
	if p.current.Expired(p.now().Add(refreshSkew)) {
		return p.refreshLocked(ctx)
	}
	return nil
}

type secureTokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func (p *ToolkitProvider) refreshLocked(ctx context.Context) error {
	if p.current.RefreshToken == "" {
		return p.endSessionLocked(ErrNotSignedIn)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {p.current.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("secure token: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return p.endSessionLocked(mapToolkitError(err))
		}
		return fmt.Errorf("secure token: %w", err)
	}

	var body secureTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode secure token response: %w", err)
	}
	if body.UserID != "" && body.UserID != p.current.Identity.ID {
		return p.endSessionLocked(ErrIdentityMismatch)
	}

	expiresAt, err := tokenExpiry(body.IDToken)
	if err != nil {
		seconds, _ := strconv.ParseInt(body.ExpiresIn, 10, 64)
		expiresAt = p.now().Add(time.Duration(seconds) * time.Second)
	}

	p.current.IDToken = body.IDToken
	if body.RefreshToken != "" {
		p.current.RefreshToken = body.RefreshToken
	}
	p.current.ExpiresAt = expiresAt
	p.log.Debug().Str("user_id", p.current.Identity.ID).Time("expires_at", expiresAt).Msg("token refreshed")
	return p.sessions.save(p.current)
}

// endSessionLocked forgets the session and returns cause wrapped in ErrNotSignedIn.
func (p *ToolkitProvider) endSessionLocked(cause error) error {
	p.log.Info().Err(cause).Str("user_id", p.current.Identity.ID).Msg("session ended")
	_ = p.sessions.clear()
	p.current = nil
	if p.hub != nil {
		p.hub.publish(nil)
	}
	if errors.Is(cause, ErrNotSignedIn) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrNotSignedIn, cause)
}

func (p *ToolkitProvider) ObserveState(callback func(*models.Identity)) func() {
	return p.hub.subscribe(callback)
}

func (p *ToolkitProvider) CurrentIdentity() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return cloneIdentity(&p.current.Identity)
}

func (p *ToolkitProvider) startSession(id models.Identity, idToken, refreshToken string, expiresIn int64) (*models.Identity, error) {
	expiresAt, err := tokenExpiry(idToken)
	if err != nil {
		expiresAt = p.now().Add(time.Duration(expiresIn) * time.Second)
	}

	sess := &Session{
		Identity:     id,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := p.sessions.save(sess); err != nil {
		return nil, err
	}
	p.current = sess
	p.log.Debug().Str("user_id", id.ID).Time("expires_at", expiresAt).Msg("session started")
	p.hub.publish(&sess.Identity)
	return cloneIdentity(&sess.Identity), nil
}

// mapToolkitError translates the toolkit's error codes into package sentinels.
// Messages look like "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be ...".
func mapToolkitError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	code := apiErr.Message
	if i := strings.Index(code, " "); i >= 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_EXISTS":
		return fmt.Errorf("%w: %s", ErrEmailExists, apiErr.Message)
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
	case "WEAK_PASSWORD":
		return fmt.Errorf("%w: %s", ErrWeakPassword, apiErr.Message)
	case "USER_NOT_FOUND":
		return fmt.Errorf("%w: %s", ErrUserNotFound, apiErr.Message)
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN",
		"INVALID_REFRESH_TOKEN", "MISSING_REFRESH_TOKEN", "INVALID_GRANT_TYPE":
		return fmt.Errorf("%w: %s", ErrNotSignedIn, apiErr.Message)
	}
	return fmt.Errorf("identity toolkit: %w", err)
}
