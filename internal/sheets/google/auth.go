package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"

	"forum/internal/log"
	"forum/internal/sheets"
)

// Scope requested by both credential kinds. The import only reads.
var Scope = gsheet.SpreadsheetsReadonlyScope

// AuthOptions lists the credential sources. Inline JSON wins over a file path.
type AuthOptions struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
	RedirectURL        string
}

// Authenticator yields a token source for the Sheets API. A service account
// is used when present; otherwise an OAuth user token, which may arrive later
// through the consent flow.
type Authenticator struct {
	serviceAccount []byte
	oauth          *oauth2.Config
	tokenFile      string
	logger         *log.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

func NewAuthenticator(opts AuthOptions, logger *log.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = log.Discard()
	}
	a := &Authenticator{tokenFile: opts.OAuthTokenFile, logger: logger.WithComponent(log.ComponentSheets)}

	var err error
	if a.serviceAccount, err = readInlineOrFile(opts.ServiceAccountJSON, opts.ServiceAccountFile); err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}

	clientJSON, err := readInlineOrFile(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	if len(clientJSON) > 0 {
		if a.oauth, err = OAuthConfig(clientJSON, opts.RedirectURL); err != nil {
			return nil, err
		}
	}

	tokenJSON, err := readInlineOrFile(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if len(tokenJSON) > 0 {
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("decode oauth token: %w", err)
		}
		a.token = &tok
	}
	return a, nil
}

// OAuthConfig parses a Google OAuth client file for the import scope.
func OAuthConfig(clientJSON []byte, redirectURL string) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case path != "":
		return os.ReadFile(path)
	default:
		return nil, nil
	}
}

// Ready reports whether a token source can be built right now.
func (a *Authenticator) Ready() bool {
	if len(a.serviceAccount) > 0 {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.oauth != nil && a.token != nil
}

// ConsentEnabled reports whether the OAuth consent flow is available.
func (a *Authenticator) ConsentEnabled() bool {
	return a.oauth != nil
}

// AuthCodeURL returns the consent page URL carrying state.
func (a *Authenticator) AuthCodeURL(state string) (string, error) {
	if a.oauth == nil {
		return "", fmt.Errorf("%w: no OAuth client", sheets.ErrNotConfigured)
	}
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token, keeps it and writes
// it to the token file when one is configured.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	if a.oauth == nil {
		return fmt.Errorf("%w: no OAuth client", sheets.ErrNotConfigured)
	}
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	a.SetToken(tok)
	if a.tokenFile != "" {
		if err := SaveToken(a.tokenFile, tok); err != nil {
			a.logger.WarnContext(ctx, "Failed to persist OAuth token", log.FieldError, err)
		}
	}
	a.logger.InfoContext(ctx, "OAuth token stored")
	return nil
}

func (a *Authenticator) SetToken(tok *oauth2.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = tok
}

// TokenSource builds a token source from the best available credential.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if len(a.serviceAccount) > 0 {
		creds, err := goauth.CredentialsFromJSON(ctx, a.serviceAccount, Scope)
		if err != nil {
			return nil, fmt.Errorf("service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	}
	a.mu.RLock()
	tok := a.token
	a.mu.RUnlock()
	if a.oauth == nil || tok == nil {
		return nil, sheets.ErrNotConfigured
	}
	return a.oauth.TokenSource(ctx, tok), nil
}

// SaveToken writes tok as JSON with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
