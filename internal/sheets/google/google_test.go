package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"forum/internal/sheets"
)

const testClientJSON = `{"web":{"client_id":"cid.apps.googleusercontent.com","client_secret":"secret","redirect_uris":["http://localhost:8080/auth/google/callback"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestAuthenticatorWithoutCredentials(t *testing.T) {
	a, err := NewAuthenticator(AuthOptions{}, nil)
	require.NoError(t, err)

	assert.False(t, a.Ready())
	assert.False(t, a.ConsentEnabled())
	_, err = a.AuthCodeURL("state")
	assert.ErrorIs(t, err, sheets.ErrNotConfigured)
	_, err = a.TokenSource(context.Background())
	assert.ErrorIs(t, err, sheets.ErrNotConfigured)
}

func TestAuthenticatorConsentURL(t *testing.T) {
	a, err := NewAuthenticator(AuthOptions{
		OAuthClientJSON: testClientJSON,
		RedirectURL:     "http://portal.example/auth/google/callback",
	}, nil)
	require.NoError(t, err)

	assert.True(t, a.ConsentEnabled())
	assert.False(t, a.Ready())

	u, err := a.AuthCodeURL("xyz")
	require.NoError(t, err)
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "redirect_uri=http%3A%2F%2Fportal.example%2Fauth%2Fgoogle%2Fcallback")
}

func TestAuthenticatorLoadsTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	a, err := NewAuthenticator(AuthOptions{OAuthClientJSON: testClientJSON, OAuthTokenFile: path}, nil)
	require.NoError(t, err)
	assert.True(t, a.Ready())

	ts, err := a.TokenSource(context.Background())
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
}

func TestAuthenticatorMissingTokenFileIsNotAnError(t *testing.T) {
	a, err := NewAuthenticator(AuthOptions{
		OAuthClientJSON: testClientJSON,
		OAuthTokenFile:  filepath.Join(t.TempDir(), "absent.json"),
	}, nil)
	require.NoError(t, err)
	assert.False(t, a.Ready())
}

func TestReadRows(t *testing.T) {
	var gotPath, gotRender, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range": "Sheet1!A2:E100",
			"values": [][]any{
				{"M-001", "Rahim", 40000, 0, 1500.5},
				{},
				{"M-002", "Karim", "n/a"},
			},
		})
	}))
	defer srv.Close()

	a, err := NewAuthenticator(AuthOptions{OAuthClientJSON: testClientJSON}, nil)
	require.NoError(t, err)
	a.SetToken(&oauth2.Token{AccessToken: "test-token", Expiry: time.Now().Add(time.Hour)})

	c := NewClient(a, nil, WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))
	rows, err := c.ReadRows(context.Background(), "sheet-id", "Sheet1!A2:E100")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "/v4/spreadsheets/sheet-id/values/Sheet1!A2:E100"), gotPath)
	assert.Equal(t, "UNFORMATTED_VALUE", gotRender)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, [][]string{
		{"M-001", "Rahim", "40000", "0", "1500.5"},
		{"M-002", "Karim", "n/a"},
	}, rows)
}

func TestReadRowsNotConfigured(t *testing.T) {
	a, err := NewAuthenticator(AuthOptions{}, nil)
	require.NoError(t, err)

	_, err = NewClient(a, nil).ReadRows(context.Background(), "id", "A1:B2")
	assert.ErrorIs(t, err, sheets.ErrNotConfigured)
}
