package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Scopes needed by the whole application.
var Scopes = []string{gsheet.SpreadsheetsScope, drive.DriveScope, gmail.GmailSendScope}

var ErrNoCredentials = errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or an OAuth client and token)")

// Auth selects how the application authenticates. Service account
// credentials win over an OAuth token when both are set.
type Auth struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

// AuthFromEnv reads the credential variables.
func AuthFromEnv() Auth {
	a := Auth{
		ServiceAccountJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		ServiceAccountFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
		OAuthClientJSON:    strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")),
		OAuthClientFile:    strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")),
		OAuthTokenJSON:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON")),
		OAuthTokenFile:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")),
	}
	if a.ServiceAccountJSON == "" && a.ServiceAccountFile == "" {
		a.ServiceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return a
}

// Configured reports whether any credential source is set.
func (a Auth) Configured() bool {
	return a.ServiceAccountJSON != "" || a.ServiceAccountFile != "" ||
		((a.OAuthClientJSON != "" || a.OAuthClientFile != "") && (a.OAuthTokenJSON != "" || a.OAuthTokenFile != ""))
}

// ClientOptions builds the options shared by the Sheets, Drive and Gmail
// services: an authorised HTTP client over a pooled transport.
func ClientOptions(ctx context.Context, a Auth, scopes ...string) ([]goption.ClientOption, error) {
	if len(scopes) == 0 {
		scopes = Scopes
	}
	ts, err := tokenSource(ctx, a, scopes)
	if err != nil {
		return nil, err
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return []goption.ClientOption{goption.WithHTTPClient(oauth2.NewClient(base, ts))}, nil
}

func tokenSource(ctx context.Context, a Auth, scopes []string) (oauth2.TokenSource, error) {
	if sa, err := readSecret(a.ServiceAccountJSON, a.ServiceAccountFile); err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	} else if sa != nil {
		creds, err := goauth.CredentialsFromJSON(ctx, sa, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials", "scopes", len(scopes))
		return creds.TokenSource, nil
	}

	client, err := readSecret(a.OAuthClientJSON, a.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	tok, err := readSecret(a.OAuthTokenJSON, a.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if client == nil || tok == nil {
		return nil, ErrNoCredentials
	}
	cfg, err := goauth.ConfigFromJSON(client, scopes...)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tok, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	slog.InfoContext(ctx, "Using OAuth user token", "expires", token.Expiry)
	return cfg.TokenSource(ctx, &token), nil
}

// readSecret returns inline when set, else the content of path, else nil.
func readSecret(inline, path string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case path != "":
		return os.ReadFile(path)
	default:
		return nil, nil
	}
}

// newHTTPClientWithPooling keeps connections to the Google APIs warm; a
// rollover issues a few hundred small requests in a row.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
