// Package credentials resolves API credentials explicitly. A Source returns a token
// together with its expiry; holders re-resolve once it has expired.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// expirySkew re-resolves tokens slightly before the issuer stops accepting them.
const expirySkew = 30 * time.Second

var ErrMissing = errors.New("credentials: not configured")

type Credential struct {
	Token string
	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

func (c Credential) Expired(now time.Time) bool {
	if c.Token == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-expirySkew))
}

type Source interface {
	Resolve(ctx context.Context) (Credential, error)
}

// Static is a long-lived API key.
type Static string

func (s Static) Resolve(context.Context) (Credential, error) {
	if s == "" {
		return Credential{}, ErrMissing
	}
	return Credential{Token: string(s)}, nil
}

// ClientCredentials runs the OAuth2 client credentials grant on every Resolve.
type ClientCredentials struct {
	Config clientcredentials.Config
}

// NewMicrosoftGraph builds a client credentials source for the Microsoft Graph API.
func NewMicrosoftGraph(tenantID, clientID, clientSecret string) *ClientCredentials {
	return &ClientCredentials{
		Config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		},
	}
}

func (c *ClientCredentials) Resolve(ctx context.Context) (Credential, error) {
	if c.Config.ClientID == "" || c.Config.ClientSecret == "" {
		return Credential{}, ErrMissing
	}

	tok, err := c.Config.Token(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("credentials: token request: %w", err)
	}

	return Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}
