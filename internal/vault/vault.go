package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/httpclient"
)

const secretsAPIVersion = "7.4"

// CredentialError means the secret store was unreachable or denied
// access: the resource it guards cannot participate in a run.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credential error: %s", e.Op)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Client fetches secrets from Key Vault using an AAD service principal.
// The token source caches and refreshes the access token internally, so
// one Client serves every vault for the lifetime of a run.
type Client struct {
	tokens oauth2.TokenSource
	http   *httpclient.Client
}

// New builds a Client from AAD client-credential settings.
func New(cfg config.AzureConfig, hc *httpclient.Client) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &CredentialError{Op: "AZURE_TENANT_ID, AZURE_CLIENT_ID, and AZURE_CLIENT_SECRET must be set"}
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://vault.azure.net/.default"},
	}
	return &Client{
		tokens: cc.TokenSource(context.Background()),
		http:   hc,
	}, nil
}

// GetSecret fetches the named secret from the given vault.
func (c *Client) GetSecret(ctx context.Context, vaultURL, name string) (string, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return "", &CredentialError{Op: "acquiring vault token", Err: err}
	}

	u := strings.TrimSuffix(vaultURL, "/") + "/secrets/" + url.PathEscape(name) + "?api-version=" + secretsAPIVersion
	resp, err := c.http.GetNoCache(ctx, u, map[string]string{
		"Authorization": "Bearer " + tok.AccessToken,
	})
	if err != nil {
		return "", &CredentialError{Op: "fetching secret " + name, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &CredentialError{Op: fmt.Sprintf("vault denied access to secret %s (HTTP %d)", name, resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", &CredentialError{Op: fmt.Sprintf("fetching secret %s: HTTP %d", name, resp.StatusCode)}
	}

	var secret struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(resp.Body, &secret); err != nil {
		return "", &CredentialError{Op: "parsing secret response", Err: err}
	}
	if secret.Value == "" {
		return "", &CredentialError{Op: fmt.Sprintf("secret %s is empty", name)}
	}

	slog.Debug("secret retrieved", "secret", name, "value_prefix", Mask(secret.Value))
	return secret.Value, nil
}

// Mask returns a loggable prefix of a secret value.
func Mask(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return "***"
}
