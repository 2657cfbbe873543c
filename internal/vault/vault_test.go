package vault

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/httpclient"
)

func staticClient(token string) *Client {
	return &Client{
		tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		http:   httpclient.New(),
	}
}

func TestGetSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		if r.URL.Path != "/secrets/di-key" {
			t.Errorf("path = %q, want /secrets/di-key", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "7.4" {
			t.Errorf("api-version = %q, want 7.4", got)
		}
		w.Write([]byte(`{"value":"s3cret-key-value"}`))
	}))
	defer srv.Close()

	got, err := staticClient("tok").GetSecret(context.Background(), srv.URL, "di-key")
	if err != nil {
		t.Fatalf("GetSecret() error: %v", err)
	}
	if got != "s3cret-key-value" {
		t.Errorf("secret = %q", got)
	}
}

func TestGetSecret_Denied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := staticClient("tok").GetSecret(context.Background(), srv.URL, "di-key")
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want *CredentialError", err)
	}
}

func TestGetSecret_EmptyValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":""}`))
	}))
	defer srv.Close()

	_, err := staticClient("tok").GetSecret(context.Background(), srv.URL, "di-key")
	if err == nil {
		t.Fatal("expected error for empty secret value")
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(config.AzureConfig{TenantID: "t"}, httpclient.New())
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want *CredentialError for missing client id/secret", err)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abcdefghijklmnop", "abcdefgh..."},
		{"short", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
