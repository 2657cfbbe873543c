package docintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/everstacklabs/modelmigrate/internal/httpclient"
)

const keyHeader = "Ocp-Apim-Subscription-Key"

// Client talks to one Document Intelligence resource's administration
// API, authenticated with that resource's key.
type Client struct {
	endpoint string
	key      string
	http     *httpclient.Client
}

// New creates a Client for the resource at endpoint.
func New(endpoint, key string, hc *httpclient.Client) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		key:      key,
		http:     hc,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{keyHeader: c.key}
}

// ListingURL returns the first-page model listing URL for endpoint.
// Callers use it to invalidate cached listings after a copy lands.
func ListingURL(endpoint string) string {
	return fmt.Sprintf("%s/%s/documentModels?api-version=%s",
		strings.TrimSuffix(endpoint, "/"), RouteCurrent.PathPrefix, RouteCurrent.APIVersion)
}

// ModelInfo is one entry from a model listing. CreatedDateTime is the
// zero time when the service did not record one.
type ModelInfo struct {
	ModelID         string    `json:"modelId"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	APIVersion      string    `json:"apiVersion"`
}

type listModelsResponse struct {
	Value    []ModelInfo `json:"value"`
	NextLink string      `json:"nextLink"`
}

// ListModels returns every model on the resource, following pagination.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	next := ListingURL(c.endpoint)

	var models []ModelInfo
	for next != "" {
		resp, err := c.http.Get(ctx, next, c.headers())
		if err != nil {
			return nil, &TransportError{Op: "listing models", Err: err}
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("listing models: HTTP %d: %s", resp.StatusCode, errorMessage(resp.Body))
		}

		var page listModelsResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("parsing model listing: %w", err)
		}
		models = append(models, page.Value...)
		next = page.NextLink
	}
	return models, nil
}

// ResourceDetails is the custom-model quota of a resource, used as a
// lightweight connectivity probe.
type ResourceDetails struct {
	Count int
	Limit int
}

// ResourceDetails probes the resource and returns its custom-model
// count and limit. A 401/403 here means the key is wrong.
func (c *Client) ResourceDetails(ctx context.Context) (*ResourceDetails, error) {
	u := fmt.Sprintf("%s/%s/info?api-version=%s", c.endpoint, RouteCurrent.PathPrefix, RouteCurrent.APIVersion)
	resp, err := c.http.GetNoCache(ctx, u, c.headers())
	if err != nil {
		return nil, &TransportError{Op: "probing resource", Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probing resource: HTTP %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}

	var info struct {
		CustomDocumentModels struct {
			Count int `json:"count"`
			Limit int `json:"limit"`
		} `json:"customDocumentModels"`
	}
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("parsing resource info: %w", err)
	}
	return &ResourceDetails{Count: info.CustomDocumentModels.Count, Limit: info.CustomDocumentModels.Limit}, nil
}

// Authorization is the opaque token a target resource issues for one
// destination model id. It is forwarded to the copy-to call verbatim.
type Authorization json.RawMessage

// AuthorizeCopy asks the target resource (the one this Client points
// at) to authorize a copy into destModelID.
func (c *Client) AuthorizeCopy(ctx context.Context, route Route, destModelID, description string) (Authorization, error) {
	body, err := json.Marshal(map[string]string{
		"modelId":     destModelID,
		"description": description,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding authorize request: %w", err)
	}

	u := fmt.Sprintf("%s/%s/documentModels:authorizeCopy?api-version=%s", c.endpoint, route.PathPrefix, route.APIVersion)
	resp, err := c.http.Post(ctx, u, c.headers(), body)
	if err != nil {
		return nil, &TransportError{Op: "authorizing copy", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return Authorization(resp.Body), nil
}

// OperationHandle is the pollable reference to a running copy. It is
// only valid against the key of the resource that initiated the copy.
type OperationHandle struct {
	Location string
}

// CopyTo starts copying sourceModelID from this Client's resource into
// the destination described by auth. The route must be the same one the
// authorization was requested with.
func (c *Client) CopyTo(ctx context.Context, route Route, sourceModelID string, auth Authorization) (*OperationHandle, error) {
	u := fmt.Sprintf("%s/%s/documentModels/%s:copyTo?api-version=%s", c.endpoint, route.PathPrefix, url.PathEscape(sourceModelID), route.APIVersion)
	resp, err := c.http.Post(ctx, u, c.headers(), []byte(auth))
	if err != nil {
		return nil, &TransportError{Op: "initiating copy", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &InitiationError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	loc := resp.Header.Get("Operation-Location")
	if loc == "" {
		return nil, &MissingHandleError{}
	}
	return &OperationHandle{Location: loc}, nil
}

// OperationStatus is one poll response for a copy operation.
type OperationStatus struct {
	Status string           `json:"status"`
	Result *OperationResult `json:"result"`
	Error  *OperationError  `json:"error"`
}

// OperationResult carries the destination model id of a finished copy.
type OperationResult struct {
	ModelID string `json:"modelId"`
}

// OperationError is the error payload of a failed copy. The service
// emits either a structured object or a bare string; both decode here.
type OperationError struct {
	Message string
}

func (e *OperationError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Message = obj.Message
	return nil
}

// Operation fetches the current status of a copy. It authenticates with
// this Client's key: the handle must be polled by the resource that
// initiated the copy, never the target.
func (c *Client) Operation(ctx context.Context, location string) (*OperationStatus, error) {
	resp, err := c.http.GetNoCache(ctx, location, c.headers())
	if err != nil {
		return nil, &TransportError{Op: "checking copy status", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checking copy status: HTTP %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}

	var status OperationStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("parsing copy status: %w", err)
	}
	return &status, nil
}
