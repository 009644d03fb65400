package rtm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaydesk/rtm-go/wire"
)

// DefaultAPIEndpoint is the production web API base URL.
const DefaultAPIEndpoint = "https://slack.com/api"

// APIClient calls the backend's web API. It carries no credentials of its
// own; every call takes the token explicitly so one APIClient can serve many
// sessions.
type APIClient struct {
	apiBase    string
	httpClient *http.Client
}

// NewAPIClient creates a web API client. An empty endpoint selects
// DefaultAPIEndpoint; a nil httpClient gets a 30 second timeout client.
func NewAPIClient(endpoint string, httpClient *http.Client) (*APIClient, error) {
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("rtm: invalid API endpoint %q: %w", endpoint, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{
		apiBase:    strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
	}, nil
}

// APIEndpoint returns the base API URL.
func (c *APIClient) APIEndpoint() string { return c.apiBase }

// StartRTM performs the realtime handshake: it returns the socket URL and the
// bootstrap entity lists.
func (c *APIClient) StartRTM(ctx context.Context, token string) (*wire.StartResponse, error) {
	var resp wire.StartResponse
	if err := c.call(ctx, "rtm.start", url.Values{"token": {token}}, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &APIError{Method: "rtm.start", Code: resp.Error}
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("rtm: rtm.start: response carries no url")
	}
	return &resp, nil
}

// OpenIM opens (or reopens) the direct channel with userID and returns its
// channel ID.
func (c *APIClient) OpenIM(ctx context.Context, token, userID string) (string, error) {
	var resp wire.IMOpenResponse
	if err := c.call(ctx, "im.open", url.Values{"token": {token}, "user": {userID}}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &APIError{Method: "im.open", Code: resp.Error}
	}
	if resp.Channel.ID == "" {
		return "", fmt.Errorf("rtm: im.open: response carries no channel id")
	}
	return resp.Channel.ID, nil
}

// --------------------------------------------------------------------------
// HTTP helpers
// --------------------------------------------------------------------------

// call POSTs form to method and decodes the JSON response into dest.
func (c *APIClient) call(ctx context.Context, method string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: server returned %d: %s", method, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}
