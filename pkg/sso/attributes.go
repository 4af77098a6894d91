package sso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/platinummonkey/couchuser/pkg/users"
)

// accountPlaceholder is replaced with the escaped account in AccountURL
const accountPlaceholder = "{account}"

// newHTTPClient returns the client used for every authority request
func newHTTPClient(config *ProviderConfig) *http.Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// unavailable marks err as an authority transport failure
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, users.ErrAuthorityUnavailable, err)
}

// classifyTokenError separates rejected credentials from transport failures
func classifyTokenError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		switch rErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("token request rejected: %w: %w", users.ErrAuthentication, err)
		case http.StatusBadRequest:
			if rErr.ErrorCode == "" || rErr.ErrorCode == "invalid_grant" {
				return fmt.Errorf("token request rejected: %w: %w", users.ErrAuthentication, err)
			}
		}
	}
	return unavailable("token request", err)
}

// getJSON fetches url and decodes a JSON object. A 404 wraps users.ErrNotFound.
func getJSON(ctx context.Context, client *http.Client, rawURL string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, unavailable("request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", rawURL, users.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, unavailable("request", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, unavailable("decode response", err)
	}
	return data, nil
}

// accountDirectory verifies accounts with a client-credentials authenticated
// directory endpoint
type accountDirectory struct {
	urlTemplate string
	client      *http.Client
	mapping     AttributeMap
}

func newAccountDirectory(urlTemplate string, cc *clientcredentials.Config, base *http.Client, mapping AttributeMap) *accountDirectory {
	if urlTemplate == "" {
		return nil
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = base.Timeout
	return &accountDirectory{
		urlTemplate: urlTemplate,
		client:      client,
		mapping:     mapping,
	}
}

func (d *accountDirectory) lookup(ctx context.Context, account string) (*users.Profile, error) {
	if d == nil {
		return nil, fmt.Errorf("account directory not configured: %w", users.ErrNotFound)
	}

	u := strings.ReplaceAll(d.urlTemplate, accountPlaceholder, url.PathEscape(account))
	data, err := getJSON(ctx, d.client, u)
	if err != nil {
		return nil, err
	}
	return mapProfile(data, d.mapping), nil
}

// mapProfile builds a profile from authority attributes. Attributes not
// consumed by the mapping are kept in Extra.
func mapProfile(data map[string]interface{}, m AttributeMap) *users.Profile {
	profile := &users.Profile{
		Name:   getStringValue(data, m.FullName),
		Email:  getStringValue(data, m.Email),
		Avatar: getStringValue(data, m.Avatar),
		Scopes: getArrayValue(data, m.Groups),
	}

	// Use username, then email, as fallback for the display name
	if profile.Name == "" {
		profile.Name = getStringValue(data, m.Username)
	}
	if profile.Name == "" {
		profile.Name = profile.Email
	}
	if profile.Scopes == nil {
		profile.Scopes = []string{}
	}

	consumed := map[string]bool{m.FullName: true, m.Email: true, m.Avatar: true, m.Groups: true}
	for k, v := range data {
		if consumed[k] {
			continue
		}
		if profile.Extra == nil {
			profile.Extra = make(map[string]interface{})
		}
		profile.Extra[k] = v
	}

	return profile
}

func getStringValue(data map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getArrayValue(data map[string]interface{}, key string) []string {
	if key == "" {
		return nil
	}
	if val, ok := data[key]; ok {
		if arr, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(arr))
			for _, item := range arr {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return nil
}
