package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"golang.org/x/oauth2/clientcredentials"
)

// errRemoteNotFound reports a key the remote service does not hold.
// Callers fall through to the next configuration layer.
var errRemoteNotFound = errors.New("remote config key not found")

// remoteClient fetches grouped parameters from the remote configuration
// service using OAuth2 client-credentials tokens.
type remoteClient struct {
	baseURL string
	client  *http.Client
	logger  arbor.ILogger
}

func newRemoteClient(cfg *common.RemoteConfig, logger arbor.ILogger) *remoteClient {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	// Token refresh is handled by the oauth2 transport.
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = 15 * time.Second

	return &remoteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

// remoteValue is the response envelope for a single parameter.
type remoteValue struct {
	Value string `json:"value"`
}

// Fetch retrieves one parameter from {baseURL}/{group}/{key}.
func (r *remoteClient) Fetch(ctx context.Context, group, key string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", r.baseURL, url.PathEscape(group), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build remote config request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote config request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("remote config returned %d: %s", resp.StatusCode, string(body))
	}

	var payload remoteValue
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode remote config response: %w", err)
	}

	return payload.Value, nil
}
