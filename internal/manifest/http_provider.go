package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kgroner/enisyncd/internal/errors"
	"github.com/kgroner/enisyncd/internal/log"
)

// Response bodies above this size indicate a misconfigured endpoint, not a
// manifest.
const maxManifestBytes = 1 << 20

// HTTPClient interface for dependency injection in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider fetches the manifest from the internal metadata API.
type HTTPProvider struct {
	endpoint string
	client   HTTPClient
}

// NewHTTPProvider creates a provider against the given metadata endpoint.
func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewHTTPProviderWithClient creates a provider with a caller-supplied client.
func NewHTTPProviderWithClient(endpoint string, client HTTPClient) *HTTPProvider {
	return &HTTPProvider{endpoint: endpoint, client: client}
}

// Fetch retrieves and decodes the manifest. Any failure is a FETCH_ERROR.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]InterfaceDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, errors.NewFetchError("failed to build manifest request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError("failed to fetch manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(
			fmt.Sprintf("metadata API returned %s", resp.Status), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, errors.NewFetchError("failed to read manifest body", err)
	}

	descriptors, err := decodeManifest(body)
	if err != nil {
		return nil, err
	}

	log.Debugf("Fetched manifest with %d interface(s) from %s", len(descriptors), p.endpoint)
	return descriptors, nil
}

func decodeManifest(body []byte) ([]InterfaceDescriptor, error) {
	var descriptors []InterfaceDescriptor
	if err := json.Unmarshal(body, &descriptors); err != nil {
		return nil, errors.NewFetchError("failed to decode manifest JSON", err)
	}
	return descriptors, nil
}
