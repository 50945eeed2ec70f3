package europarcel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/parcelgate/pkg/shipping"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.europarcel.com/api/"

// DefaultTimeout bounds every API call. Calls are not retried.
const DefaultTimeout = 15 * time.Second

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &HTTPAPIClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetProfile fetches the account profile.
// GET public/account/profile
func (c *HTTPAPIClient) GetProfile(ctx context.Context, apiKey string) (*ProfileResponse, error) {
	var result ProfileResponse
	if err := c.call(ctx, "profile", http.MethodGet, "public/account/profile", apiKey, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAddresses fetches an address book.
// GET public/addresses/{billing|shipping}?page=1&per_page=200
func (c *HTTPAPIClient) ListAddresses(ctx context.Context, apiKey string, kind AddressKind) (*AddressListResponse, error) {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("per_page", "200")

	var result AddressListResponse
	if err := c.call(ctx, "addresses", http.MethodGet, "public/addresses/"+string(kind), apiKey, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrices computes live prices.
// POST public/orders/prices
func (c *HTTPAPIClient) GetPrices(ctx context.Context, apiKey string, req *OrderRequest) (*PricesResponse, error) {
	var result PricesResponse
	if err := c.call(ctx, "prices", http.MethodPost, "public/orders/prices", apiKey, nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFixedLocations lists lockers.
// GET public/locations/fixedlocations?country_code&carrier_id=a,b&locality_name&county_name
func (c *HTTPAPIClient) GetFixedLocations(ctx context.Context, apiKey string, q LocationQuery) (*FixedLocationsResponse, error) {
	ids := make([]string, len(q.CarrierIDs))
	for i, id := range q.CarrierIDs {
		ids[i] = strconv.Itoa(id)
	}

	query := url.Values{}
	query.Set("country_code", q.CountryCode)
	query.Set("carrier_id", strings.Join(ids, ","))
	query.Set("locality_name", q.LocalityName)
	query.Set("county_name", q.CountyName)

	var result FixedLocationsResponse
	if err := c.call(ctx, "fixedlocations", http.MethodGet, "public/locations/fixedlocations", apiKey, query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateOrder places an order.
// POST public/orders
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, apiKey string, req *OrderRequest) (*OrderResponse, error) {
	var result OrderResponse
	if err := c.call(ctx, "orders", http.MethodPost, "public/orders", apiKey, nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call performs a request and decodes a 200 response into out.
func (c *HTTPAPIClient) call(ctx context.Context, operation, method, path, apiKey string, query url.Values, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, apiKey, query, body)
	if err != nil {
		return shipping.NewCourierError(operation, "TRANSPORT", "request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(operation, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shipping.NewCourierError(operation, "INVALID_JSON", "failed to decode response").
			WithStatusCode(resp.StatusCode).
			WithCause(fmt.Errorf("%w: %v", shipping.ErrInvalidResponse, err))
	}
	return nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path, apiKey string, query url.Values, body interface{}) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("User-Agent", "parcelgate/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from a non-200 response.
func (c *HTTPAPIClient) parseError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
	var apiErr errorBody
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		} else if apiErr.Error != "" {
			msg = apiErr.Error
		}
	}

	courierErr := shipping.NewCourierError(operation, fmt.Sprintf("HTTP_%d", resp.StatusCode), msg).
		WithStatusCode(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		courierErr.WithCause(shipping.ErrAuthenticationFailed)
	case resp.StatusCode == http.StatusTooManyRequests:
		courierErr.WithCause(shipping.ErrRateLimitExceeded).WithRetryable(true)
	case resp.StatusCode >= http.StatusInternalServerError:
		courierErr.WithCause(shipping.ErrServiceUnavailable).WithRetryable(true)
	}
	return courierErr
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
