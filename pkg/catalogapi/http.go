// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalogapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// HTTPClient talks to the remote catalog over JSON/HTTP.
type HTTPClient struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
	firstByte  *expiremap.ExpireMap[time.Time, time.Duration]
	total      *expiremap.ExpireMap[time.Time, time.Duration]
	baseURL    string
	token      string
	timeout    time.Duration
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the API at baseURL. Every call runs under
// timeout; zero disables the per-call timeout.
func NewHTTPClient(baseURL, token string, timeout time.Duration, log *zap.SugaredLogger) *HTTPClient {
	if log == nil {
		log = logger.For(logger.ComponentCatalogClient)
	}

	return &HTTPClient{
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		log:        log,
		firstByte:  newLatencyWindow(),
		total:      newLatencyWindow(),
		baseURL:    baseURL,
		token:      token,
		timeout:    timeout,
	}
}

// HTTP returns the underlying *http.Client, e.g. to intercept it in tests.
func (c *HTTPClient) HTTP() *http.Client {
	return c.httpClient
}

// Latency returns latency statistics of the last five minutes.
func (c *HTTPClient) Latency() Latency {
	return Latency{
		FirstByte: calculateLatency(c.firstByte),
		Total:     calculateLatency(c.total),
	}
}

func (c *HTTPClient) BatchProducts(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	return postJSON[BatchResponse](ctx, c, ProductsBatchEndpoint, req)
}

func (c *HTTPClient) BatchVariations(ctx context.Context, parent catalog.RowID, req BatchRequest) (*BatchResponse, error) {
	return postJSON[BatchResponse](ctx, c, VariationsBatchEndpoint(parent), req)
}

func (c *HTTPClient) Reorder(ctx context.Context, req ReorderRequest) (*ReorderResponse, error) {
	return postJSON[ReorderResponse](ctx, c, ProductsReorderEndpoint, req)
}

func (c *HTTPClient) AppendHistory(ctx context.Context, record *diff.Record) error {
	_, err := postJSON[struct{}](ctx, c, HistoryEndpoint, record)

	return err
}

// postJSON posts data to endpoint and decodes the response into R. Transport
// failures and non-2xx statuses are returned as *standarderrors.NetworkError.
func postJSON[R any](ctx context.Context, c *HTTPClient, endpoint Endpoint, data any) (result *R, responseErr error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	op := string(endpoint)

	requestURL, err := url.JoinPath(c.baseURL, op)
	if err != nil {
		return nil, err
	}

	body, err := safejson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var firstByte time.Duration

	requestStart := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Since(requestStart)
		},
	}

	response, err := c.httpClient.Do(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
	if err != nil {
		metrics.ObserveRemoteCall(op, 0, time.Since(requestStart))
		metrics.IncErrorCount(metrics.ComponentCatalogClient, op)

		return nil, &standarderrors.NetworkError{Op: op, Err: enhanceConnectionError(err)}
	}

	defer func() {
		if err := response.Body.Close(); err != nil {
			c.log.Debugf("Error closing response body: %v", err)
		}
	}()

	bodyBytes, err := io.ReadAll(response.Body)

	elapsed := time.Since(requestStart)
	now := time.Now()
	c.firstByte.Set(now, firstByte)
	c.total.Set(now, elapsed)
	metrics.ObserveRemoteCall(op, response.StatusCode, elapsed)

	if err != nil {
		return nil, &standarderrors.NetworkError{Op: op, StatusCode: response.StatusCode, Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		if response.StatusCode == http.StatusUnauthorized {
			return nil, &standarderrors.NetworkError{
				Op:         op,
				StatusCode: response.StatusCode,
				Err:        errors.New("unauthorized: the API token is invalid or expired"),
			}
		}

		return nil, &standarderrors.NetworkError{
			Op:         op,
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("error response code: %s: %s", response.Status, truncate(string(bodyBytes), 200)),
		}
	}

	result = new(R)
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return result, nil
	}

	if err := safejson.Unmarshal(bodyBytes, result); err != nil {
		return nil, &standarderrors.NetworkError{
			Op:         op,
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	c.log.Debugf("POST %s: %d in %s", op, response.StatusCode, elapsed)

	return result, nil
}

// enhanceConnectionError adds detailed context to common connection errors.
func enhanceConnectionError(err error) error {
	switch {
	case strings.Contains(err.Error(), "EOF"):
		return fmt.Errorf("connection closed unexpectedly before receiving response: %w", err)
	case strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded"):
		return fmt.Errorf("request timed out: %w", err)
	case strings.Contains(err.Error(), "connection refused"):
		return fmt.Errorf("connection refused: %w", err)
	default:
		return fmt.Errorf("connection error: %w", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
