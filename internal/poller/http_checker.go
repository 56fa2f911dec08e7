package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPChecker polls the service's payment status endpoint.
type HTTPChecker struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	checkURL := fmt.Sprintf("%s/v1/payments/status?paymentId=%s", h.BaseURL, url.QueryEscape(paymentID))

	req, err := http.NewRequestWithContext(ctx, "GET", checkURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	if !status.Status.Valid() {
		return nil, fmt.Errorf("unknown payment status %q", string(status.Status))
	}

	return &status, nil
}
