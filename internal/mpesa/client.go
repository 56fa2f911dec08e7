package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured is returned on first use when any Daraja credential
// is missing from the environment.
var ErrNotConfigured = errors.New("mpesa credentials not configured")

// GatewayError wraps a rejection from the Daraja API, either on the
// token fetch or on the STK push itself.
type GatewayError struct {
	Op     string
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	BaseURL        string
	CallbackURL    string
}

type STKPushRequest struct {
	Phone            string
	Amount           int
	AccountReference string
	Description      string
}

type STKPushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
}

// Gateway is the surface handlers depend on; tests substitute a fake.
type Gateway interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

type Client struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// accessToken fetches a fresh short-lived bearer token. Daraja tokens
// expire quickly, so no caching.
func (m *Client) accessToken(ctx context.Context) (string, error) {
	if m.config.ConsumerKey == "" || m.config.ConsumerSecret == "" {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, "GET", m.config.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(m.config.ConsumerKey, m.config.ConsumerSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &GatewayError{Op: "token fetch", Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", &GatewayError{Op: "token fetch", Status: resp.StatusCode, Body: "empty access token"}
	}

	return result.AccessToken, nil
}

// password is base64(shortcode + passkey + timestamp), per the Daraja
// STK push contract.
func (m *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(m.config.ShortCode + m.config.Passkey + timestamp))
}

func (m *Client) STKPush(ctx context.Context, pushReq STKPushRequest) (*STKPushResponse, error) {
	if m.config.ShortCode == "" || m.config.Passkey == "" {
		return nil, ErrNotConfigured
	}

	accessToken, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := m.now().UTC().Format("20060102150405")

	payload := map[string]interface{}{
		"BusinessShortCode": m.config.ShortCode,
		"Password":          m.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            pushReq.Amount,
		"PartyA":            pushReq.Phone,
		"PartyB":            m.config.ShortCode,
		"PhoneNumber":       pushReq.Phone,
		"CallBackURL":       m.config.CallbackURL,
		"AccountReference":  pushReq.AccountReference,
		"TransactionDesc":   pushReq.Description,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.config.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa stk push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &GatewayError{Op: "stk push", Status: resp.StatusCode, Body: string(body)}
	}

	var result STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}
