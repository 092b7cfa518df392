package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
)

// Options controls how the payment provider client is configured.
type Options struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	InitiatorName  string
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client is the narrow outbound contract the settlement core consumes:
// initiate a collection, initiate a transfer, each returning correlation ids.
// Bearer tokens are acquired lazily and cached until shortly before expiry.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortcode      string
	initiatorName  string
	httpClient     *http.Client
	logger         *infra.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("mpesa: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:        opts.BaseURL,
		consumerKey:    opts.ConsumerKey,
		consumerSecret: opts.ConsumerSecret,
		shortcode:      opts.Shortcode,
		initiatorName:  opts.InitiatorName,
		httpClient:     httpClient,
		logger:         opts.Logger,
	}, nil
}

// CollectionRequest asks the provider to prompt a payer for amountCents.
type CollectionRequest struct {
	Phone            string
	AmountCents      int64
	AccountReference string
	Description      string
}

// CollectionResponse carries the correlation ids a donation callback is later
// matched by.
type CollectionResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
}

// TransferRequest asks the provider to send amountCents to a phone number.
// OriginatorConversationID is caller-supplied so a retry reuses the same key.
type TransferRequest struct {
	Phone                    string
	AmountCents              int64
	OriginatorConversationID string
	Remarks                  string
}

// TransferResponse carries the provider-side correlation id pair.
type TransferResponse struct {
	ConversationID           string
	OriginatorConversationID string
}

// InitiateCollection starts an STK push collection.
func (c *Client) InitiateCollection(ctx context.Context, req CollectionRequest) (CollectionResponse, error) {
	payload := map[string]any{
		"BusinessShortCode": c.shortcode,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            centsToUnits(req.AmountCents),
		"PartyA":            req.Phone,
		"PartyB":            c.shortcode,
		"PhoneNumber":       req.Phone,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}
	var out struct {
		MerchantRequestID string `json:"MerchantRequestID"`
		CheckoutRequestID string `json:"CheckoutRequestID"`
	}
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return CollectionResponse{}, err
	}
	return CollectionResponse{
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: out.CheckoutRequestID,
	}, nil
}

// InitiateTransfer starts a business-to-customer transfer.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (TransferResponse, error) {
	payload := map[string]any{
		"OriginatorConversationID": req.OriginatorConversationID,
		"InitiatorName":            c.initiatorName,
		"CommandID":                "BusinessPayment",
		"Amount":                   centsToUnits(req.AmountCents),
		"PartyA":                   c.shortcode,
		"PartyB":                   req.Phone,
		"Remarks":                  req.Remarks,
	}
	var out struct {
		ConversationID           string `json:"ConversationID"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
	}
	if err := c.post(ctx, "/mpesa/b2c/v1/paymentrequest", payload, &out); err != nil {
		return TransferResponse{}, err
	}
	resp := TransferResponse{
		ConversationID:           out.ConversationID,
		OriginatorConversationID: out.OriginatorConversationID,
	}
	if resp.OriginatorConversationID == "" {
		resp.OriginatorConversationID = req.OriginatorConversationID
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mpesa: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mpesa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("mpesa: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logger != nil {
			c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("provider rejected request")
		}
		return fmt.Errorf("mpesa: %s returned %d: %s", path, resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mpesa: decode response: %w", err)
	}
	return nil
}

// bearerToken returns the cached token or fetches a fresh one. A 30 second
// margin before expiry avoids using a token that dies in flight.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: build token request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token endpoint returned %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("mpesa: decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("mpesa: token response missing access_token")
	}

	ttl := 3600
	if out.ExpiresIn != "" {
		if n, err := strconv.Atoi(out.ExpiresIn); err == nil && n > 0 {
			ttl = n
		}
	}
	c.token = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(ttl) * time.Second)
	if c.logger != nil {
		c.logger.Debug().Time("expiry", c.tokenExpiry).Msg("provider token refreshed")
	}
	return c.token, nil
}

func centsToUnits(cents int64) int64 {
	// The provider transacts in whole currency units.
	return cents / 100
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
