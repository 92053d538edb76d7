// Package gateway talks to the hosted payment gateway (Instamojo API v1.1).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Gateway statuses as reported by the API.
const (
	RequestStatusPending   = "Pending"
	RequestStatusCompleted = "Completed"
	PaymentStatusCredit    = "Credit"
	PaymentStatusFailed    = "Failed"
)

// Config carries the credentials and endpoints of one gateway account.
type Config struct {
	BaseURL     string
	APIKey      string
	AuthToken   string
	Salt        string
	RedirectURL string
	WebhookURL  string
	Timeout     time.Duration
}

// Client creates and looks up hosted payment requests.
type Client interface {
	CreatePaymentRequest(ctx context.Context, in PaymentRequestInput) (*PaymentRequest, error)
	GetPaymentRequest(ctx context.Context, requestID string) (*PaymentRequest, error)
}

// PaymentRequestInput describes the hosted payment page to create.
type PaymentRequestInput struct {
	Purpose    string
	Amount     float64
	BuyerName  string
	BuyerEmail string
	BuyerPhone string
}

// GatewayPayment is one payment attempt against a request.
type GatewayPayment struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentRequest is the gateway's view of a hosted payment request.
type PaymentRequest struct {
	ID       string           `json:"id"`
	Status   string           `json:"status"`
	LongURL  string           `json:"longurl"`
	Amount   string           `json:"amount"`
	Purpose  string           `json:"purpose"`
	Payments []GatewayPayment `json:"payments"`
}

// CreditedPayment returns the first credited payment, if any.
func (r *PaymentRequest) CreditedPayment() (GatewayPayment, bool) {
	for _, p := range r.Payments {
		if p.Status == PaymentStatusCredit {
			return p, true
		}
	}
	return GatewayPayment{}, false
}

// IsPaid reports whether the request completed with a credited payment.
func (r *PaymentRequest) IsPaid() bool {
	_, ok := r.CreditedPayment()
	return r.Status == RequestStatusCompleted && ok
}

type paymentRequestResponse struct {
	Success        bool            `json:"success"`
	Message        json.RawMessage `json:"message,omitempty"`
	PaymentRequest PaymentRequest  `json:"payment_request"`
}

type instamojoClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewInstamojoClient builds a gateway client from cfg.
func NewInstamojoClient(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &instamojoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreatePaymentRequest creates a hosted payment page and returns its id and URL.
func (c *instamojoClient) CreatePaymentRequest(ctx context.Context, in PaymentRequestInput) (*PaymentRequest, error) {
	form := url.Values{}
	form.Set("purpose", in.Purpose)
	form.Set("amount", strconv.FormatFloat(in.Amount, 'f', 2, 64))
	form.Set("buyer_name", in.BuyerName)
	form.Set("email", in.BuyerEmail)
	if in.BuyerPhone != "" {
		form.Set("phone", in.BuyerPhone)
	}
	form.Set("redirect_url", c.cfg.RedirectURL)
	form.Set("webhook", c.cfg.WebhookURL)
	form.Set("send_email", "false")
	form.Set("allow_repeated_payments", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment-requests/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	log.Printf("Gateway payment request %s created (amount %s)", resp.PaymentRequest.ID, resp.PaymentRequest.Amount)
	return &resp.PaymentRequest, nil
}

// GetPaymentRequest fetches the current state of a payment request.
func (c *instamojoClient) GetPaymentRequest(ctx context.Context, requestID string) (*PaymentRequest, error) {
	endpoint := fmt.Sprintf("%s/payment-requests/%s/", c.cfg.BaseURL, url.PathEscape(requestID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request lookup: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return &resp.PaymentRequest, nil
}

func (c *instamojoClient) do(req *http.Request) (*paymentRequestResponse, error) {
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var out paymentRequestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid gateway response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode >= 300 || !out.Success {
		return nil, fmt.Errorf("gateway returned status %d: %s", res.StatusCode, string(out.Message))
	}
	if out.PaymentRequest.ID == "" {
		return nil, fmt.Errorf("gateway response missing payment request id")
	}
	return &out, nil
}
