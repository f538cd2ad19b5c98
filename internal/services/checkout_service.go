package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/models"
)

// CheckoutService is the HTTP client for the external payment
// processor. Network failures and 5xx responses are retried with a
// linear backoff before surfacing as a transient GatewayError; a
// declined payment comes back as a normal session status, never as an
// error.
type CheckoutService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

const (
	gatewayMaxAttempts = 3
	gatewayBackoffStep = 500 * time.Millisecond
)

// CheckoutSessionRequest is the payload sent to the processor when
// opening a hosted checkout session
type CheckoutSessionRequest struct {
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	Reference   string `json:"reference"` // our session ID
	Description string `json:"description,omitempty"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

// CheckoutSessionResponse is the processor's view of a session
type CheckoutSessionResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Status      string `json:"status"` // "open", "complete", "expired"
	PaymentDone bool   `json:"payment_done"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Message     string `json:"message,omitempty"`
}

// Processor session statuses
const (
	ProcessorStatusOpen     = "open"
	ProcessorStatusComplete = "complete"
	ProcessorStatusExpired  = "expired"
	ProcessorStatusFailed   = "failed"
)

// NewCheckoutService creates a new checkout client
func NewCheckoutService(cfg *config.PaymentConfig, logger *logrus.Logger) *CheckoutService {
	return &CheckoutService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateSession opens a hosted checkout session at the processor
func (s *CheckoutService) CreateSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	resp, err := s.doWithRetry(ctx, http.MethodPost, s.config.BaseURL+"/checkout/sessions", body)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"processor_id": resp.ID,
		"reference":    req.Reference,
		"amount":       req.Amount,
	}).Info("Checkout session created")

	return resp, nil
}

// GetSession fetches the current state of a processor session
func (s *CheckoutService) GetSession(ctx context.Context, processorID string) (*CheckoutSessionResponse, error) {
	url := fmt.Sprintf("%s/checkout/sessions/%s", s.config.BaseURL, processorID)
	return s.doWithRetry(ctx, http.MethodGet, url, nil)
}

// doWithRetry performs the request, retrying transport errors and 5xx
// responses. 4xx responses are returned to the caller unretried.
func (s *CheckoutService) doWithRetry(ctx context.Context, method, url string, body []byte) (*CheckoutSessionResponse, error) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= gatewayMaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * gatewayBackoffStep
			select {
			case <-ctx.Done():
				return nil, &models.GatewayError{Op: method + " " + url, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build processor request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"url":     url,
			}).Warn("Payment processor request failed")
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("processor returned %d", resp.StatusCode)
			lastStatus = resp.StatusCode
			s.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  resp.StatusCode,
				"url":     url,
			}).Warn("Payment processor server error")
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, models.ErrSessionNotFound
		}

		if resp.StatusCode >= 400 {
			return nil, &models.GatewayError{
				Op:         method + " " + url,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("processor rejected request: %s", string(respBody)),
			}
		}

		var out CheckoutSessionResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("failed to decode processor response: %w", err)
		}
		return &out, nil
	}

	return nil, &models.GatewayError{
		Op:         method + " " + url,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// MapProcessorStatus translates a processor session status to ours
func MapProcessorStatus(resp *CheckoutSessionResponse) models.SessionStatus {
	switch resp.Status {
	case ProcessorStatusComplete:
		if resp.PaymentDone {
			return models.SessionPaid
		}
		return models.SessionFailed
	case ProcessorStatusExpired:
		return models.SessionExpired
	case ProcessorStatusFailed:
		return models.SessionFailed
	default:
		return models.SessionOpen
	}
}
