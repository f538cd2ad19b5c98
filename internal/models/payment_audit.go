package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB maps to a PostgreSQL jsonb column
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(bytes, j)
}

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventSessionOpened       PaymentEventType = "session_opened"
	PaymentEventStatusChecked       PaymentEventType = "status_checked"
	PaymentEventWebhookReceived     PaymentEventType = "webhook_received"
	PaymentEventSessionPaid         PaymentEventType = "session_paid"
	PaymentEventSessionFailed       PaymentEventType = "session_failed"
	PaymentEventSessionExpired      PaymentEventType = "session_expired"
	PaymentEventBookingConfirmed    PaymentEventType = "booking_confirmed"
	PaymentEventConfirmationFailed  PaymentEventType = "booking_confirmation_failed"
	PaymentEventGatewayError        PaymentEventType = "gateway_error"
	PaymentEventAmountMismatch      PaymentEventType = "amount_mismatch"
	PaymentEventDuplicateDelivery   PaymentEventType = "duplicate_delivery"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend   PaymentEventSource = "backend"
	PaymentSourceWebhook   PaymentEventSource = "webhook"
	PaymentSourceProcessor PaymentEventSource = "processor_api"
	PaymentSourceUser      PaymentEventSource = "user"
)

// PaymentAudit is an immutable audit log entry for payment events
type PaymentAudit struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SessionID   *uuid.UUID `json:"session_id,omitempty" db:"session_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	ProcessorID *string    `json:"processor_id,omitempty" db:"processor_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	SessionStatus *string `json:"session_status,omitempty" db:"session_status"`

	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	HTTPStatusCode *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	ErrorMessage   *string `json:"error_message,omitempty" db:"error_message"`

	IsDuplicate    bool    `json:"is_duplicate" db:"is_duplicate"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" db:"idempotency_key"`

	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo *string `json:"device_info,omitempty" db:"device_info"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetSession sets the session and booking the event belongs to
func (pa *PaymentAudit) SetSession(sessionID, bookingID uuid.UUID) *PaymentAudit {
	pa.SessionID = &sessionID
	pa.BookingID = &bookingID
	return pa
}

// SetProcessorID sets the processor-side session identifier
func (pa *PaymentAudit) SetProcessorID(id string) *PaymentAudit {
	pa.ProcessorID = &id
	return pa
}

// SetAmounts sets and verifies amounts, returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetSessionStatus records the session status observed at event time
func (pa *PaymentAudit) SetSessionStatus(status SessionStatus) *PaymentAudit {
	s := string(status)
	pa.SessionStatus = &s
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetHTTPStatus records the processor HTTP status
func (pa *PaymentAudit) SetHTTPStatus(code int) *PaymentAudit {
	pa.HTTPStatusCode = &code
	return pa
}

// SetRawBody stores the raw payload before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetMetadata sets request metadata captured from the caller
func (pa *PaymentAudit) SetMetadata(ip, userAgent, deviceInfo string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if deviceInfo != "" {
		pa.DeviceInfo = &deviceInfo
	}
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = &key
	return pa
}

// MarkAsDuplicate marks this event as a duplicate delivery
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
