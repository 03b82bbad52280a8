package payments

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnreachable wraps transport failures (timeout, non-2xx)
	// talking to a gateway. The payment may still have succeeded remotely,
	// so callers must surface the ambiguity instead of swallowing it.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// SignatureMismatchError carries both values so the orchestrator can
// audit-log them. A mismatch is never silently accepted.
type SignatureMismatchError struct {
	Expected string
	Received string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("payment signature mismatch: expected %s, received %s", e.Expected, e.Received)
}

// PaymentDetails is the opaque bag stored on the booking ledger: everything
// the verification step needs to recompute or correlate later.
type PaymentDetails struct {
	OrderID    string            `json:"order_id"`
	PaymentURL string            `json:"payment_url"`
	Params     map[string]string `json:"params,omitempty"`
	Signature  string            `json:"signature,omitempty"`
	Pidx       string            `json:"pidx,omitempty"`
}

type InitiationInput struct {
	OrderID   string
	EventName string
	// Amount is in major currency units (rupees). Adapters own any
	// conversion the gateway requires; nothing else multiplies.
	Amount int
}

type InitiationResult struct {
	PaymentURL string
	Params     map[string]string
	Signature  string
	Pidx       string
	Details    *PaymentDetails
}

// CallbackData is the union of the fields the two gateways send back.
type CallbackData struct {
	OrderID       string // eSewa oid / Khalti purchase_order_id
	RefID         string // eSewa refId
	Signature     string // eSewa signature echo
	Pidx          string // Khalti token
	Status        string // Khalti status echo
	TransactionID string // Khalti transaction_id echo
}

// VerificationOutcome is the normalized result of consulting the gateway.
// OK=false with a nil error is an ordinary verified decline, not a fault.
type VerificationOutcome struct {
	OK            bool
	TransactionID string
	RawStatus     string
}

type Gateway interface {
	Name() string
	BuildInitiationRequest(ctx context.Context, in *InitiationInput) (*InitiationResult, error)
	Verify(ctx context.Context, cb *CallbackData, stored *PaymentDetails) (*VerificationOutcome, error)
}
