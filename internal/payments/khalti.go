package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type KhaltiConfig struct {
	SecretKey string
	BaseURL   string
	ReturnURL string
}

// KhaltiGateway integrates Khalti's ePayment API. Khalti computes no local
// signature; integrity comes from the server-side lookup call keyed by the
// pidx token it issues at initiation.
type KhaltiGateway struct {
	cfg    *KhaltiConfig
	client *http.Client
}

func NewKhaltiGateway(cfg *KhaltiConfig) *KhaltiGateway {
	return &KhaltiGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *KhaltiGateway) Name() string {
	return "Khalti"
}

// BuildInitiationRequest registers the purchase with Khalti and returns the
// hosted payment page URL. Khalti wants amounts in paisa; the x100 here is
// the single place that conversion happens.
func (g *KhaltiGateway) BuildInitiationRequest(ctx context.Context, in *InitiationInput) (*InitiationResult, error) {
	payload := map[string]interface{}{
		"amount":              in.Amount * 100,
		"purchase_order_id":   in.OrderID,
		"purchase_order_name": in.EventName,
		"return_url":          g.cfg.ReturnURL,
		"website_url":         g.cfg.ReturnURL,
	}

	var out struct {
		Pidx       string `json:"pidx"`
		PaymentURL string `json:"payment_url"`
	}
	if err := g.post(ctx, "/epayment/initiate/", payload, &out); err != nil {
		return nil, err
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, fmt.Errorf("%w: khalti initiate returned no pidx or payment_url", ErrGatewayUnreachable)
	}

	return &InitiationResult{
		PaymentURL: out.PaymentURL,
		Pidx:       out.Pidx,
		Details: &PaymentDetails{
			OrderID:    in.OrderID,
			PaymentURL: out.PaymentURL,
			Pidx:       out.Pidx,
			Params: map[string]string{
				"amount":            fmt.Sprintf("%d", in.Amount*100),
				"purchase_order_id": in.OrderID,
			},
		},
	}, nil
}

// Verify looks the transaction up by pidx. Only an explicit "Completed"
// status carrying a transaction id counts as success; Pending, Expired,
// "User canceled", Refunded and everything else are verified failures, not
// errors.
func (g *KhaltiGateway) Verify(ctx context.Context, cb *CallbackData, stored *PaymentDetails) (*VerificationOutcome, error) {
	pidx := cb.Pidx
	if pidx == "" {
		pidx = stored.Pidx
	}

	var out struct {
		Pidx          string `json:"pidx"`
		TotalAmount   int    `json:"total_amount"`
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
	}
	if err := g.post(ctx, "/epayment/lookup/", map[string]interface{}{"pidx": pidx}, &out); err != nil {
		return &VerificationOutcome{OK: false, RawStatus: "UNREACHABLE"}, err
	}

	if out.Status == "Completed" && out.TransactionID != "" {
		return &VerificationOutcome{OK: true, TransactionID: out.TransactionID, RawStatus: out.Status}, nil
	}
	return &VerificationOutcome{OK: false, RawStatus: out.Status}, nil
}

func (g *KhaltiGateway) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: khalti %s: %v", ErrGatewayUnreachable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading khalti response: %v", ErrGatewayUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: khalti %s returned %d: %s", ErrGatewayUnreachable, path, resp.StatusCode, string(raw))
	}

	return json.Unmarshal(raw, out)
}
