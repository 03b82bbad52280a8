package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHMAC signs the sorted key=value parameter set with the
	// merchant secret. SignatureDigest is the older pipe-delimited plain
	// hash some merchant accounts still expect.
	SignatureHMAC   = "hmac"
	SignatureDigest = "digest"
)

// esewaDigestOrder is the field order the legacy digest convention mandates.
var esewaDigestOrder = []string{"amt", "psc", "pdc", "txAmt", "tAmt", "pid", "scd"}

type EsewaConfig struct {
	MerchantCode   string
	SecretKey      string
	PaymentURL     string
	StatusCheckURL string
	SuccessURL     string
	FailureURL     string
	SignatureMode  string
}

type EsewaGateway struct {
	cfg    *EsewaConfig
	client *http.Client
}

func NewEsewaGateway(cfg *EsewaConfig) *EsewaGateway {
	return &EsewaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *EsewaGateway) Name() string {
	return "eSewa"
}

func (g *EsewaGateway) sign(params map[string]string) string {
	if g.cfg.SignatureMode == SignatureDigest {
		values := make([]string, 0, len(esewaDigestOrder))
		for _, field := range esewaDigestOrder {
			values = append(values, params[field])
		}
		return SignDelimited(values, "|")
	}
	return SignSortedParams(params, g.cfg.SecretKey)
}

// BuildInitiationRequest assembles the form the client posts to eSewa's
// checkout page. Amounts stay in rupees; eSewa still wants the charge
// fields present even when zero.
func (g *EsewaGateway) BuildInitiationRequest(ctx context.Context, in *InitiationInput) (*InitiationResult, error) {
	amount := strconv.Itoa(in.Amount)
	params := map[string]string{
		"amt":   amount,
		"psc":   "0",
		"pdc":   "0",
		"txAmt": "0",
		"tAmt":  amount,
		"pid":   in.OrderID,
		"scd":   g.cfg.MerchantCode,
		"su":    g.cfg.SuccessURL,
		"fu":    g.cfg.FailureURL,
	}

	signature := g.sign(params)

	return &InitiationResult{
		PaymentURL: g.cfg.PaymentURL,
		Params:     params,
		Signature:  signature,
		Details: &PaymentDetails{
			OrderID:    in.OrderID,
			PaymentURL: g.cfg.PaymentURL,
			Params:     params,
			Signature:  signature,
		},
	}, nil
}

// Verify recomputes the signature over the stored request parameters and,
// only if it matches, asks eSewa's status endpoint whether the transaction
// really settled. The redirect alone is never trusted.
func (g *EsewaGateway) Verify(ctx context.Context, cb *CallbackData, stored *PaymentDetails) (*VerificationOutcome, error) {
	expected := g.sign(stored.Params)
	if !SignatureEqual(expected, cb.Signature) {
		return nil, &SignatureMismatchError{Expected: expected, Received: cb.Signature}
	}

	status, err := g.checkStatus(ctx, cb.RefID, stored)
	if err != nil {
		return &VerificationOutcome{OK: false, RawStatus: "UNREACHABLE"}, err
	}

	switch strings.ToUpper(status) {
	case "SUCCESS", "COMPLETE":
		return &VerificationOutcome{OK: true, TransactionID: cb.RefID, RawStatus: status}, nil
	default:
		return &VerificationOutcome{OK: false, RawStatus: status}, nil
	}
}

func (g *EsewaGateway) checkStatus(ctx context.Context, refID string, stored *PaymentDetails) (string, error) {
	payload := map[string]string{
		"refId": refID,
		"pid":   stored.OrderID,
		"amt":   stored.Params["tAmt"],
		"scd":   g.cfg.MerchantCode,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.StatusCheckURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: esewa status check: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading esewa response: %v", ErrGatewayUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: esewa status check returned %d", ErrGatewayUnreachable, resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decoding esewa response: %v", ErrGatewayUnreachable, err)
	}
	return out.Status, nil
}
