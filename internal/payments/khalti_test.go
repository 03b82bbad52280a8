package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKhaltiServer(t *testing.T, lookupStatus, transactionID string, initiateBody *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key test-secret", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/epayment/initiate/":
			if initiateBody != nil {
				require.NoError(t, json.NewDecoder(r.Body).Decode(initiateBody))
			}
			json.NewEncoder(w).Encode(map[string]string{
				"pidx":        "pidx-123",
				"payment_url": "https://test-pay.khalti.com/?pidx=pidx-123",
			})
		case "/epayment/lookup/":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"pidx":           "pidx-123",
				"status":         lookupStatus,
				"transaction_id": transactionID,
				"total_amount":   100000,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newKhaltiGateway(baseURL string) *KhaltiGateway {
	return NewKhaltiGateway(&KhaltiConfig{
		SecretKey: "test-secret",
		BaseURL:   baseURL,
		ReturnURL: "https://api.example.com/v1/bookings/payment/success",
	})
}

func TestKhaltiInitiate_ConvertsToPaisa(t *testing.T) {
	var body map[string]interface{}
	server := newKhaltiServer(t, "", "", &body)
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	result, err := gw.BuildInitiationRequest(context.Background(), &InitiationInput{
		OrderID:   "order-1",
		EventName: "GopherCon Kathmandu",
		Amount:    1000,
	})

	require.NoError(t, err)
	// 1000 rupees = 100000 paisa; the adapter is the only place that converts.
	assert.Equal(t, float64(100000), body["amount"])
	assert.Equal(t, "order-1", body["purchase_order_id"])
	assert.Equal(t, "GopherCon Kathmandu", body["purchase_order_name"])
	assert.Equal(t, "pidx-123", result.Pidx)
	assert.Equal(t, "https://test-pay.khalti.com/?pidx=pidx-123", result.PaymentURL)
	assert.Equal(t, "pidx-123", result.Details.Pidx)
}

func TestKhaltiVerify_Completed(t *testing.T) {
	server := newKhaltiServer(t, "Completed", "TX1", nil)
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	outcome, err := gw.Verify(context.Background(), &CallbackData{Pidx: "pidx-123"}, &PaymentDetails{})

	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Equal(t, "TX1", outcome.TransactionID)
	assert.Equal(t, "Completed", outcome.RawStatus)
}

func TestKhaltiVerify_PendingIsVerifiedFailure(t *testing.T) {
	server := newKhaltiServer(t, "Pending", "", nil)
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	outcome, err := gw.Verify(context.Background(), &CallbackData{Pidx: "pidx-123"}, &PaymentDetails{})

	require.NoError(t, err)
	assert.False(t, outcome.OK)
	assert.Equal(t, "Pending", outcome.RawStatus)
}

func TestKhaltiVerify_CompletedWithoutTransactionIDFails(t *testing.T) {
	server := newKhaltiServer(t, "Completed", "", nil)
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	outcome, err := gw.Verify(context.Background(), &CallbackData{Pidx: "pidx-123"}, &PaymentDetails{})

	require.NoError(t, err)
	assert.False(t, outcome.OK)
}

func TestKhaltiVerify_FallsBackToStoredPidx(t *testing.T) {
	server := newKhaltiServer(t, "Completed", "TX1", nil)
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	outcome, err := gw.Verify(context.Background(), &CallbackData{}, &PaymentDetails{Pidx: "pidx-123"})

	require.NoError(t, err)
	assert.True(t, outcome.OK)
}

func TestKhaltiVerify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	gw := newKhaltiGateway(server.URL)
	outcome, err := gw.Verify(context.Background(), &CallbackData{Pidx: "pidx-123"}, &PaymentDetails{})

	assert.True(t, errors.Is(err, ErrGatewayUnreachable))
	assert.False(t, outcome.OK)
	assert.Equal(t, "UNREACHABLE", outcome.RawStatus)
}

func TestKhaltiInitiate_MissingPidxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gw := newKhaltiGateway(server.URL)
	_, err := gw.BuildInitiationRequest(context.Background(), &InitiationInput{OrderID: "order-1", Amount: 1000})

	assert.True(t, errors.Is(err, ErrGatewayUnreachable))
}
