package paymongo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/checkout_sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": "cs_123",
				"attributes": map[string]any{
					"checkout_url": "https://checkout.paymongo.com/cs_123",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_abc")
	session, err := client.CreateCheckoutSession(context.Background(), CreateCheckoutSessionRequest{
		LineItems:  []LineItem{{Name: "Pro", Amount: 99900, Currency: "PHP", Quantity: 1}},
		SuccessURL: "https://app.test/success?ref=ref_1",
		CancelURL:  "https://app.test/cancel",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_123", session.ID)
	require.Equal(t, "https://checkout.paymongo.com/cs_123", session.CheckoutURL)

	// Basic auth is base64(secretKey + ":")
	require.Equal(t, "Basic c2tfdGVzdF9hYmM6", gotAuth)

	attrs := gotBody["data"].(map[string]any)["attributes"].(map[string]any)
	require.Equal(t, "https://app.test/success?ref=ref_1", attrs["success_url"])
	require.Len(t, attrs["payment_method_types"], 3)
}

func TestGetCheckoutSessionPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/checkout_sessions/cs_9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": "cs_9",
				"attributes": map[string]any{
					"payment_status": "paid",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_abc")
	session, err := client.GetCheckoutSession(context.Background(), "cs_9")
	require.NoError(t, err)
	require.Equal(t, PaymentStatusPaid, session.PaymentStatus)
}

func TestGatewayErrorDetailPropagated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"detail": "The amount is below the minimum."}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_abc")
	_, err := client.CreatePaymentIntent(context.Background(), CreatePaymentIntentRequest{
		Amount:   100,
		Currency: "PHP",
	})

	var gatewayErr *Error
	require.ErrorAs(t, err, &gatewayErr)
	require.Equal(t, http.StatusPaymentRequired, gatewayErr.StatusCode)
	require.Contains(t, gatewayErr.Detail, "below the minimum")
}

func TestMissingSecretKey(t *testing.T) {
	client := NewClient("https://api.paymongo.com/v1", "")
	_, err := client.GetPaymentIntent(context.Background(), "pi_1")

	var gatewayErr *Error
	require.ErrorAs(t, err, &gatewayErr)
}
