package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	tokenCalls atomic.Int32
	capture    http.HandlerFunc
	getOrder   http.HandlerFunc
}

func (f *fakePayPal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/oauth2/token":
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		units := body["purchase_units"].([]any)
		amt := units[0].(map[string]any)["amount"].(map[string]any)
		if amt["value"] != "8.00" || amt["currency_code"] != "USD" || r.Header.Get("PayPal-Request-Id") != "ref-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"CREATED","links":[{"rel":"self","href":"https://paypal/self"},{"rel":"approve","href":"https://paypal/approve"}]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/ORDER-1/capture":
		f.capture(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/ORDER-1":
		f.getOrder(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const capturedOrder = `{"id":"ORDER-1","status":"COMPLETED","payer":{"email_address":"reader@example.com"},
"purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"8.00"}}]}}]}`

func newTestProcessor(t *testing.T, fake *fakePayPal, timeout time.Duration) *Processor {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	processor, err := New(Options{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		HTTPClient:   srv.Client(),
		Timeout:      timeout,
	})
	require.NoError(t, err)
	return processor
}

func TestCreateOrder(t *testing.T) {
	fake := &fakePayPal{}
	processor := newTestProcessor(t, fake, time.Second)

	order, err := processor.CreateOrder(context.Background(), paymentdomain.OrderRequest{
		AmountCents: 800,
		Currency:    "usd",
		Reference:   "ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, "https://paypal/approve", order.ApprovalURL)

	_, err = processor.CreateOrder(context.Background(), paymentdomain.OrderRequest{AmountCents: 800, Currency: "USD", Reference: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestCaptureOrder(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(capturedOrder))
		},
	}
	processor := newTestProcessor(t, fake, time.Second)

	capture, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", capture.CaptureID)
	assert.Equal(t, "reader@example.com", capture.PayerEmail)
	assert.Equal(t, int64(800), capture.AmountCapturedCents)
	assert.Equal(t, "USD", capture.Currency)
}

func TestCaptureOrderAlreadyCapturedReadsBack(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))
		},
		getOrder: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(capturedOrder))
		},
	}
	processor := newTestProcessor(t, fake, time.Second)

	capture, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", capture.CaptureID)
}

func TestCaptureOrderDeclined(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
		},
	}
	processor := newTestProcessor(t, fake, time.Second)

	_, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
	assert.NotErrorIs(t, err, paymentdomain.ErrProcessor)
}

func TestCaptureOrderNotApprovedIsTransient(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`))
		},
	}
	processor := newTestProcessor(t, fake, time.Second)

	_, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	require.ErrorIs(t, err, paymentdomain.ErrProcessor)
	assert.NotErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
}

func TestCaptureOrderTimeout(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	}
	processor := newTestProcessor(t, fake, 50*time.Millisecond)

	_, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, paymentdomain.ErrProcessorTimeout)
}

func TestCaptureOrderDeclinedCaptureStatus(t *testing.T) {
	fake := &fakePayPal{
		capture: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"DECLINED","amount":{"currency_code":"USD","value":"8.00"}}]}}]}`))
		},
	}
	processor := newTestProcessor(t, fake, time.Second)

	_, err := processor.CaptureOrder(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
}

func TestCredentialsRejected(t *testing.T) {
	srv := httptest.NewServer(&fakePayPal{})
	t.Cleanup(srv.Close)
	processor, err := New(Options{BaseURL: srv.URL, ClientID: "client", ClientSecret: "wrong", HTTPClient: srv.Client(), Timeout: time.Second})
	require.NoError(t, err)

	_, err = processor.CreateOrder(context.Background(), paymentdomain.OrderRequest{AmountCents: 800, Currency: "USD", Reference: "ref-1"})
	require.ErrorIs(t, err, paymentdomain.ErrProcessor)
	assert.NotErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Options{BaseURL: "https://api-m.sandbox.paypal.com"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestAmountConversion(t *testing.T) {
	assert.Equal(t, "8.00", FormatAmount(800, "USD"))
	assert.Equal(t, "0.05", FormatAmount(5, "EUR"))
	assert.Equal(t, "1500", FormatAmount(1500, "JPY"))

	cents, err := ParseAmount("12.34", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cents)

	yen, err := ParseAmount("1500", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), yen)

	_, err = ParseAmount("1.234", "USD")
	assert.Error(t, err)
}
