package transactionstatus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memory_lock "github.com/code-payments/txstatus-server/pkg/lock/memory"
	"github.com/code-payments/txstatus-server/pkg/txstatus/audit"
	"github.com/code-payments/txstatus-server/pkg/txstatus/auth"
	"github.com/code-payments/txstatus-server/pkg/txstatus/callback"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/handler"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
	"github.com/code-payments/txstatus-server/pkg/txstatus/resolver"
	"github.com/code-payments/txstatus-server/pkg/txstatus/substitute"
)

type recordingProcessor struct {
	ack           callback.Ack
	calls         int
	remoteAddress string
	notification  notification.Notification
}

func (p *recordingProcessor) Process(_ context.Context, remoteAddress string, n notification.Notification) *callback.Result {
	p.calls++
	p.remoteAddress = remoteAddress
	p.notification = n
	return &callback.Result{Ack: p.ack}
}

func newTestServer(processor CallbackProcessor, overrides *testOverrides) http.Handler {
	s := NewTransactionStatusServer(context.Background(), processor, withManualTestOverrides(overrides))

	mux := http.NewServeMux()
	for path, h := range s.GetHandlers() {
		mux.HandleFunc(path, h)
	}
	return mux
}

func newFormRequest(method, target string, form url.Values) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func serve(h http.Handler, r *http.Request) (*http.Response, string) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestTransactionStatus_PostForm(t *testing.T) {
	processor := &recordingProcessor{ack: callback.AckOK}
	h := newTestServer(processor, &testOverrides{})

	form := url.Values{
		notification.FieldKey:      {"abc"},
		notification.FieldTxId:     {"ORDER42"},
		notification.FieldTxAction: {notification.TxActionPaid},
	}
	resp, body := serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, form))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "TSOK", body)
	assert.Equal(t, plainTextContentTypeHeaderValue, resp.Header.Get(contentTypeHeaderName))

	require.Equal(t, 1, processor.calls)
	assert.Equal(t, "192.0.2.1", processor.remoteAddress)
	assert.Equal(t, "ORDER42", processor.notification.TxId())
	assert.Equal(t, "abc", processor.notification.Key())
}

func TestTransactionStatus_AckTokensWrittenVerbatim(t *testing.T) {
	for _, ack := range []callback.Ack{
		callback.AckAccessDenied,
		callback.AckInvalidKey,
		callback.AckOrderNotFound,
		callback.AckOK,
		callback.AckNone,
	} {
		h := newTestServer(&recordingProcessor{ack: ack}, &testOverrides{})

		resp, body := serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, url.Values{}))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(ack), body)
	}
}

func TestTransactionStatus_QueryParameters(t *testing.T) {
	processor := &recordingProcessor{ack: callback.AckOK}
	h := newTestServer(processor, &testOverrides{acceptQueryParameters: true})

	resp, body := serve(h, httptest.NewRequest(http.MethodGet, TransactionStatusPath+"?txid=ORDER42&txaction=paid", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "TSOK", body)
	assert.Equal(t, "ORDER42", processor.notification.TxId())

	// Body values win over query parameters
	form := url.Values{notification.FieldTxId: {"ORDER42"}}
	_, _ = serve(h, newFormRequest(http.MethodPost, TransactionStatusPath+"?txid=OTHER&txaction=paid", form))
	assert.Equal(t, "ORDER42", processor.notification.TxId())
	assert.Equal(t, notification.TxActionPaid, processor.notification.TxAction())
}

func TestTransactionStatus_QueryParametersDisabled(t *testing.T) {
	processor := &recordingProcessor{ack: callback.AckOK}
	h := newTestServer(processor, &testOverrides{acceptQueryParameters: false})

	resp, _ := serve(h, httptest.NewRequest(http.MethodGet, TransactionStatusPath+"?txid=ORDER42", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, transactionStatusAllowedPostOnly, resp.Header.Get(allowHeaderName))
	assert.Zero(t, processor.calls)

	form := url.Values{notification.FieldTxAction: {notification.TxActionPaid}}
	_, _ = serve(h, newFormRequest(http.MethodPost, TransactionStatusPath+"?txid=ORDER42", form))
	require.Equal(t, 1, processor.calls)
	assert.Empty(t, processor.notification.TxId())
}

func TestTransactionStatus_UnsupportedMethods(t *testing.T) {
	processor := &recordingProcessor{ack: callback.AckOK}
	h := newTestServer(processor, &testOverrides{acceptQueryParameters: true})

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		resp, _ := serve(h, httptest.NewRequest(method, TransactionStatusPath, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, transactionStatusAllowedWithGet, resp.Header.Get(allowHeaderName))
	}
	assert.Zero(t, processor.calls)
}

func TestTransactionStatus_TrustedProxyHops(t *testing.T) {
	for _, tc := range []struct {
		hops     uint64
		expected string
	}{
		{0, "192.0.2.1"},
		{1, "203.0.113.9"},
		{2, "185.60.20.1"},
		{3, "192.0.2.1"},
	} {
		processor := &recordingProcessor{ack: callback.AckOK}
		h := newTestServer(processor, &testOverrides{trustedProxyHops: tc.hops})

		r := newFormRequest(http.MethodPost, TransactionStatusPath, url.Values{})
		r.Header.Set("X-Forwarded-For", "185.60.20.1, 203.0.113.9")
		_, _ = serve(h, r)

		require.Equal(t, 1, processor.calls)
		assert.Equal(t, tc.expected, processor.remoteAddress, tc.hops)
	}
}

func TestTransactionStatus_ForgedForwardedEntryDenied(t *testing.T) {
	ctx := context.Background()
	dp := data.NewTestDatabaseProvider()
	locks := memory_lock.NewLockManager()

	key := auth.HashPortalKey("portal-secret")
	processor := callback.NewProcessor(
		auth.NewAuthenticator(&allowListValidator{key: key, allowed: "185.60.20.1"}, nil),
		resolver.NewOrderResolver(dp),
		substitute.NewReconciler(dp, locks, substitute.WithEnvConfigs()),
		audit.NewLogger(dp, nil),
		handler.NewDefaultHandler(dp, locks),
	)
	h := newTestServer(processor, &testOverrides{trustedProxyHops: 1})

	form := url.Values{
		notification.FieldKey:      {key},
		notification.FieldTxId:     {"ORDER42"},
		notification.FieldTxAction: {notification.TxActionPaid},
	}

	// An allow-listed address forged by the caller ahead of the one the load
	// balancer appended
	r := newFormRequest(http.MethodPost, TransactionStatusPath, form)
	r.Header.Set("X-Forwarded-For", "185.60.20.1, 203.0.113.9")
	_, body := serve(h, r)
	assert.Equal(t, "Access denied", body)

	_, err := dp.GetAllTransactionStatusesByTxId(ctx, "ORDER42")
	assert.Error(t, err)

	r = newFormRequest(http.MethodPost, TransactionStatusPath, form)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 185.60.20.1")
	_, body = serve(h, r)
	assert.Equal(t, "Order not found", body)
}

func TestTransactionStatus_BodyTooLarge(t *testing.T) {
	processor := &recordingProcessor{ack: callback.AckOK}
	h := newTestServer(processor, &testOverrides{maxBodySize: 16})

	form := url.Values{notification.FieldTxId: {strings.Repeat("a", 128)}}
	resp, body := serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, form))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, plainTextContentTypeHeaderValue, resp.Header.Get(contentTypeHeaderName))
	assert.Empty(t, body)
	assert.Zero(t, processor.calls)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&recordingProcessor{}, &testOverrides{})

	resp, body := serve(h, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, healthyResponseBody, body)

	resp, _ = serve(h, httptest.NewRequest(http.MethodPost, HealthPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type allowListValidator struct {
	key     string
	allowed string
}

func (v *allowListValidator) IsAllowedRemote(_ context.Context, remoteAddress string) bool {
	return remoteAddress == v.allowed
}

func (v *allowListValidator) IsValidKey(_ context.Context, presentedKey string) bool {
	return presentedKey == v.key
}

func TestTransactionStatus_CanceledOrderEndToEnd(t *testing.T) {
	ctx := context.Background()
	dp := data.NewTestDatabaseProvider()
	locks := memory_lock.NewLockManager()

	canceled := &order.Record{
		OrderRef:    "ref_ORDER42",
		TxId:        "ORDER42",
		Status:      order.StatusCanceled,
		Interactive: true,
		Currency:    "EUR",
		AmountTotal: 4200,
	}
	require.NoError(t, dp.CreateOrder(ctx, canceled))

	key := auth.HashPortalKey("portal-secret")
	processor := callback.NewProcessor(
		auth.NewAuthenticator(&allowListValidator{key: key, allowed: "192.0.2.1"}, nil),
		resolver.NewOrderResolver(dp),
		substitute.NewReconciler(dp, locks, substitute.WithEnvConfigs()),
		audit.NewLogger(dp, nil),
		handler.NewDefaultHandler(dp, locks),
	)
	h := newTestServer(processor, &testOverrides{})

	form := url.Values{
		notification.FieldKey:            {key},
		notification.FieldTxId:           {"ORDER42"},
		notification.FieldTxAction:       {notification.TxActionAppointed},
		notification.FieldSequenceNumber: {"0"},
	}
	_, body := serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, form))
	assert.Equal(t, "TSOK", body)

	orders, err := dp.GetAllOrdersByTxId(ctx, "ORDER42")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, order.StatusCanceled, orders[0].Status)
	assert.Equal(t, order.StatusProcessing, orders[1].Status)
	assert.False(t, orders[1].Interactive)

	form.Set(notification.FieldKey, "wrong")
	_, body = serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, form))
	assert.Equal(t, "Key wrong or missing!", body)

	form.Set(notification.FieldKey, key)
	form.Set(notification.FieldTxId, "UNKNOWN123")
	_, body = serve(h, newFormRequest(http.MethodPost, TransactionStatusPath, form))
	assert.Equal(t, "Order not found", body)
}
