package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tablepay/pkg/middleware"
)

func newTestRouter(f *fixture) chi.Router {
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware)
	r.Mount("/tables/{tableId}/pay", h.TableRoutes())
	r.Mount("/payments", h.Routes())
	r.Mount("/orders/{orderId}", h.OrderRoutes())
	return r
}

func serve(r http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func intentID(t *testing.T, rec *httptest.ResponseRecorder) int64 {
	t.Helper()
	var body struct {
		Data ResultResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Data.Intent)
	return body.Data.Intent.ID
}

func TestHandlerCashFlow(t *testing.T) {
	f := newFixture("300")
	r := newTestRouter(f)
	pay := `{"method":"CASH","split_type":"CUSTOM","amount":"200"}`
	staff := map[string]string{middleware.EmployeeHeader: "7"}

	rec := serve(r, http.MethodPost, "/tables/5/pay", pay, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodPost, "/tables/5/pay", pay, map[string]string{middleware.DinerHeader: "1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kind":"redirect"`)
	assert.Contains(t, rec.Body.String(), `"redirect_url":"http://localhost:8080/tables/5"`)
	first := intentID(t, rec)

	rec = serve(r, http.MethodPost, "/tables/5/pay", pay, map[string]string{middleware.DinerHeader: "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := intentID(t, rec)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/payments/intents/%d/accept", first), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/payments/intents/%d/accept", first), "", staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"ACCEPTED"`)
	assert.Contains(t, rec.Body.String(), `"amount":"200.00"`)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/payments/intents/%d/accept", second), "", staff)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"remaining":"100.00"`)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/payments/intents/%d/reject", second), `{"reason":"changed mind"}`, staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"REJECTED"`)

	rec = serve(r, http.MethodGet, "/orders/1/payments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), `"reference"`))

	rec = serve(r, http.MethodPost, "/orders/1/reconcile", "", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture("300")
	r := newTestRouter(f)
	dinerSession := map[string]string{middleware.DinerHeader: "1"}

	rec := serve(r, http.MethodPost, "/tables/5/pay", `{"method":"CASH","split_type":"CUSTOM","amount":"0"}`, dinerSession)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPost, "/tables/5/pay", `not json`, dinerSession)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPost, "/tables/5/pay", `{"method":"CHEQUE","split_type":"FULL_BILL"}`, dinerSession)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(r, http.MethodPost, "/payments/webhook", `{}`, map[string]string{"Stripe-Signature": "forged"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodGet, "/payments/checkout/success", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPost, "/payments/intents/99/accept", "", map[string]string{middleware.EmployeeHeader: "7"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCheckoutSuccessRedirects(t *testing.T) {
	f := newFixture("100")
	r := newTestRouter(f)

	rec := serve(r, http.MethodPost, "/tables/5/pay", `{"method":"CARD","split_type":"FULL_BILL"}`,
		map[string]string{middleware.DinerHeader: "1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"redirect_url":"https://checkout.example/cs_test_1"`)
	assert.Contains(t, rec.Body.String(), `"fee":"5.00"`)

	f.gateway.sessions["cs_test_1"].Paid = true
	rec = serve(r, http.MethodGet, "/payments/checkout/success?session_id=cs_test_1", "", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "http://localhost:8080/tables/5", rec.Header().Get("Location"))
	assert.Len(t, f.world.accepted(), 1)
}
