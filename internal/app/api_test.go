package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/config"
	"rentalcore/internal/domain/auth"
	"rentalcore/internal/infrastructure/storage/memory"
	"rentalcore/pkg/logger"
)

type apiFixture struct {
	t       *testing.T
	router  *gin.Engine
	storage *Storage
	token   string
}

func newAPI(t *testing.T, cfg *config.Config) *apiFixture {
	t.Helper()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	storage := NewMemoryStorage(memory.WithClock(clock))
	svc := NewServices(storage, clock)

	return &apiFixture{
		t:       t,
		router:  NewRouter(cfg, storage, svc, logger.Nop()),
		storage: storage,
	}
}

func (f *apiFixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// seed creates a customer with a 10% discount and an owned drill
// (10/day, 5 units), returning their IDs.
func (f *apiFixture) seed() (customerID, productID string) {
	f.t.Helper()

	w := f.do(http.MethodPost, "/api/v1/customers", map[string]any{
		"name":         "Acme Builders",
		"discountRate": "10",
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	customerID = decode(f.t, w)["id"].(string)

	w = f.do(http.MethodPost, "/api/v1/products", map[string]any{
		"sku":  "DRL-1",
		"name": "Drill",
		"pricing": map[string]any{
			"kind":          "owned",
			"purchasePrice": "300",
			"rentalPrice":   "10",
		},
		"initialStock": 5,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	productID = decode(f.t, w)["id"].(string)
	return customerID, productID
}

func (f *apiFixture) createAgreement(customerID, productID string, qty int) map[string]any {
	f.t.Helper()

	w := f.do(http.MethodPost, "/api/v1/agreements", map[string]any{
		"customerId":         customerID,
		"startDate":          "2024-01-01",
		"expectedReturnDate": "2024-01-03",
		"items":              []map[string]any{{"productId": productID, "quantity": qty}},
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(f.t, w)
}

func TestAPI_AgreementLifecycle(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()

	a := f.createAgreement(customerID, productID, 2)
	agreementID := a["id"].(string)

	assert.Equal(t, "RA-2024-00001", a["number"])
	assert.Equal(t, "active", a["status"])
	assert.EqualValues(t, 3, a["rentalDays"])
	assert.Equal(t, "60.00", a["subtotal"])
	assert.Equal(t, "6.00", a["discountAmount"])
	assert.Equal(t, "2.70", a["vat"])
	assert.Equal(t, "56.70", a["total"])
	assert.Equal(t, "56.70", a["balanceDue"])

	w := f.do(http.MethodGet, "/api/v1/products/"+productID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avail := decode(t, w)
	assert.EqualValues(t, 3, avail["available"])
	assert.EqualValues(t, 2, avail["rented"])

	w = f.do(http.MethodPost, "/api/v1/agreements/"+agreementID+"/payments", map[string]any{
		"amount": "20",
		"method": "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "RCPT-2024-000001", decode(t, w)["receiptNumber"])

	// late return re-prices for five days
	w = f.do(http.MethodPost, "/api/v1/agreements/"+agreementID+"/return", map[string]any{
		"returnDate":      "2024-01-05",
		"amountCollected": "74.50",
		"method":          "card",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	returned := decode(t, w)
	assert.Equal(t, "returned", returned["status"])
	assert.Equal(t, true, returned["wasLate"])
	assert.EqualValues(t, 5, returned["rentalDays"])
	assert.Equal(t, "94.50", returned["total"])
	assert.Equal(t, "94.50", returned["paidAmount"])
	assert.Equal(t, "0.00", returned["balanceDue"])

	w = f.do(http.MethodGet, "/api/v1/products/"+productID+"/availability", nil)
	assert.EqualValues(t, 5, decode(t, w)["available"])

	w = f.do(http.MethodPost, "/api/v1/agreements/"+agreementID+"/return", map[string]any{
		"returnDate": "2024-01-06",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w)["code"])

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 2)

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["items"])
}

func TestAPI_PaymentIdempotency(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()
	agreementID := f.createAgreement(customerID, productID, 1)["id"].(string)
	path := "/api/v1/agreements/" + agreementID + "/payments"

	body := map[string]any{"amount": "10", "method": "cash"}
	first := f.do(http.MethodPost, path, body, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := f.do(http.MethodPost, path, body, "Idempotency-Key", "pay-1")
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	mismatch := f.do(http.MethodPost, path, map[string]any{"amount": "11", "method": "cash"}, "Idempotency-Key", "pay-1")
	assert.Equal(t, http.StatusConflict, mismatch.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", decode(t, mismatch)["code"])

	w := f.do(http.MethodGet, path, nil)
	assert.Len(t, decode(t, w)["items"], 1)

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10.00", decode(t, w)["paidAmount"])
}

func TestAPI_Errors(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "insufficient stock",
			method: http.MethodPost,
			path:   "/api/v1/agreements",
			body: map[string]any{
				"customerId":         customerID,
				"startDate":          "2024-01-01",
				"expectedReturnDate": "2024-01-03",
				"items":              []map[string]any{{"productId": productID, "quantity": 6}},
			},
			status: http.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_STOCK",
		},
		{
			name:   "return before start",
			method: http.MethodPost,
			path:   "/api/v1/agreements",
			body: map[string]any{
				"customerId":         customerID,
				"startDate":          "2024-01-05",
				"expectedReturnDate": "2024-01-03",
				"items":              []map[string]any{{"productId": productID, "quantity": 1}},
			},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown agreement",
			method: http.MethodGet,
			path:   "/api/v1/agreements/0190a5c0-0000-7000-8000-000000000000",
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "malformed id",
			method: http.MethodGet,
			path:   "/api/v1/agreements/not-an-id",
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}

	// the failed reservation left stock untouched
	w := f.do(http.MethodGet, "/api/v1/products/"+productID+"/availability", nil)
	assert.EqualValues(t, 5, decode(t, w)["available"])
}

func TestAPI_SweepOverdue(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()
	agreementID := f.createAgreement(customerID, productID, 1)["id"].(string)

	w := f.do(http.MethodPost, "/api/v1/admin/sweep-overdue", map[string]any{"date": "2024-01-05"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.EqualValues(t, 1, res["flagged"])
	assert.EqualValues(t, 1, res["reminders"])

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID, nil)
	assert.Equal(t, "overdue", decode(t, w)["status"])

	// a second run on the same day changes nothing
	w = f.do(http.MethodPost, "/api/v1/admin/sweep-overdue", map[string]any{"date": "2024-01-05"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["flagged"])

	// overdue agreements cannot be cancelled
	w = f.do(http.MethodPost, "/api/v1/agreements/"+agreementID+"/cancel", map[string]any{"reason": "late"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_Auth(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	f := newAPI(t, cfg)

	w := f.do(http.MethodGet, "/api/v1/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	jwtSvc := auth.NewJWTService(cfg.Auth.JWT())
	staff, _, err := jwtSvc.GenerateAccessToken("u-1", "staff@example.com", []string{auth.RoleStaff})
	require.NoError(t, err)
	f.token = staff

	w = f.do(http.MethodGet, "/api/v1/customers", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/admin/sweep-overdue", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, _, err := jwtSvc.GenerateAccessToken("u-2", "admin@example.com", []string{auth.RoleAdmin})
	require.NoError(t, err)
	f.token = admin

	w = f.do(http.MethodPost, "/api/v1/admin/sweep-overdue", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// health stays public
	f.token = ""
	w = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_ReturnQuote(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()
	agreementID := f.createAgreement(customerID, productID, 2)["id"].(string)

	w := f.do(http.MethodGet, "/api/v1/agreements/"+agreementID+"/return-quote?returnDate=2024-01-05", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	q := decode(t, w)
	assert.EqualValues(t, 5, q["rentalDays"])
	assert.Equal(t, true, q["wasLate"])
	assert.Equal(t, "94.50", q["total"])
	assert.Equal(t, "94.50", q["balanceDue"])
	assert.Equal(t, "37.80", q["additionalCharge"])

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID, nil)
	assert.Equal(t, "56.70", decode(t, w)["total"])

	w = f.do(http.MethodGet, "/api/v1/agreements/"+agreementID+"/return-quote?returnDate=05-01-2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_AdjustStock(t *testing.T) {
	f := newAPI(t, config.Default())
	customerID, productID := f.seed()
	f.createAgreement(customerID, productID, 2)

	w := f.do(http.MethodPost, "/api/v1/products/"+productID+"/stock", map[string]any{"delta": 4, "reason": "purchase"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	avail := decode(t, w)
	assert.EqualValues(t, 7, avail["onHand"])
	assert.EqualValues(t, 2, avail["rented"])
	assert.EqualValues(t, 9, avail["owned"])

	w = f.do(http.MethodPost, "/api/v1/products/"+productID+"/stock", map[string]any{"delta": -8})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, w)["code"])

	w = f.do(http.MethodGet, "/api/v1/products/"+productID, nil)
	assert.EqualValues(t, 7, decode(t, w)["stock"])
}
