package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Trescaul/afri-skill-showcase/config"
	"github.com/Trescaul/afri-skill-showcase/internal/middleware"
	"github.com/Trescaul/afri-skill-showcase/internal/models"
	"github.com/Trescaul/afri-skill-showcase/internal/mpesa"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeGateway struct {
	lastRequest *mpesa.STKPushRequest
	response    *mpesa.STKPushResponse
	err         error
}

func (f *fakeGateway) STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	f.lastRequest = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &mpesa.STKPushResponse{
		MerchantRequestID: "merchant-1",
		CheckoutRequestID: "ws_CO_test",
		ResponseCode:      "0",
	}, nil
}

func newTestRouter(db *gorm.DB, gateway mpesa.Gateway, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.MpesaMiddleware(gateway))
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}
	r.POST("/v1/payments/mpesa", InitiatePayment)
	r.POST("/v1/payments/mpesa/callback", MpesaCallback)
	r.GET("/v1/payments/status", CheckPaymentStatus)
	return r
}

func initiateBody() string {
	return `{
		"phone": "0712345678",
		"amount": 100,
		"skillCardData": {
			"name": "Wanjiku Kamau",
			"skill_category": "Tailoring",
			"bio": "Custom dresses and alterations with 10 years of experience.",
			"location": "Nairobi",
			"phone": "0712345678",
			"email": "wanjiku@example.com",
			"user_id": "user-123"
		}
	}`
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInitiatePayment(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	r := newTestRouter(db, gateway, "user-123")

	w := postJSON(r, "/v1/payments/mpesa", initiateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success           bool   `json:"success"`
		CheckoutRequestID string `json:"checkoutRequestId"`
		PaymentID         string `json:"paymentId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.CheckoutRequestID != "ws_CO_test" {
		t.Errorf("checkoutRequestId = %q", resp.CheckoutRequestID)
	}
	paymentID, err := uuid.Parse(resp.PaymentID)
	if err != nil {
		t.Fatalf("paymentId is not a uuid: %v", err)
	}

	// The gateway must see the international phone form.
	if gateway.lastRequest == nil {
		t.Fatal("gateway never called")
	}
	if gateway.lastRequest.Phone != "254712345678" {
		t.Errorf("gateway phone = %q, want 254712345678", gateway.lastRequest.Phone)
	}
	if gateway.lastRequest.AccountReference != "SkillCard-"+paymentID.String() {
		t.Errorf("account reference = %q", gateway.lastRequest.AccountReference)
	}

	var payment models.Payment
	if err := db.First(&payment, paymentID).Error; err != nil {
		t.Fatalf("payment row not found: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Errorf("status = %s, want pending", payment.Status)
	}
	if payment.PaymentReference != "ws_CO_test" {
		t.Errorf("payment_reference = %q", payment.PaymentReference)
	}
	if payment.Currency != "KES" || payment.Method != "mpesa" {
		t.Errorf("currency/method = %s/%s", payment.Currency, payment.Method)
	}

	var submission models.SkillCardSubmission
	if err := json.Unmarshal([]byte(payment.Submission), &submission); err != nil {
		t.Fatalf("submission not stored as JSON: %v", err)
	}
	if submission.Name != "Wanjiku Kamau" || submission.UserID != "user-123" {
		t.Errorf("submission not preserved: %+v", submission)
	}
}

func TestInitiatePaymentRecordExistsDespiteGatewayRejection(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{err: &mpesa.GatewayError{Op: "stk push", Status: 400, Body: "rejected"}}
	r := newTestRouter(db, gateway, "user-123")

	w := postJSON(r, "/v1/payments/mpesa", initiateBody())
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	// The pending row is written before the gateway is contacted.
	var payments []models.Payment
	if err := db.Find(&payments).Error; err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment row, got %d", len(payments))
	}
	if payments[0].Status != models.PaymentPending {
		t.Errorf("status = %s, want pending", payments[0].Status)
	}
	if payments[0].PaymentReference != "" {
		t.Errorf("payment_reference should be empty before gateway ack, got %q", payments[0].PaymentReference)
	}
}

func TestInitiatePaymentNotConfigured(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{err: mpesa.ErrNotConfigured}
	r := newTestRouter(db, gateway, "user-123")

	w := postJSON(r, "/v1/payments/mpesa", initiateBody())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not configured") {
		t.Errorf("body does not mention configuration: %s", w.Body.String())
	}
}

func TestInitiatePaymentInvalidInput(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	r := newTestRouter(db, gateway, "user-123")

	cases := []string{
		`{"amount": 100}`,
		`{"phone": "0712345678"}`,
		`{"phone": "0712345678", "amount": -5, "skillCardData": {"name": "A", "skill_category": "Tailoring", "bio": "b", "location": "Nairobi", "phone": "0712345678", "user_id": "user-123"}}`,
		`not json`,
	}
	for _, body := range cases {
		w := postJSON(r, "/v1/payments/mpesa", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected requests created %d payment rows", count)
	}
	if gateway.lastRequest != nil {
		t.Error("gateway contacted for invalid input")
	}
}

func seedPendingPayment(t *testing.T, db *gorm.DB, reference string) *models.Payment {
	t.Helper()
	submission, _ := json.Marshal(models.SkillCardSubmission{
		Name:          "Wanjiku Kamau",
		SkillCategory: "Tailoring",
		Bio:           "Custom dresses and alterations.",
		Location:      "Nairobi",
		Phone:         "0712345678",
		Email:         "wanjiku@example.com",
		UserID:        "user-123",
	})
	payment := &models.Payment{
		Amount:           100,
		Currency:         "KES",
		Method:           "mpesa",
		Status:           models.PaymentPending,
		PaymentReference: reference,
		Submission:       string(submission),
		UserID:           "user-123",
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatal(err)
	}
	return payment
}

func callbackBody(reference string, resultCode int, resultDesc string) string {
	return fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":%q}}}`,
		reference, resultCode, resultDesc)
}

func TestMpesaCallbackSuccessCreatesCard(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")
	payment := seedPendingPayment(t, db, "ws_CO_1")

	w := postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_1", 0, "Success"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var updated models.Payment
	if err := db.Preload("SkillCard").First(&updated, payment.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.PaymentCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if updated.SkillCardID == nil {
		t.Fatal("skill card not linked")
	}
	if updated.SkillCard == nil {
		t.Fatal("skill card not created")
	}
	if !updated.SkillCard.Verified {
		t.Error("card should be created verified")
	}
	if updated.SkillCard.Rating != 5.0 {
		t.Errorf("rating = %v, want 5.0", updated.SkillCard.Rating)
	}
	if updated.SkillCard.Name != "Wanjiku Kamau" || updated.SkillCard.SkillCategory != "Tailoring" {
		t.Errorf("card fields not taken from stored submission: %+v", updated.SkillCard)
	}
}

func TestMpesaCallbackDuplicateDeliveryIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")
	payment := seedPendingPayment(t, db, "ws_CO_1")

	for i := 0; i < 2; i++ {
		w := postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_1", 0, "Success"))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i+1, w.Code)
		}
	}

	var cardCount int64
	db.Model(&models.SkillCard{}).Count(&cardCount)
	if cardCount != 1 {
		t.Errorf("expected exactly 1 skill card after duplicate callbacks, got %d", cardCount)
	}

	var updated models.Payment
	db.First(&updated, payment.ID)
	if updated.Status != models.PaymentCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
}

func TestMpesaCallbackFailure(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")
	payment := seedPendingPayment(t, db, "ws_CO_2")

	w := postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_2", 1032, "Request cancelled by user"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var updated models.Payment
	db.First(&updated, payment.ID)
	if updated.Status != models.PaymentFailed {
		t.Errorf("status = %s, want failed", updated.Status)
	}
	if updated.ResultDescription != "Request cancelled by user" {
		t.Errorf("result description = %q", updated.ResultDescription)
	}

	var cardCount int64
	db.Model(&models.SkillCard{}).Count(&cardCount)
	if cardCount != 0 {
		t.Errorf("failed payment created %d cards", cardCount)
	}

	// Terminal states are immutable: a late success callback for the
	// same reference must not resurrect the payment.
	postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_2", 0, "Success"))
	db.First(&updated, payment.ID)
	if updated.Status != models.PaymentFailed {
		t.Errorf("status changed after terminal state: %s", updated.Status)
	}
}

func TestMpesaCallbackUnknownReferenceAckedWithoutMutation(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")
	payment := seedPendingPayment(t, db, "ws_CO_known")

	w := postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_unknown", 0, "Success"))
	if w.Code != http.StatusOK {
		t.Fatalf("unknown reference must still be acked, got %d", w.Code)
	}

	var updated models.Payment
	db.First(&updated, payment.ID)
	if updated.Status != models.PaymentPending {
		t.Errorf("unrelated payment mutated: %s", updated.Status)
	}
	var cardCount int64
	db.Model(&models.SkillCard{}).Count(&cardCount)
	if cardCount != 0 {
		t.Errorf("unknown callback created %d cards", cardCount)
	}
}

func TestMpesaCallbackMalformedBodyAcked(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")

	w := postJSON(r, "/v1/payments/mpesa/callback", `{"nope": `)
	if w.Code != http.StatusOK {
		t.Errorf("malformed callback must still be acked, got %d", w.Code)
	}
}

func TestCheckPaymentStatus(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db, &fakeGateway{}, "")
	payment := seedPendingPayment(t, db, "ws_CO_1")

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := get("/v1/payments/status"); w.Code != http.StatusBadRequest {
		t.Errorf("missing paymentId: status = %d, want 400", w.Code)
	}
	if w := get("/v1/payments/status?paymentId=" + uuid.New().String()); w.Code != http.StatusNotFound {
		t.Errorf("unknown paymentId: status = %d, want 404", w.Code)
	}
	if w := get("/v1/payments/status?paymentId=not-a-uuid"); w.Code != http.StatusNotFound {
		t.Errorf("malformed paymentId: status = %d, want 404", w.Code)
	}

	w := get("/v1/payments/status?paymentId=" + payment.ID.String())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		PaymentID         string  `json:"paymentId"`
		Status            string  `json:"status"`
		PaymentReference  string  `json:"paymentReference"`
		SkillCardID       *string `json:"skillCardId"`
		SkillCardCreated  bool    `json:"skillCardCreated"`
		SkillCardVerified bool    `json:"skillCardVerified"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "pending" || resp.SkillCardCreated || resp.SkillCardVerified {
		t.Errorf("pending payment reported %+v", resp)
	}

	// After the callback lands the poller sees the card.
	postJSON(r, "/v1/payments/mpesa/callback", callbackBody("ws_CO_1", 0, "Success"))

	w = get("/v1/payments/status?paymentId=" + payment.ID.String())
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "completed" {
		t.Errorf("status = %s, want completed", resp.Status)
	}
	if !resp.SkillCardCreated || !resp.SkillCardVerified || resp.SkillCardID == nil {
		t.Errorf("completed payment did not report its card: %+v", resp)
	}
	if resp.PaymentReference != "ws_CO_1" {
		t.Errorf("paymentReference = %q", resp.PaymentReference)
	}
}
