package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/api/cron"
	"github.com/invoicely/invoicely/internal/api/dto"
	v1 "github.com/invoicely/invoicely/internal/api/v1"
	"github.com/invoicely/invoicely/internal/domain/user"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/rest/middleware"
	"github.com/invoicely/invoicely/internal/service"
	"github.com/invoicely/invoicely/internal/testutil"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

const testUserID = "user_owner"

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
	feed   *activity.Feed
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 0.001
	cfg.RateLimit.Burst = 3

	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:         s.GetLogger(),
		Config:         cfg,
		DB:             s.GetDB(),
		Sentry:         s.GetSentry(),
		InvoiceRepo:    stores.InvoiceRepo,
		PaymentRepo:    stores.PaymentRepo,
		ClientRepo:     stores.ClientRepo,
		UserRepo:       stores.UserRepo,
		EventPublisher: s.GetPublisher(),
		EmailSender:    s.GetEmailSender(),
		Cache:          s.GetCache(),
		Clock:          s.GetClock(),
	}

	invoiceService := service.NewInvoiceService(params)
	ledgerService := service.NewLedgerService(params)
	issuerService := service.NewIssuerService(params)
	s.feed = activity.NewFeed(cfg, s.GetLogger())

	handlers := Handlers{
		Health:      v1.NewHealthHandler(nil, s.GetLogger()),
		Invoice:     v1.NewInvoiceHandler(invoiceService, ledgerService, issuerService, s.GetLogger()),
		Payment:     v1.NewPaymentHandler(ledgerService, s.GetLogger()),
		Public:      v1.NewPublicInvoiceHandler(invoiceService, s.GetLogger()),
		Profile:     v1.NewProfileHandler(issuerService, s.GetLogger()),
		Activity:    v1.NewActivityHandler(s.feed),
		CronInvoice: cron.NewInvoiceHandler(invoiceService, ledgerService, s.GetLogger()),
	}
	s.router = NewRouter(handlers, cfg, s.GetLogger(), s.GetSentry(), middleware.NewRateLimiter(cfg, s.GetLogger()))

	owner := &user.User{
		ID:        testUserID,
		Username:  "owner",
		Email:     "owner@example.com",
		Role:      types.UserRoleSuperAdmin,
		Signature: lo.ToPtr("data:image/png;base64,OWNER"),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(stores.UserRepo.Create(s.GetContext(), owner))
}

func (s *RouterSuite) do(method, path string, body any, userID string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(types.HeaderUserID, userID)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, dest any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func (s *RouterSuite) createInvoice(number string) *dto.InvoiceResponse {
	now := s.GetNow()
	w := s.do(http.MethodPost, "/v1/invoices", map[string]any{
		"invoice_number": number,
		"invoice_date":   now.Format(time.RFC3339),
		"due_date":       now.AddDate(0, 0, 30).Format(time.RFC3339),
		"tax_rate":       "10",
		"discount_type":  "AMOUNT",
		"discount_value": "5000",
		"client": map[string]any{
			"name":  "Acme Ltd",
			"email": "accounts@example.com",
		},
		"items": []map[string]any{
			{"description": "Design", "quantity": "2", "rate": "25000"},
			{"description": "Build", "quantity": "1", "rate": "50000"},
		},
	}, testUserID)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.InvoiceResponse
	s.decode(w, &resp)
	return &resp
}

func (s *RouterSuite) TestCreateInvoiceStampsAdminSignature() {
	resp := s.createInvoice("INV-100")

	s.Equal("105000", resp.Total.String())
	s.Equal("105000", resp.BalanceAmount.String())
	s.Equal(types.InvoiceStatusDraft, resp.Status)
	s.Equal("data:image/png;base64,OWNER", lo.FromPtr(resp.AdminSignature))
	s.Equal(testUserID, resp.CreatedBy)
}

func (s *RouterSuite) TestRecordPaymentUpdatesLedger() {
	inv := s.createInvoice("INV-101")

	w := s.do(http.MethodPost, "/v1/payments", map[string]any{
		"invoice_id": inv.ID,
		"amount":     "5000",
		"method":     "BANK_TRANSFER",
	}, testUserID)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var payment dto.PaymentResponse
	s.decode(w, &payment)
	s.Require().NotNil(payment.Invoice)
	s.Equal("5000", payment.Invoice.AmountPaid.String())
	s.Equal("100000", payment.Invoice.BalanceAmount.String())
	s.Equal(types.InvoiceStatusPartial, payment.Invoice.Status)

	w = s.do(http.MethodGet, "/v1/invoices/"+inv.ID, nil, testUserID)
	s.Require().Equal(http.StatusOK, w.Code)
	var fetched dto.InvoiceResponse
	s.decode(w, &fetched)
	s.Equal(types.InvoiceStatusPartial, fetched.Status)

	w = s.do(http.MethodDelete, "/v1/payments/"+payment.ID, nil, testUserID)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var deleted dto.DeletePaymentResponse
	s.decode(w, &deleted)
	s.Equal(types.InvoiceStatusSent, deleted.Invoice.Status)
	s.Equal("105000", deleted.Invoice.BalanceAmount.String())
}

func (s *RouterSuite) TestErrorResponses() {
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		userID string
		status int
		code   string
	}{
		{
			name:   "malformed payment",
			method: http.MethodPost,
			path:   "/v1/payments",
			body:   map[string]any{"invoice_id": "inv_x", "amount": "0", "method": "CASH"},
			userID: testUserID,
			status: http.StatusBadRequest,
			code:   ierr.ErrCodeValidation,
		},
		{
			name:   "unknown payment",
			method: http.MethodGet,
			path:   "/v1/payments/pay_missing",
			userID: testUserID,
			status: http.StatusNotFound,
			code:   ierr.ErrCodeNotFound,
		},
		{
			name:   "signature without a user",
			method: http.MethodPut,
			path:   "/v1/profile/signature",
			body:   map[string]any{"signature": "data:image/png;base64,X"},
			status: http.StatusForbidden,
			code:   ierr.ErrCodePermissionDenied,
		},
		{
			name:   "illegal status",
			method: http.MethodPut,
			path:   "/v1/invoices/inv_missing/status",
			body:   map[string]any{"status": "ARCHIVED"},
			userID: testUserID,
			status: http.StatusBadRequest,
			code:   ierr.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(tt.method, tt.path, tt.body, tt.userID)
			s.Equal(tt.status, w.Code, w.Body.String())

			var resp ierr.ErrorResponse
			s.decode(w, &resp)
			s.False(resp.Success)
			s.Equal(tt.code, resp.Error.Code)
			s.NotEmpty(resp.Error.Display)
		})
	}
}

func (s *RouterSuite) TestPublicSignatureFlow() {
	inv := s.createInvoice("INV-102")

	w := s.do(http.MethodPost, "/public/invoices/"+inv.ID+"/signature", map[string]any{
		"signature": "data:image/png;base64,CLIENT",
	}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var public dto.PublicInvoiceResponse
	s.decode(w, &public)
	s.True(public.IsSigned)
	s.Equal("Acme Ltd", public.Client.Name)

	w = s.do(http.MethodPost, "/public/invoices/"+inv.ID+"/signature", map[string]any{
		"signature": "data:image/png;base64,AGAIN",
	}, "")
	s.Equal(http.StatusBadRequest, w.Code)

	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("Already signed", resp.Error.Display)
}

func (s *RouterSuite) TestPublicRoutesAreRateLimited() {
	inv := s.createInvoice("INV-103")

	// burst of 3 with a negligible refill rate
	for i := 0; i < 3; i++ {
		w := s.do(http.MethodGet, "/public/invoices/"+inv.ID, nil, "")
		s.Equal(http.StatusOK, w.Code)
	}

	w := s.do(http.MethodGet, "/public/invoices/"+inv.ID, nil, "")
	s.Equal(http.StatusTooManyRequests, w.Code)

	// staff routes are not throttled
	w = s.do(http.MethodGet, "/v1/invoices/"+inv.ID, nil, testUserID)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestCronSweep() {
	inv := s.createInvoice("INV-104")
	w := s.do(http.MethodPut, "/v1/invoices/"+inv.ID+"/status", map[string]any{"status": "SENT"}, testUserID)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	s.SetNow(s.GetNow().AddDate(0, 0, 31))

	w = s.do(http.MethodPost, "/cron/invoices/overdue", nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sweep dto.SweepResponse
	s.decode(w, &sweep)
	s.Equal(1, sweep.Updated)

	w = s.do(http.MethodPost, "/cron/invoices/overdue", nil, "")
	s.decode(w, &sweep)
	s.Equal(0, sweep.Updated)
}

func (s *RouterSuite) TestCronReconcile() {
	s.createInvoice("INV-105")

	w := s.do(http.MethodPost, "/cron/invoices/reconcile?repair=true", nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.ReconcileAllResponse
	s.decode(w, &resp)
	s.Equal(1, resp.Checked)
	s.Equal(0, resp.Drifted)
}

func (s *RouterSuite) TestActivityFeed() {
	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		s.feed.Append(&types.LedgerEvent{ID: id, Topic: types.TopicPaymentRecorded})
	}

	w := s.do(http.MethodGet, "/v1/activity?limit=2", nil, testUserID)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp dto.ActivityResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Items, 2)
	s.Equal("evt_3", resp.Items[0].ID)
	s.Equal("evt_2", resp.Items[1].ID)
}

func (s *RouterSuite) TestRequestIDAndHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(types.HeaderRequestID, "req_fixed")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("req_fixed", w.Header().Get(types.HeaderRequestID))

	w = s.do(http.MethodGet, "/health", nil, "")
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}
