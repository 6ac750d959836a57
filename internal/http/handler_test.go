package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/marketplace-settlement/internal/auth"
	"github.com/nurpe/marketplace-settlement/internal/http/middleware"
	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
	"github.com/nurpe/marketplace-settlement/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSettlement struct {
	payErr     error
	depositErr error
	deposited  service.DepositInput
}

func (s *stubSettlement) Pay(_ context.Context, profileID, jobID int64) (*service.PaymentResult, error) {
	if s.payErr != nil {
		return nil, s.payErr
	}
	return &service.PaymentResult{
		JobID:             jobID,
		ClientID:          profileID,
		ContractorID:      6,
		Amount:            decimal.RequireFromString("202"),
		ClientBalance:     decimal.RequireFromString("29.11"),
		ContractorBalance: decimal.RequireFromString("1416"),
		PaidAt:            time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubSettlement) Deposit(_ context.Context, in service.DepositInput) (*service.DepositResult, error) {
	s.deposited = in
	if s.depositErr != nil {
		return nil, s.depositErr
	}
	return &service.DepositResult{ProfileID: in.ProfileID, Amount: in.Amount, Balance: decimal.RequireFromString("51.3")}, nil
}

type stubReports struct {
	err       error
	bestInput service.BestClientsInput
	period    [2]time.Time
}

func (s *stubReports) Profile(_ context.Context, id int64) (*model.Profile, error) {
	switch id {
	case 2:
		return &model.Profile{ID: 2, Type: model.ProfileTypeClient}, nil
	case 6:
		return &model.Profile{ID: 6, Type: model.ProfileTypeContractor}, nil
	}
	return nil, service.ErrProfileNotFound
}

func (s *stubReports) Contracts(_ context.Context, profileID int64) ([]model.Contract, error) {
	return []model.Contract{{ID: 3, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: profileID, ContractorID: 6}}, s.err
}

func (s *stubReports) Contract(_ context.Context, profileID, contractID int64) (*model.Contract, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Contract{ID: contractID, Status: model.ContractStatusNew, ClientID: profileID, ContractorID: 6}, nil
}

func (s *stubReports) UnpaidJobs(context.Context, int64) ([]model.UnpaidJob, error) {
	return []model.UnpaidJob{{
		Job:      model.Job{ID: 3, Description: "work", Price: decimal.RequireFromString("202"), ContractID: 3},
		Contract: model.Contract{ID: 3, Status: model.ContractStatusInProgress, ClientID: 2, ContractorID: 6},
	}}, s.err
}

func (s *stubReports) BestProfession(_ context.Context, start, end time.Time) (*model.ProfessionEarnings, error) {
	s.period = [2]time.Time{start, end}
	if s.err != nil {
		return nil, s.err
	}
	return &model.ProfessionEarnings{Profession: "Programmer", TotalEarned: decimal.RequireFromString("2683")}, nil
}

func (s *stubReports) BestClients(_ context.Context, input service.BestClientsInput) (*model.BestClientsReport, error) {
	s.bestInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &model.BestClientsReport{Clients: []model.ClientPayments{
		{ID: 4, FirstName: "Ash", LastName: "Kethcum", TotalPaid: decimal.RequireFromString("2020")},
	}}, nil
}

func (s *stubReports) ExportBestClients(_ context.Context, input service.BestClientsInput) (*service.FileResult, error) {
	s.bestInput = input
	return &service.FileResult{FileName: "best-clients-20200801-20200831.xlsx", Content: []byte("xlsx")}, s.err
}

func (s *stubReports) JobReceipt(_ context.Context, _, jobID int64) (*service.FileResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.FileResult{FileName: fmt.Sprintf("receipt-job-%d.pdf", jobID), Content: []byte("%PDF-1.3")}, nil
}

func newTestRouter(settlement *stubSettlement, reports *stubReports) *gin.Engine {
	handler := NewHandler(settlement, reports, zerolog.Nop())
	return NewRouter(handler, RouterOptions{
		Environment:       "test",
		ProfileMiddleware: middleware.Profile(auth.NewParser(""), reports),
		Checks: map[string]CheckFunc{
			"postgres": func(context.Context) error { return nil },
		},
		Log: zerolog.Nop(),
	})
}

func do(r http.Handler, method, target, profileID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if profileID != "" {
		req.Header.Set(middleware.ProfileIDHeader, profileID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPayJob_Success(t *testing.T) {
	r := newTestRouter(&stubSettlement{}, &stubReports{})

	rec := do(r, http.MethodPost, "/jobs/3/pay", "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"job_id": 3,
		"contractor_id": 6,
		"amount": "202.00",
		"client_balance": "29.11",
		"paid_at": "2024-05-01T12:00:00Z"
	}`, rec.Body.String())
}

func TestPayJob_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantBody   string
	}{
		{service.ErrWrongProfileType, http.StatusForbidden, `{"error":"WRONG_PROFILE_TYPE"}`},
		{service.ErrJobNotFound, http.StatusNotFound, `{"error":"JOB_NOT_FOUND"}`},
		{service.ErrJobAlreadyPaid, http.StatusConflict, `{"error":"JOB_ALREADY_PAID"}`},
		{service.ErrInsufficientFunds, http.StatusUnauthorized, `{"error":"INSUFFICIENT_FUNDS"}`},
		{service.ErrProfileNotFound, http.StatusNotFound, `{"error":"PROFILE_NOT_FOUND"}`},
		{fmt.Errorf("%w: serialization failure", ledger.ErrTransient), http.StatusServiceUnavailable, `{"error":"TRY_AGAIN"}`},
		{errors.New("connection refused"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newTestRouter(&stubSettlement{payErr: tc.err}, &stubReports{})

			rec := do(r, http.MethodPost, "/jobs/3/pay", "2", "")
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
			if tc.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestPayJob_RequiresProfile(t *testing.T) {
	r := newTestRouter(&stubSettlement{}, &stubReports{})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/jobs/3/pay", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/jobs/3/pay", "99", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/jobs/abc/pay", "2", "").Code)
}

func TestDeposit(t *testing.T) {
	settlement := &stubSettlement{}
	r := newTestRouter(settlement, &stubReports{})

	req := httptest.NewRequest(http.MethodPost, "/balances/deposit/4", strings.NewReader(`{"amount": 50}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", " k-1 ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profile_id":4,"amount":"50.00","balance":"51.30","replayed":false}`, rec.Body.String())
	assert.Equal(t, int64(4), settlement.deposited.ProfileID)
	assert.Equal(t, "50", settlement.deposited.Amount.String())
	assert.Equal(t, "k-1", settlement.deposited.IdempotencyKey)
}

func TestDeposit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"too low", `{"amount": 0}`, service.ErrDepositAmountTooLow, http.StatusBadRequest, `{"error":"DEPOSIT_AMOUNT_TOO_LOW"}`},
		{"limit", `{"amount": 100}`, service.ErrDepositLimit, http.StatusBadRequest, `{"error":"DEPOSIT_LIMIT_EXCEEDED"}`},
		{"sub-cent", `{"amount": 1.001}`, fmt.Errorf("%w: at most 2 fractional digits", service.ErrInvalidAmount), http.StatusBadRequest, `{"error":"INVALID_AMOUNT"}`},
		{"duplicate", `{"amount": 1}`, service.ErrDuplicateRequest, http.StatusConflict, `{"error":"DUPLICATE_REQUEST"}`},
		{"malformed", `{"amount": "ten"}`, nil, http.StatusBadRequest, `{"error":"INVALID_AMOUNT"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubSettlement{depositErr: tc.err}, &stubReports{})

			rec := do(r, http.MethodPost, "/balances/deposit/4", "", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestContracts(t *testing.T) {
	reports := &stubReports{}
	r := newTestRouter(&stubSettlement{}, reports)

	rec := do(r, http.MethodGet, "/contracts", "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_id":2`)
	assert.Contains(t, rec.Body.String(), `"status":"in_progress"`)

	reports.err = service.ErrForbidden
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/contracts/3", "2", "").Code)

	reports.err = service.ErrContractNotFound
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/contracts/3", "2", "").Code)
}

func TestUnpaidJobs(t *testing.T) {
	r := newTestRouter(&stubSettlement{}, &stubReports{})

	rec := do(r, http.MethodGet, "/jobs/unpaid", "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":"202.00"`)
	assert.Contains(t, rec.Body.String(), `"contract":{"id":3`)
}

func TestJobReceipt(t *testing.T) {
	reports := &stubReports{}
	r := newTestRouter(&stubSettlement{}, reports)

	rec := do(r, http.MethodGet, "/jobs/3/receipt", "6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="receipt-job-3.pdf"`, rec.Header().Get("Content-Disposition"))

	reports.err = service.ErrJobNotPaid
	rec = do(r, http.MethodGet, "/jobs/3/receipt", "6", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"JOB_NOT_PAID"}`, rec.Body.String())
}

func TestBestProfession(t *testing.T) {
	reports := &stubReports{}
	r := newTestRouter(&stubSettlement{}, reports)

	rec := do(r, http.MethodGet, "/admin/best-profession?start=2020-08-01T00:00:00Z&end=2020-08-31", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profession":"Programmer","total_earned":"2683.00"}`, rec.Body.String())
	assert.True(t, reports.period[1].Equal(time.Date(2020, 8, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/admin/best-profession?end=2020-08-31", "", "").Code)

	reports.err = service.ErrInsufficientData
	rec = do(r, http.MethodGet, "/admin/best-profession?start=2020-08-01&end=2020-08-31", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"INSUFFICIENT_DATA"}`, rec.Body.String())
}

func TestBestClients(t *testing.T) {
	reports := &stubReports{}
	r := newTestRouter(&stubSettlement{}, reports)

	rec := do(r, http.MethodGet, "/admin/best-clients?start=2020-08-01&end=2020-08-31", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":4,"full_name":"Ash Kethcum","total_paid":"2020.00"}]`, rec.Body.String())
	assert.Equal(t, 0, reports.bestInput.Limit)

	rec = do(r, http.MethodGet, "/admin/best-clients?start=2020-08-01&end=2020-08-31&limit=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, reports.bestInput.Limit)

	for _, limit := range []string{"0", "-1", "abc"} {
		rec = do(r, http.MethodGet, "/admin/best-clients?start=2020-08-01&end=2020-08-31&limit="+limit, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}

	rec = do(r, http.MethodGet, "/admin/best-clients/export?start=2020-08-01&end=2020-08-31", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="best-clients-20200801-20200831.xlsx"`, rec.Header().Get("Content-Disposition"))
}

func TestHealth(t *testing.T) {
	handler := NewHandler(&stubSettlement{}, &stubReports{}, zerolog.Nop())
	r := NewRouter(handler, RouterOptions{
		ProfileMiddleware: func(c *gin.Context) { c.Next() },
		Checks: map[string]CheckFunc{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
		},
		Log: zerolog.Nop(),
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", "").Code)

	rec := do(r, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","dependencies":{"postgres":"ok","redis":"dial tcp: refused"}}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", "", "").Code)
}

func TestRejectionStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, rejectionStatus(service.ErrInvalidInput))
	assert.Equal(t, http.StatusNotFound, rejectionStatus(service.ErrContractNotFound))
	assert.Equal(t, http.StatusBadRequest, rejectionStatus(service.ErrDepositLimit))
	assert.Equal(t, http.StatusForbidden, rejectionStatus(service.ErrForbidden))
}
