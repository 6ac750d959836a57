package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/http/middleware"
	"github.com/nurpe/marketplace-settlement/internal/model"
	"github.com/nurpe/marketplace-settlement/internal/service"
)

const idempotencyKeyHeader = "Idempotency-Key"

type Settlement interface {
	Pay(ctx context.Context, profileID, jobID int64) (*service.PaymentResult, error)
	Deposit(ctx context.Context, in service.DepositInput) (*service.DepositResult, error)
}

type Reports interface {
	Contracts(ctx context.Context, profileID int64) ([]model.Contract, error)
	Contract(ctx context.Context, profileID, contractID int64) (*model.Contract, error)
	UnpaidJobs(ctx context.Context, profileID int64) ([]model.UnpaidJob, error)
	BestProfession(ctx context.Context, start, end time.Time) (*model.ProfessionEarnings, error)
	BestClients(ctx context.Context, input service.BestClientsInput) (*model.BestClientsReport, error)
	ExportBestClients(ctx context.Context, input service.BestClientsInput) (*service.FileResult, error)
	JobReceipt(ctx context.Context, profileID, jobID int64) (*service.FileResult, error)
}

type Handler struct {
	settlement Settlement
	reports    Reports
	log        zerolog.Logger
}

func NewHandler(settlement Settlement, reports Reports, log zerolog.Logger) *Handler {
	return &Handler{settlement: settlement, reports: reports, log: log}
}

// Register mounts the API. profileMiddleware authenticates the acting profile and
// limiter guards the routes that move money.
func (h *Handler) Register(router *gin.Engine, profileMiddleware, limiter gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(profileMiddleware)
	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/:id", h.getContract)
	protected.GET("/jobs/unpaid", h.listUnpaidJobs)
	protected.POST("/jobs/:id/pay", limiter, h.payJob)
	protected.GET("/jobs/:id/receipt", h.jobReceipt)

	router.POST("/balances/deposit/:id", limiter, h.deposit)

	admin := router.Group("/admin")
	admin.GET("/best-profession", h.bestProfession)
	admin.GET("/best-clients", h.bestClients)
	admin.GET("/best-clients/export", h.exportBestClients)
}

func (h *Handler) listContracts(c *gin.Context) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}

	contracts, err := h.reports.Contracts(c.Request.Context(), profile.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]contractResponse, 0, len(contracts))
	for _, contract := range contracts {
		resp = append(resp, newContractResponse(contract))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getContract(c *gin.Context) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	contract, err := h.reports.Contract(c.Request.Context(), profile.ID, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newContractResponse(*contract))
}

func (h *Handler) listUnpaidJobs(c *gin.Context) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}

	jobs, err := h.reports.UnpaidJobs(c.Request.Context(), profile.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		item := newJobResponse(job.Job)
		contract := newContractResponse(job.Contract)
		item.Contract = &contract
		resp = append(resp, item)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) payJob(c *gin.Context) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}
	jobID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.settlement.Pay(c.Request.Context(), profile.ID, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentResponse(result))
}

func (h *Handler) jobReceipt(c *gin.Context) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}
	jobID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.reports.JobReceipt(c.Request.Context(), profile.ID, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) deposit(c *gin.Context) {
	profileID, ok := pathID(c)
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidAmount.Code})
		return
	}

	result, err := h.settlement.Deposit(c.Request.Context(), service.DepositInput{
		ProfileID:      profileID,
		Amount:         req.Amount,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyKeyHeader)),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDepositResponse(result))
}

func (h *Handler) bestProfession(c *gin.Context) {
	start, end, ok := periodQuery(c)
	if !ok {
		return
	}

	best, err := h.reports.BestProfession(c.Request.Context(), start, end)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, professionResponse{
		Profession:  best.Profession,
		TotalEarned: formatMoney(best.TotalEarned),
	})
}

func (h *Handler) bestClients(c *gin.Context) {
	input, ok := bestClientsQuery(c)
	if !ok {
		return
	}

	report, err := h.reports.BestClients(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]clientResponse, 0, len(report.Clients))
	for _, client := range report.Clients {
		resp = append(resp, clientResponse{
			ID:        client.ID,
			FullName:  client.FullName(),
			TotalPaid: formatMoney(client.TotalPaid),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) exportBestClients(c *gin.Context) {
	input, ok := bestClientsQuery(c)
	if !ok {
		return
	}

	result, err := h.reports.ExportBestClients(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if rejection, ok := service.AsRejection(err); ok {
		c.JSON(rejectionStatus(rejection), gin.H{"error": rejection.Code})
		return
	}

	switch {
	case service.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("ledger busy")
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "TRY_AGAIN"})
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// rejectionStatus keeps the status codes existing clients of the API rely on.
func rejectionStatus(r *service.Rejection) int {
	switch r {
	case service.ErrWrongProfileType, service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrInsufficientFunds:
		return http.StatusUnauthorized
	case service.ErrJobAlreadyPaid, service.ErrJobNotPaid, service.ErrInsufficientData, service.ErrDuplicateRequest:
		return http.StatusConflict
	case service.ErrDepositLimit:
		return http.StatusBadRequest
	}

	switch r.Kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindBusiness:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidInput.Code})
		return 0, false
	}
	return id, true
}

func periodQuery(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := parseDate(c.Query("start"), false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidInput.Code, "field": "start"})
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDate(c.Query("end"), true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidInput.Code, "field": "end"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func bestClientsQuery(c *gin.Context) (service.BestClientsInput, bool) {
	start, end, ok := periodQuery(c)
	if !ok {
		return service.BestClientsInput{}, false
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidInput.Code, "field": "limit"})
			return service.BestClientsInput{}, false
		}
		limit = parsed
	}

	return service.BestClientsInput{PeriodStart: start, PeriodEnd: end, Limit: limit}, true
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date used as the
// end of a period covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			return parsed.Add(24*time.Hour - time.Nanosecond), nil
		}
		return parsed, nil
	}
	return time.Time{}, service.ErrInvalidInput
}
