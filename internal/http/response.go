package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
	"github.com/nurpe/marketplace-settlement/internal/service"
)

type contractResponse struct {
	ID           int64     `json:"id"`
	Terms        string    `json:"terms"`
	Status       string    `json:"status"`
	ClientID     int64     `json:"client_id"`
	ContractorID int64     `json:"contractor_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newContractResponse(c model.Contract) contractResponse {
	return contractResponse{
		ID:           c.ID,
		Terms:        c.Terms,
		Status:       string(c.Status),
		ClientID:     c.ClientID,
		ContractorID: c.ContractorID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type jobResponse struct {
	ID          int64             `json:"id"`
	Description string            `json:"description"`
	Price       string            `json:"price"`
	Paid        bool              `json:"paid"`
	PaymentDate *time.Time        `json:"payment_date"`
	ContractID  int64             `json:"contract_id"`
	Contract    *contractResponse `json:"contract,omitempty"`
}

func newJobResponse(j model.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Description: j.Description,
		Price:       formatMoney(j.Price),
		Paid:        j.Paid,
		PaymentDate: j.PaymentDate,
		ContractID:  j.ContractID,
	}
}

type paymentResponse struct {
	JobID         int64     `json:"job_id"`
	ContractorID  int64     `json:"contractor_id"`
	Amount        string    `json:"amount"`
	ClientBalance string    `json:"client_balance"`
	PaidAt        time.Time `json:"paid_at"`
}

func newPaymentResponse(r *service.PaymentResult) paymentResponse {
	return paymentResponse{
		JobID:         r.JobID,
		ContractorID:  r.ContractorID,
		Amount:        formatMoney(r.Amount),
		ClientBalance: formatMoney(r.ClientBalance),
		PaidAt:        r.PaidAt,
	}
}

type depositResponse struct {
	ProfileID int64  `json:"profile_id"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	Replayed  bool   `json:"replayed"`
}

func newDepositResponse(r *service.DepositResult) depositResponse {
	return depositResponse{
		ProfileID: r.ProfileID,
		Amount:    formatMoney(r.Amount),
		Balance:   formatMoney(r.Balance),
		Replayed:  r.Replayed,
	}
}

type professionResponse struct {
	Profession  string `json:"profession"`
	TotalEarned string `json:"total_earned"`
}

type clientResponse struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	TotalPaid string `json:"total_paid"`
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(ledger.MoneyScale)
}
