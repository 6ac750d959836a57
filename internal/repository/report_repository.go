package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-settlement/internal/model"
)

// ReportRepository serves read-only queries. It never locks rows.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, first_name, last_name, profession, balance, type, created_at, updated_at
		FROM profiles
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&profile).Error; err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &profile, nil
}

func (r *ReportRepository) ListContracts(ctx context.Context, profileID int64) ([]model.Contract, error) {
	var contracts []model.Contract
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, terms, status, client_id, contractor_id, created_at, updated_at
		FROM contracts
		WHERE (client_id = ? OR contractor_id = ?)
			AND status <> 'terminated'
		ORDER BY id ASC
	`, profileID, profileID).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ReportRepository) GetContract(ctx context.Context, id int64) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, terms, status, client_id, contractor_id, created_at, updated_at
		FROM contracts
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&contract).Error; err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (r *ReportRepository) ListUnpaidJobs(ctx context.Context, profileID int64) ([]model.UnpaidJob, error) {
	var rows []struct {
		ID                int64
		Description       string
		Price             decimal.Decimal
		Paid              bool
		PaymentDate       *time.Time
		ContractID        int64
		CreatedAt         time.Time
		UpdatedAt         time.Time
		ContractTerms     string
		ContractStatus    string
		ClientID          int64
		ContractorID      int64
		ContractCreatedAt time.Time
		ContractUpdatedAt time.Time
	}

	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			j.id,
			j.description,
			j.price,
			j.paid,
			j.payment_date,
			j.contract_id,
			j.created_at,
			j.updated_at,
			c.terms AS contract_terms,
			c.status AS contract_status,
			c.client_id,
			c.contractor_id,
			c.created_at AS contract_created_at,
			c.updated_at AS contract_updated_at
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE (c.client_id = ? OR c.contractor_id = ?)
			AND c.status <> 'terminated'
			AND j.paid = FALSE
		ORDER BY j.id ASC
	`, profileID, profileID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	jobs := make([]model.UnpaidJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, model.UnpaidJob{
			Job: model.Job{
				ID:          row.ID,
				Description: row.Description,
				Price:       row.Price,
				Paid:        row.Paid,
				PaymentDate: row.PaymentDate,
				ContractID:  row.ContractID,
				CreatedAt:   row.CreatedAt,
				UpdatedAt:   row.UpdatedAt,
			},
			Contract: model.Contract{
				ID:           row.ContractID,
				Terms:        row.ContractTerms,
				Status:       model.ContractStatus(row.ContractStatus),
				ClientID:     row.ClientID,
				ContractorID: row.ContractorID,
				CreatedAt:    row.ContractCreatedAt,
				UpdatedAt:    row.ContractUpdatedAt,
			},
		})
	}
	return jobs, nil
}

// BestProfession returns the contractor profession that earned the most from jobs
// paid within [from, to].
func (r *ReportRepository) BestProfession(ctx context.Context, from, to time.Time) (*model.ProfessionEarnings, error) {
	var rows []model.ProfessionEarnings
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.profession,
			SUM(j.price) AS total_earned
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles p ON p.id = c.contractor_id
		WHERE p.type = 'contractor'
			AND j.paid = TRUE
			AND j.payment_date BETWEEN ? AND ?
		GROUP BY p.profession
		ORDER BY total_earned DESC, p.profession ASC
		LIMIT 1
	`, from, to).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// BestClients ranks clients by the total they paid for jobs within [from, to].
func (r *ReportRepository) BestClients(ctx context.Context, from, to time.Time, limit int) ([]model.ClientPayments, error) {
	var rows []model.ClientPayments
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.id,
			p.first_name,
			p.last_name,
			SUM(j.price) AS total_paid
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles p ON p.id = c.client_id
		WHERE p.type = 'client'
			AND j.paid = TRUE
			AND j.payment_date BETWEEN ? AND ?
		GROUP BY p.id, p.first_name, p.last_name
		ORDER BY total_paid DESC, p.id ASC
		LIMIT ?
	`, from, to, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetJobReceipt loads a job with its contract and both parties.
func (r *ReportRepository) GetJobReceipt(ctx context.Context, jobID int64) (*model.JobReceipt, error) {
	var row struct {
		JobID                int64
		Description          string
		Price                decimal.Decimal
		Paid                 bool
		PaymentDate          *time.Time
		ContractID           int64
		ContractTerms        string
		ContractStatus       string
		ClientID             int64
		ClientFirstName      string
		ClientLastName       string
		ClientProfession     string
		ContractorID         int64
		ContractorFirstName  string
		ContractorLastName   string
		ContractorProfession string
	}

	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			j.id AS job_id,
			j.description,
			j.price,
			j.paid,
			j.payment_date,
			c.id AS contract_id,
			c.terms AS contract_terms,
			c.status AS contract_status,
			client.id AS client_id,
			client.first_name AS client_first_name,
			client.last_name AS client_last_name,
			client.profession AS client_profession,
			contractor.id AS contractor_id,
			contractor.first_name AS contractor_first_name,
			contractor.last_name AS contractor_last_name,
			contractor.profession AS contractor_profession
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles client ON client.id = c.client_id
		JOIN profiles contractor ON contractor.id = c.contractor_id
		WHERE j.id = ?
	`, jobID).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.JobID == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &model.JobReceipt{
		Job: model.Job{
			ID:          row.JobID,
			Description: row.Description,
			Price:       row.Price,
			Paid:        row.Paid,
			PaymentDate: row.PaymentDate,
			ContractID:  row.ContractID,
		},
		Contract: model.Contract{
			ID:           row.ContractID,
			Terms:        row.ContractTerms,
			Status:       model.ContractStatus(row.ContractStatus),
			ClientID:     row.ClientID,
			ContractorID: row.ContractorID,
		},
		Client: model.Profile{
			ID:         row.ClientID,
			FirstName:  row.ClientFirstName,
			LastName:   row.ClientLastName,
			Profession: row.ClientProfession,
			Type:       model.ProfileTypeClient,
		},
		Contractor: model.Profile{
			ID:         row.ContractorID,
			FirstName:  row.ContractorFirstName,
			LastName:   row.ContractorLastName,
			Profession: row.ContractorProfession,
			Type:       model.ProfileTypeContractor,
		},
	}, nil
}
