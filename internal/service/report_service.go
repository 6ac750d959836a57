package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-settlement/internal/model"
)

const defaultBestClientsLimit = 2

// ReportStore is the read side of the marketplace. Missing rows are reported as
// gorm.ErrRecordNotFound.
type ReportStore interface {
	GetProfile(ctx context.Context, id int64) (*model.Profile, error)
	ListContracts(ctx context.Context, profileID int64) ([]model.Contract, error)
	GetContract(ctx context.Context, id int64) (*model.Contract, error)
	ListUnpaidJobs(ctx context.Context, profileID int64) ([]model.UnpaidJob, error)
	BestProfession(ctx context.Context, from, to time.Time) (*model.ProfessionEarnings, error)
	BestClients(ctx context.Context, from, to time.Time, limit int) ([]model.ClientPayments, error)
	GetJobReceipt(ctx context.Context, jobID int64) (*model.JobReceipt, error)
}

type ExcelGenerator interface {
	Generate(report model.BestClientsReport) ([]byte, error)
}

type PDFGenerator interface {
	Generate(receipt model.JobReceipt) ([]byte, error)
}

type ReportService struct {
	repo  ReportStore
	excel ExcelGenerator
	pdf   PDFGenerator
	now   func() time.Time
}

type BestClientsInput struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int
}

type FileResult struct {
	FileName string
	Content  []byte
}

func NewReportService(repo ReportStore, excel ExcelGenerator, pdf PDFGenerator) *ReportService {
	return &ReportService{
		repo:  repo,
		excel: excel,
		pdf:   pdf,
		now:   time.Now,
	}
}

// Profile resolves the acting profile of a request.
func (s *ReportService) Profile(ctx context.Context, id int64) (*model.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (s *ReportService) Contracts(ctx context.Context, profileID int64) ([]model.Contract, error) {
	return s.repo.ListContracts(ctx, profileID)
}

// Contract returns a contract the profile is a party to.
func (s *ReportService) Contract(ctx context.Context, profileID, contractID int64) (*model.Contract, error) {
	contract, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	if !contract.IsParty(profileID) {
		return nil, ErrForbidden
	}
	return contract, nil
}

func (s *ReportService) UnpaidJobs(ctx context.Context, profileID int64) ([]model.UnpaidJob, error) {
	return s.repo.ListUnpaidJobs(ctx, profileID)
}

func (s *ReportService) BestProfession(ctx context.Context, start, end time.Time) (*model.ProfessionEarnings, error) {
	if err := validatePeriod(start, end); err != nil {
		return nil, err
	}
	best, err := s.repo.BestProfession(ctx, start, end)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsufficientData
		}
		return nil, err
	}
	return best, nil
}

func (s *ReportService) BestClients(ctx context.Context, input BestClientsInput) (*model.BestClientsReport, error) {
	if err := validatePeriod(input.PeriodStart, input.PeriodEnd); err != nil {
		return nil, err
	}
	limit := input.Limit
	switch {
	case limit == 0:
		limit = defaultBestClientsLimit
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	clients, err := s.repo.BestClients(ctx, input.PeriodStart, input.PeriodEnd, limit)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []model.ClientPayments{}
	}

	return &model.BestClientsReport{
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Limit:       limit,
		Clients:     clients,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *ReportService) ExportBestClients(ctx context.Context, input BestClientsInput) (*FileResult, error) {
	report, err := s.BestClients(ctx, input)
	if err != nil {
		return nil, err
	}

	content, err := s.excel.Generate(*report)
	if err != nil {
		return nil, err
	}

	period := fmt.Sprintf("%s-%s", report.PeriodStart.Format("20060102"), report.PeriodEnd.Format("20060102"))
	return &FileResult{
		FileName: buildFileName("best-clients", period, "xlsx"),
		Content:  content,
	}, nil
}

// JobReceipt renders the receipt of a paid job for either party of its contract. Jobs of
// other parties are reported as ErrJobNotFound, as in Pay.
func (s *ReportService) JobReceipt(ctx context.Context, profileID, jobID int64) (*FileResult, error) {
	receipt, err := s.repo.GetJobReceipt(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if !receipt.Contract.IsParty(profileID) {
		return nil, ErrJobNotFound
	}
	if !receipt.Job.Paid {
		return nil, ErrJobNotPaid
	}

	content, err := s.pdf.Generate(*receipt)
	if err != nil {
		return nil, err
	}

	return &FileResult{
		FileName: buildFileName("receipt", fmt.Sprintf("job-%d", receipt.Job.ID), "pdf"),
		Content:  content,
	}, nil
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidInput)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start must be before or equal to end", ErrInvalidInput)
	}
	return nil
}

func buildFileName(kind, target, ext string) string {
	name := sanitizeFileName(target)
	if name == "" {
		return fmt.Sprintf("%s.%s", kind, ext)
	}
	return fmt.Sprintf("%s-%s.%s", kind, name, ext)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
