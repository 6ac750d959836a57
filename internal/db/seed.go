package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-settlement/internal/model"
)

// Dataset is a consistent set of profiles, contracts and jobs.
type Dataset struct {
	Profiles  []model.Profile
	Contracts []model.Contract
	Jobs      []model.Job
}

// Reference returns the marketplace fixture the service is demonstrated and tested
// with: four clients (1-4), four contractors (5-8), nine contracts and fourteen jobs.
func Reference() Dataset {
	money := decimal.RequireFromString
	paidAt := func(raw string) *time.Time {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			panic(err)
		}
		return &t
	}

	return Dataset{
		Profiles: []model.Profile{
			{ID: 1, FirstName: "Harry", LastName: "Potter", Profession: "Wizard", Balance: money("1150"), Type: model.ProfileTypeClient},
			{ID: 2, FirstName: "Mr", LastName: "Robot", Profession: "Hacker", Balance: money("231.11"), Type: model.ProfileTypeClient},
			{ID: 3, FirstName: "John", LastName: "Snow", Profession: "Knows nothing", Balance: money("451.3"), Type: model.ProfileTypeClient},
			{ID: 4, FirstName: "Ash", LastName: "Kethcum", Profession: "Pokemon master", Balance: money("1.3"), Type: model.ProfileTypeClient},
			{ID: 5, FirstName: "John", LastName: "Lenon", Profession: "Musician", Balance: money("64"), Type: model.ProfileTypeContractor},
			{ID: 6, FirstName: "Linus", LastName: "Torvalds", Profession: "Programmer", Balance: money("1214"), Type: model.ProfileTypeContractor},
			{ID: 7, FirstName: "Alan", LastName: "Turing", Profession: "Programmer", Balance: money("22"), Type: model.ProfileTypeContractor},
			{ID: 8, FirstName: "Aragorn", LastName: "II Elessar Telcontarion", Profession: "Fighter", Balance: money("314"), Type: model.ProfileTypeContractor},
		},
		Contracts: []model.Contract{
			{ID: 1, Terms: "bla bla bla", Status: model.ContractStatusTerminated, ClientID: 1, ContractorID: 5},
			{ID: 2, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 1, ContractorID: 6},
			{ID: 3, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 2, ContractorID: 6},
			{ID: 4, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 2, ContractorID: 7},
			{ID: 5, Terms: "bla bla bla", Status: model.ContractStatusNew, ClientID: 3, ContractorID: 8},
			{ID: 6, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 3, ContractorID: 7},
			{ID: 7, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 4, ContractorID: 7},
			{ID: 8, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 4, ContractorID: 6},
			{ID: 9, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 4, ContractorID: 8},
		},
		Jobs: []model.Job{
			{ID: 1, Description: "work", Price: money("200"), ContractID: 1},
			{ID: 2, Description: "work", Price: money("201"), ContractID: 2},
			{ID: 3, Description: "work", Price: money("202"), ContractID: 3},
			{ID: 4, Description: "work", Price: money("200"), ContractID: 4},
			{ID: 5, Description: "work", Price: money("200"), ContractID: 7},
			{ID: 6, Description: "work", Price: money("2020"), Paid: true, PaymentDate: paidAt("2020-08-15T19:11:26.737Z"), ContractID: 7},
			{ID: 7, Description: "work", Price: money("200"), Paid: true, PaymentDate: paidAt("2020-08-15T19:11:26.737Z"), ContractID: 2},
			{ID: 8, Description: "work", Price: money("200"), Paid: true, PaymentDate: paidAt("2020-08-16T19:11:26.737Z"), ContractID: 3},
			{ID: 9, Description: "work", Price: money("200"), Paid: true, PaymentDate: paidAt("2020-08-17T19:11:26.737Z"), ContractID: 1},
			{ID: 10, Description: "work", Price: money("200"), Paid: true, PaymentDate: paidAt("2020-08-17T19:11:26.737Z"), ContractID: 5},
			{ID: 11, Description: "work", Price: money("21"), Paid: true, PaymentDate: paidAt("2020-08-10T19:11:26.737Z"), ContractID: 1},
			{ID: 12, Description: "work", Price: money("21"), Paid: true, PaymentDate: paidAt("2020-08-15T19:11:26.737Z"), ContractID: 2},
			{ID: 13, Description: "work", Price: money("121"), Paid: true, PaymentDate: paidAt("2020-08-15T19:11:26.737Z"), ContractID: 3},
			{ID: 14, Description: "work", Price: money("121"), Paid: true, PaymentDate: paidAt("2020-08-14T23:11:26.737Z"), ContractID: 3},
		},
	}
}

// Seed inserts the reference dataset. Rows that already exist are left untouched.
func Seed(ctx context.Context, db *gorm.DB) error {
	return Load(ctx, db, Reference())
}

// Load inserts a dataset with explicit ids and moves the id sequences past them.
func Load(ctx context.Context, db *gorm.DB, data Dataset) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range data.Profiles {
			if err := tx.Exec(`
				INSERT INTO profiles (id, first_name, last_name, profession, balance, type)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, p.ID, p.FirstName, p.LastName, p.Profession, p.Balance, string(p.Type)).Error; err != nil {
				return fmt.Errorf("seed profile %d: %w", p.ID, err)
			}
		}
		for _, c := range data.Contracts {
			if err := tx.Exec(`
				INSERT INTO contracts (id, terms, status, client_id, contractor_id)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, c.ID, c.Terms, string(c.Status), c.ClientID, c.ContractorID).Error; err != nil {
				return fmt.Errorf("seed contract %d: %w", c.ID, err)
			}
		}
		for _, j := range data.Jobs {
			if err := tx.Exec(`
				INSERT INTO jobs (id, description, price, paid, payment_date, contract_id)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, j.ID, j.Description, j.Price, j.Paid, j.PaymentDate, j.ContractID).Error; err != nil {
				return fmt.Errorf("seed job %d: %w", j.ID, err)
			}
		}

		for _, table := range []string{"profiles", "contracts", "jobs"} {
			if err := tx.Exec(fmt.Sprintf(
				`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))`,
				table, table,
			)).Error; err != nil {
				return fmt.Errorf("reset %s sequence: %w", table, err)
			}
		}
		return nil
	})
}
