package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/marketplace-settlement/internal/model"
)

func TestGenerate_PaidJob(t *testing.T) {
	paidAt := time.Date(2020, 8, 15, 19, 11, 26, 0, time.UTC)
	receipt := model.JobReceipt{
		Job:        model.Job{ID: 3, Description: "work", Price: decimal.RequireFromString("202"), Paid: true, PaymentDate: &paidAt, ContractID: 3},
		Contract:   model.Contract{ID: 3, Terms: "bla bla bla", Status: model.ContractStatusInProgress, ClientID: 2, ContractorID: 6},
		Client:     model.Profile{ID: 2, FirstName: "Mr", LastName: "Robot", Profession: "Hacker"},
		Contractor: model.Profile{ID: 6, FirstName: "Linus", LastName: "Torvalds", Profession: "Programmer"},
	}

	content, err := NewGenerator().Generate(receipt)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestGenerate_RejectsUnpaidJob(t *testing.T) {
	_, err := NewGenerator().Generate(model.JobReceipt{Job: model.Job{ID: 1}})
	require.Error(t, err)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "-", formatDate(nil))
	at := time.Date(2020, 8, 14, 23, 11, 26, 0, time.UTC)
	assert.Equal(t, "2020-08-14 23:11 UTC", formatDate(&at))
}
