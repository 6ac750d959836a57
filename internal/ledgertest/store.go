// Package ledgertest provides an in-memory ledger.Store for tests.
//
// Transactions are executed one at a time under a single mutex and work on a copy
// of the data that replaces the committed state only when the callback succeeds,
// which gives serializable, all-or-nothing semantics without a database.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
)

// ErrNegativeBalance mirrors the balance >= 0 check constraint of the real schema.
var ErrNegativeBalance = errors.New("ledgertest: balance would become negative")

type state struct {
	profiles  map[int64]model.Profile
	contracts map[int64]model.Contract
	jobs      map[int64]model.Job
}

func (s state) clone() state {
	c := state{
		profiles:  make(map[int64]model.Profile, len(s.profiles)),
		contracts: make(map[int64]model.Contract, len(s.contracts)),
		jobs:      make(map[int64]model.Job, len(s.jobs)),
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	return c
}

// Store is an in-memory ledger.Store.
type Store struct {
	mu        sync.Mutex
	committed state

	failMu   sync.Mutex
	failures []error
	begun    int
	commits  int
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{committed: state{
		profiles:  map[int64]model.Profile{},
		contracts: map[int64]model.Contract{},
		jobs:      map[int64]model.Job{},
	}}
}

// Load inserts rows into the committed state, replacing rows with the same id.
func (s *Store) Load(profiles []model.Profile, contracts []model.Contract, jobs []model.Job) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.committed.profiles[p.ID] = p
	}
	for _, c := range contracts {
		s.committed.contracts[c.ID] = c
	}
	for _, j := range jobs {
		s.committed.jobs[j.ID] = j
	}
	return s
}

// FailNext makes the next len(errs) transactions fail with the given errors before
// running their callback, in order.
func (s *Store) FailNext(errs ...error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Store) nextFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.begun++
	if len(s.failures) == 0 {
		return nil
	}
	err := s.failures[0]
	s.failures = s.failures[1:]
	return err
}

// Transactions returns how many transactions were started.
func (s *Store) Transactions() int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.begun
}

// Commits returns how many transactions committed.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) WithTransaction(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := s.nextFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.committed.clone()
	if err := fn(&tx{state: working}); err != nil {
		return err
	}
	s.committed = working
	s.commits++
	return nil
}

// Profile returns the committed state of a profile.
func (s *Store) Profile(id int64) (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.committed.profiles[id]
	return p, ok
}

// Job returns the committed state of a job.
func (s *Store) Job(id int64) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.committed.jobs[id]
	return j, ok
}

// TotalBalance sums every committed profile balance.
func (s *Store) TotalBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, p := range s.committed.profiles {
		total = total.Add(p.Balance)
	}
	return total
}

// Balances returns committed balances keyed by profile id.
func (s *Store) Balances() map[int64]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]decimal.Decimal, len(s.committed.profiles))
	for id, p := range s.committed.profiles {
		out[id] = p.Balance
	}
	return out
}

type tx struct {
	state state
}

func (t *tx) LockProfile(_ context.Context, id int64) (*model.Profile, error) {
	p, ok := t.state.profiles[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &p, nil
}

func (t *tx) LockJob(_ context.Context, id int64) (*model.PayableJob, error) {
	j, ok := t.state.jobs[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	c, ok := t.state.contracts[j.ContractID]
	if !ok {
		return nil, fmt.Errorf("job %d references missing contract %d", j.ID, j.ContractID)
	}
	return &model.PayableJob{
		Job:            j,
		ClientID:       c.ClientID,
		ContractorID:   c.ContractorID,
		ContractStatus: c.Status,
	}, nil
}

func (t *tx) OutstandingExposure(_ context.Context, clientID int64) (decimal.Decimal, error) {
	ids := make([]int64, 0, len(t.state.jobs))
	for id := range t.state.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })

	total := decimal.Zero
	for _, id := range ids {
		j := t.state.jobs[id]
		if j.Paid {
			continue
		}
		c, ok := t.state.contracts[j.ContractID]
		if !ok || c.ClientID != clientID || c.Status == model.ContractStatusTerminated {
			continue
		}
		total = total.Add(j.Price)
	}
	return total, nil
}

func (t *tx) AddToBalance(_ context.Context, profileID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.state.profiles[profileID]
	if !ok {
		return decimal.Zero, ledger.ErrStaleWrite
	}
	next := p.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrNegativeBalance
	}
	p.Balance = next
	t.state.profiles[profileID] = p
	return next, nil
}

func (t *tx) MarkJobPaid(_ context.Context, jobID int64, paidAt time.Time) error {
	j, ok := t.state.jobs[jobID]
	if !ok || j.Paid {
		return ledger.ErrStaleWrite
	}
	at := paidAt
	j.Paid = true
	j.PaymentDate = &at
	t.state.jobs[jobID] = j
	return nil
}
