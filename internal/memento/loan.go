package memento

import "github.com/mantidproject/mantid-sub073/pkg/types"

// Loan is a checkout of a memento owned by a Collection. It holds the
// memento's lock from creation until Release. Releasing never destroys the
// memento; the collection keeps it.
type Loan struct {
	m *Memento
}

func newLoan(m *Memento) *Loan { return &Loan{m: m} }

// Memento returns the borrowed memento.
// Returns ErrLoanReleased after Release or Transfer.
func (l *Loan) Memento() (*Memento, error) {
	if l.m == nil {
		return nil, types.ErrLoanReleased
	}
	return l.m, nil
}

// Active reports whether the loan still holds its memento.
func (l *Loan) Active() bool { return l.m != nil }

// Release unlocks the memento. Releasing twice is a no-op.
func (l *Loan) Release() error {
	if l.m == nil {
		return nil
	}
	m := l.m
	l.m = nil
	_, err := m.Unlock()
	return err
}

// Transfer hands the checkout to a new loan and leaves l inert. The lock
// stays held throughout; no other caller can take it in between.
func (l *Loan) Transfer() (*Loan, error) {
	if l.m == nil {
		return nil, types.ErrLoanReleased
	}
	next := &Loan{m: l.m}
	l.m = nil
	return next, nil
}
