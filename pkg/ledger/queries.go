package ledger

import (
	"github.com/google/uuid"
	"github.com/mcclellann/hpgLedger/pkg/loan"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/query"
	"github.com/mcclellann/hpgLedger/pkg/tax"
	"github.com/mcclellann/hpgLedger/pkg/trust"
	"github.com/shopspring/decimal"
)

// stateView answers projection queries straight from a snapshot. It takes
// no locks; callers hold the ledger's read lock.
type stateView struct{ s *models.Snapshot }

func (v stateView) IsSettled(token string, year int) bool {
	return tax.IsSettled(v.s.Payments[token], year)
}

func (v stateView) OutstandingLoanBalance(token string) decimal.Decimal {
	return tax.OutstandingLoanBalance(v.s.Loans[token])
}

var _ query.View = (*Ledger)(nil)

// IsSettled reports whether the customer's fiscal year is settled.
func (l *Ledger) IsSettled(token string, year int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return stateView{&l.state}.IsSettled(token, year)
}

// OutstandingLoanBalance is what the customer still owes across open loans.
func (l *Ledger) OutstandingLoanBalance(token string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return stateView{&l.state}.OutstandingLoanBalance(token)
}

// TrustScore is recomputed from the loan history on every call.
func (l *Ledger) TrustScore(token string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return trust.Score(l.state.Loans[token])
}

// AssessmentTotal prices an assessment for the customer: base fee plus the
// selected items.
func (l *Ledger) AssessmentTotal(token string, items []models.LineItem) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, _, err := l.customer(token)
	if err != nil {
		return decimal.Zero, err
	}
	return tax.AssessmentTotal(c, items), nil
}

// Assessment is a fiscal year as read back for the voucher.
type Assessment struct {
	Token         string            `json:"token"`
	Year          int               `json:"year"`
	Settled       bool              `json:"settled"`
	Grandfathered bool              `json:"grandfathered"`
	BaseFee       decimal.Decimal   `json:"baseFee"`
	Items         []models.LineItem `json:"items"`
	Total         decimal.Decimal   `json:"total"`
}

// Assessment reads back the customer's assessment for a fiscal year. An
// unsettled year has no items and totals the base fee.
func (l *Ledger) Assessment(token string, year int) (Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, _, err := l.customer(token)
	if err != nil {
		return Assessment{}, err
	}
	rec, recorded := l.state.Payments[token][year]
	items := append([]models.LineItem{}, rec.Items...)
	return Assessment{
		Token:         token,
		Year:          year,
		Settled:       tax.IsSettled(l.state.Payments[token], year),
		Grandfathered: year == tax.GrandfatheredYear && !recorded,
		BaseFee:       tax.BaseFee(c),
		Items:         items,
		Total:         tax.AssessmentTotal(c, items),
	}, nil
}

// PenaltyInfo is the loan's overdue position as of now.
func (l *Ledger) PenaltyInfo(token string, loanID uuid.UUID) (loan.PenaltyInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, rec, err := l.findLoan(token, loanID)
	if err != nil {
		return loan.PenaltyInfo{}, err
	}
	return loan.Penalty(rec, l.now()), nil
}

// QuoteRepayment prices n installments without collecting them.
func (l *Ledger) QuoteRepayment(token string, loanID uuid.UUID, n int) (loan.Quote, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, rec, err := l.findLoan(token, loanID)
	if err != nil {
		return loan.Quote{}, err
	}
	return loan.QuoteRepayment(rec, n, l.now())
}

// Schedule lists the loan's installment slots as of now.
func (l *Ledger) Schedule(token string, loanID uuid.UUID) ([]loan.Installment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, rec, err := l.findLoan(token, loanID)
	if err != nil {
		return nil, err
	}
	return loan.Schedule(rec, l.now()), nil
}

// FilterCustomers projects the customer list for the desk.
func (l *Ledger) FilterCustomers(c query.Criteria) []models.Customer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return query.Filter(l.state.Customers, c, stateView{&l.state})
}

// Stats computes the dashboard counters for a fiscal year.
func (l *Ledger) Stats(year int) query.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return query.Summarize(l.state.Customers, year, stateView{&l.state})
}
