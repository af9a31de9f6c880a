package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/hpgLedger/pkg/loan"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/money"
	"github.com/mcclellann/hpgLedger/pkg/tax"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrDuplicateAssessment = errors.New("assessment already settled for year")
	ErrInvalidAssessment   = errors.New("invalid assessment")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrAlreadyActive       = errors.New("premium plan already active")
	ErrPlanNotActive       = errors.New("premium plan not active")

	ErrNotEligible            = tax.ErrNotEligible
	ErrInvalidTerms           = loan.ErrInvalidTerms
	ErrLoanAlreadySettled     = loan.ErrLoanAlreadySettled
	ErrNoInstallmentsSelected = loan.ErrNoInstallmentsSelected
	ErrInstallmentsExceedTerm = loan.ErrInstallmentsExceedTerm
)

// CommitFunc receives the complete next state before a command publishes
// it. Returning an error aborts the command and leaves the ledger unchanged.
type CommitFunc func(models.Snapshot) error

// Ledger owns the customers, payment records, loans and transaction logs of
// the desk. Every command either changes state and appends its log entries
// or changes nothing.
type Ledger struct {
	mu     sync.RWMutex
	state  models.Snapshot
	index  map[string]int // customer token -> position in state.Customers
	now    func() time.Time
	commit CommitFunc
	logger *logrus.Logger
}

type Option func(*Ledger)

// WithClock overrides the time source used for log timestamps, disbursal
// dates and penalty computation.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithCommit installs the hook that persists each committed snapshot.
func WithCommit(fn CommitFunc) Option {
	return func(l *Ledger) { l.commit = fn }
}

// NewLedger builds a ledger from a loaded snapshot.
func NewLedger(snap models.Snapshot, logger *logrus.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Ledger{
		state:  normalize(snap),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.index = make(map[string]int, len(l.state.Customers))
	for i, c := range l.state.Customers {
		if _, dup := l.index[c.Token]; dup {
			l.logger.WithField("token", c.Token).Warn("Duplicate customer token in snapshot, keeping the first")
			continue
		}
		l.index[c.Token] = i
	}
	return l
}

func normalize(snap models.Snapshot) models.Snapshot {
	if snap.Customers == nil {
		snap.Customers = []models.Customer{}
	}
	if snap.Payments == nil {
		snap.Payments = map[string]map[int]models.PaymentRecord{}
	}
	if snap.Loans == nil {
		snap.Loans = map[string][]models.LoanRecord{}
	}
	if snap.Logs == nil {
		snap.Logs = map[string][]models.TransactionLog{}
	}
	return snap
}

// Snapshot returns a copy of the committed state.
func (l *Ledger) Snapshot() models.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

// apply runs mutate on a private copy of the state, hands the result to the
// commit hook and publishes it. Callers hold the write lock.
func (l *Ledger) apply(mutate func(next *models.Snapshot) error) error {
	next := l.state.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	if l.commit != nil {
		if err := l.commit(next); err != nil {
			return fmt.Errorf("failed to commit ledger state: %w", err)
		}
	}
	l.state = next
	return nil
}

func (l *Ledger) customer(token string) (models.Customer, int, error) {
	i, ok := l.index[token]
	if !ok {
		return models.Customer{}, 0, fmt.Errorf("%w: %s", ErrCustomerNotFound, token)
	}
	return l.state.Customers[i], i, nil
}

func (l *Ledger) newLog(typ models.TransactionType, description string, amount decimal.Decimal) models.TransactionLog {
	return models.TransactionLog{
		ID:          uuid.New(),
		Timestamp:   l.now(),
		Type:        typ,
		Description: description,
		Amount:      amount,
	}
}

// prependLog keeps each customer's log newest first.
func prependLog(s *models.Snapshot, token string, entry models.TransactionLog) {
	s.Logs[token] = append([]models.TransactionLog{entry}, s.Logs[token]...)
}

// RecordTaxPayment settles a fiscal year for a customer with the billed
// line items.
func (l *Ledger) RecordTaxPayment(token string, year int, items []models.LineItem) (models.PaymentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, _, err := l.customer(token); err != nil {
		return models.PaymentRecord{}, err
	}
	if year <= 0 {
		return models.PaymentRecord{}, fmt.Errorf("%w: fiscal year %d", ErrInvalidAssessment, year)
	}
	for _, it := range items {
		if it.Amount.IsNegative() {
			return models.PaymentRecord{}, fmt.Errorf("%w: negative amount for %q", ErrInvalidAssessment, it.Label)
		}
	}
	if tax.IsSettled(l.state.Payments[token], year) {
		return models.PaymentRecord{}, fmt.Errorf("%w: %s FY %d", ErrDuplicateAssessment, token, year)
	}

	record := models.PaymentRecord{Year: year, Items: append([]models.LineItem{}, items...)}
	total := tax.ItemsTotal(items)

	err := l.apply(func(next *models.Snapshot) error {
		years := next.Payments[token]
		if years == nil {
			years = map[int]models.PaymentRecord{}
			next.Payments[token] = years
		}
		years[year] = record
		prependLog(next, token, l.newLog(models.TransactionTypeTaxPayment, fmt.Sprintf("Tax Assessment FY %d Completed", year), total))
		return nil
	})
	if err != nil {
		return models.PaymentRecord{}, err
	}

	l.logger.WithFields(logrus.Fields{"token": token, "year": year, "amount": total.String()}).Info("Tax payment recorded")
	return record, nil
}

// DisburseLoan creates a loan for the customer and credits the principal.
func (l *Ledger) DisburseLoan(token string, terms loan.Terms) (models.LoanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cust, _, err := l.customer(token)
	if err != nil {
		return models.LoanRecord{}, err
	}
	if terms.LoanType == models.LoanTypeDaily && !cust.BusinessPlusActive {
		return models.LoanRecord{}, fmt.Errorf("%w: daily loans need the premium plan", ErrPlanNotActive)
	}

	rec, err := loan.New(terms, l.now())
	if err != nil {
		return models.LoanRecord{}, err
	}

	err = l.apply(func(next *models.Snapshot) error {
		next.Loans[token] = append(next.Loans[token], rec)
		prependLog(next, token, l.newLog(models.TransactionTypeLoanCredit, "Loan Disbursed: "+rec.Name, rec.Principal))
		return nil
	})
	if err != nil {
		return models.LoanRecord{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"token":     token,
		"loan_id":   rec.ID,
		"principal": rec.Principal.String(),
		"total":     rec.TotalRepayment.String(),
		"type":      rec.LoanType,
	}).Info("Loan disbursed")
	return rec, nil
}

// Repayment is the outcome of an installment collection, the data a
// repayment voucher prints.
type Repayment struct {
	Loan          models.LoanRecord `json:"loan"`
	Quote         loan.Quote        `json:"quote"`
	AmountInWords string            `json:"amountInWords"`
}

// ApplyRepayment collects n installments against a loan and returns what
// was collected.
func (l *Ledger) ApplyRepayment(token string, loanID uuid.UUID, n int) (Repayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, _, err := l.customer(token); err != nil {
		return Repayment{}, err
	}
	idx, current, err := l.findLoan(token, loanID)
	if err != nil {
		return Repayment{}, err
	}

	q, err := loan.QuoteRepayment(current, n, l.now())
	if err != nil {
		return Repayment{}, err
	}
	updated := loan.Apply(current, q)

	err = l.apply(func(next *models.Snapshot) error {
		next.Loans[token][idx] = updated
		desc := fmt.Sprintf("EMI Recovery: %d Installments Paid", n)
		prependLog(next, token, l.newLog(models.TransactionTypeEMIDebit, desc, q.Amount))
		return nil
	})
	if err != nil {
		return Repayment{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"token":        token,
		"loan_id":      loanID,
		"installments": n,
		"amount":       q.Amount.String(),
		"repaid":       updated.IsRepaid,
	}).Info("Repayment applied")
	return Repayment{Loan: updated, Quote: q, AmountInWords: money.InWords(q.Amount)}, nil
}

// ActivatePlan upgrades the customer to the premium daily-capital plan and
// charges the category fee. It returns the fee charged.
func (l *Ledger) ActivatePlan(token string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cust, i, err := l.customer(token)
	if err != nil {
		return decimal.Zero, err
	}
	if cust.BusinessPlusActive {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAlreadyActive, token)
	}
	fee, err := tax.UpgradeFee(cust.TaxType)
	if err != nil {
		return decimal.Zero, err
	}

	err = l.apply(func(next *models.Snapshot) error {
		next.Customers[i].BusinessPlusActive = true
		prependLog(next, token, l.newLog(models.TransactionTypeModeActivate, "Premium Daily Mode Activated", decimal.Zero))
		prependLog(next, token, l.newLog(models.TransactionTypeTaxPayment, fmt.Sprintf("%s (%s)", planFeePrefix, cust.TaxType), fee))
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.logger.WithFields(logrus.Fields{"token": token, "fee": fee.String()}).Info("Premium plan activated")
	return fee, nil
}

func (l *Ledger) findLoan(token string, loanID uuid.UUID) (int, models.LoanRecord, error) {
	for i, rec := range l.state.Loans[token] {
		if rec.ID == loanID {
			return i, rec, nil
		}
	}
	return 0, models.LoanRecord{}, fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
}

// Customer returns a customer by token.
func (l *Ledger) Customer(token string) (models.Customer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, _, err := l.customer(token)
	return c, err
}

// Customers returns every customer in catalog order.
func (l *Ledger) Customers() []models.Customer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Customer(nil), l.state.Customers...)
}

// Loans returns the customer's loans in disbursal order.
func (l *Ledger) Loans(token string) []models.LoanRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.LoanRecord(nil), l.state.Loans[token]...)
}

// Loan returns one loan of the customer.
func (l *Ledger) Loan(token string, loanID uuid.UUID) (models.LoanRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, rec, err := l.findLoan(token, loanID)
	return rec, err
}

// Logs returns the customer's transaction log, newest first.
func (l *Ledger) Logs(token string) []models.TransactionLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.TransactionLog(nil), l.state.Logs[token]...)
}
