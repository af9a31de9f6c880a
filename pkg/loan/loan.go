// Package loan is the amortization engine: it turns disbursal terms into a
// loan record and prices installment collections against it.
//
// Every function here is pure. The caller supplies "today" so that penalty
// and schedule results depend only on their inputs.
package loan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/money"
	"github.com/shopspring/decimal"
)

// MaxDurationMonths is the longest term the desk disburses.
const MaxDurationMonths = 600

var (
	monthsPerYear = decimal.NewFromInt(12)

	// penaltyRate is the late fee charged per installment, as a fraction of the EMI.
	penaltyRate = decimal.NewFromFloat(0.02)

	ErrInvalidTerms           = errors.New("invalid loan terms")
	ErrNoInstallmentsSelected = errors.New("no installments selected")
	ErrLoanAlreadySettled     = errors.New("loan already settled")
	ErrInstallmentsExceedTerm = errors.New("installments exceed remaining term")
)

// Terms are the inputs of a disbursal.
type Terms struct {
	Name              string                `json:"name"`
	Principal         decimal.Decimal       `json:"principal"`
	AnnualRatePercent decimal.Decimal       `json:"annualRatePercent"`
	DurationMonths    int                   `json:"durationMonths"`
	LoanType          models.LoanType       `json:"loanType"`
	RepaymentCycle    models.RepaymentCycle `json:"repaymentCycle"`
}

// Validate checks the terms and fills the defaults the desk applies: regular
// loans always repay monthly, daily loans default to a monthly cycle.
func (t *Terms) Validate() error {
	if t.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidTerms)
	}
	if t.AnnualRatePercent.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidTerms)
	}
	if t.DurationMonths <= 0 {
		return fmt.Errorf("%w: duration must be at least one month", ErrInvalidTerms)
	}
	if t.DurationMonths > MaxDurationMonths {
		return fmt.Errorf("%w: duration must not exceed %d months", ErrInvalidTerms, MaxDurationMonths)
	}

	switch t.LoanType {
	case "", models.LoanTypeRegular:
		t.LoanType = models.LoanTypeRegular
		t.RepaymentCycle = models.RepaymentCycleMonthly
	case models.LoanTypeDaily:
		switch t.RepaymentCycle {
		case "":
			t.RepaymentCycle = models.RepaymentCycleMonthly
		case models.RepaymentCycleMonthly, models.RepaymentCycleYearly:
		default:
			return fmt.Errorf("%w: unknown repayment cycle %q", ErrInvalidTerms, t.RepaymentCycle)
		}
	default:
		return fmt.Errorf("%w: unknown loan type %q", ErrInvalidTerms, t.LoanType)
	}

	if t.Name == "" {
		if t.LoanType == models.LoanTypeDaily {
			t.Name = "Business Capital"
		} else {
			t.Name = "Regular Yearly Loan"
		}
	}
	return nil
}

// Interest is the simple interest over the whole term: P × r × (d/12) / 100.
// The month count is multiplied before dividing by twelve to keep the
// result exact.
func Interest(principal, annualRatePercent decimal.Decimal, durationMonths int) decimal.Decimal {
	return money.Percent(principal, annualRatePercent).
		Mul(decimal.NewFromInt(int64(durationMonths))).
		Div(monthsPerYear)
}

// EMI is the equal monthly installment, rounded half-up to a whole unit.
func EMI(totalRepayment decimal.Decimal, durationMonths int) decimal.Decimal {
	if durationMonths <= 0 {
		return decimal.Zero
	}
	return money.Round(totalRepayment.Div(decimal.NewFromInt(int64(durationMonths))))
}

// New builds a fresh loan record from validated terms. TotalRepayment is
// fixed here and never recomputed.
func New(terms Terms, disbursedAt time.Time) (models.LoanRecord, error) {
	if err := terms.Validate(); err != nil {
		return models.LoanRecord{}, err
	}

	total := terms.Principal.Add(Interest(terms.Principal, terms.AnnualRatePercent, terms.DurationMonths)).Round(2)

	return models.LoanRecord{
		ID:                uuid.New(),
		Name:              terms.Name,
		Principal:         terms.Principal,
		AnnualRatePercent: terms.AnnualRatePercent,
		DurationMonths:    terms.DurationMonths,
		PaidMonths:        0,
		PaidAmount:        decimal.Zero,
		TotalRepayment:    total,
		DisbursalDate:     disbursedAt,
		IsRepaid:          false,
		LoanType:          terms.LoanType,
		RepaymentCycle:    terms.RepaymentCycle,
	}, nil
}

// PenaltyInfo is the late-payment position of a loan on a given day. It is
// informational and never folded into TotalRepayment.
type PenaltyInfo struct {
	EMI            decimal.Decimal `json:"emi"`
	ElapsedMonths  int             `json:"elapsedMonths"`
	OverdueCount   int             `json:"overdueCount"`
	MonthlyPenalty decimal.Decimal `json:"monthlyPenalty"`
	TotalPenalty   decimal.Decimal `json:"totalPenalty"`
}

// Penalty computes the overdue installments of a loan as of today.
func Penalty(l models.LoanRecord, today time.Time) PenaltyInfo {
	emi := EMI(l.TotalRepayment, l.DurationMonths)
	elapsed := money.MonthsBetween(l.DisbursalDate, today)
	overdue := elapsed - l.PaidMonths
	if overdue < 0 {
		overdue = 0
	}
	monthly := money.Round(emi.Mul(penaltyRate))

	return PenaltyInfo{
		EMI:            emi,
		ElapsedMonths:  elapsed,
		OverdueCount:   overdue,
		MonthlyPenalty: monthly,
		TotalPenalty:   monthly.Mul(decimal.NewFromInt(int64(overdue))),
	}
}

// Quote is the price of collecting a number of installments.
type Quote struct {
	Installments   int             `json:"installments"`
	PerInstallment decimal.Decimal `json:"perInstallment"`
	Penalty        decimal.Decimal `json:"penalty"` // Penalty part of Amount
	// Amount is PerInstallment × Installments, except when the selection
	// closes the term: the EMI part is then raised to the remaining balance,
	// so the final collection can exceed PerInstallment × Installments.
	Amount         decimal.Decimal `json:"amount"`
}

// QuoteRepayment prices n installments. Any overdue installment adds the
// monthly penalty to every selected installment, whether the selected slot is
// late or a prepayment. When the selection closes the term, the EMI part is
// raised to the remaining balance so rounding never leaves the loan open.
func QuoteRepayment(l models.LoanRecord, n int, today time.Time) (Quote, error) {
	if l.IsRepaid {
		return Quote{}, ErrLoanAlreadySettled
	}
	if n <= 0 {
		return Quote{}, ErrNoInstallmentsSelected
	}
	if l.PaidMonths+n > l.DurationMonths {
		return Quote{}, fmt.Errorf("%w: %d selected, %d remaining", ErrInstallmentsExceedTerm, n, l.DurationMonths-l.PaidMonths)
	}

	info := Penalty(l, today)
	count := decimal.NewFromInt(int64(n))

	perPenalty := decimal.Zero
	if info.OverdueCount > 0 {
		perPenalty = info.MonthlyPenalty
	}
	base := info.EMI.Mul(count)
	if l.PaidMonths+n == l.DurationMonths {
		if remaining := l.TotalRepayment.Sub(l.PaidAmount); base.LessThan(remaining) {
			base = remaining
		}
	}
	penalty := perPenalty.Mul(count)

	return Quote{
		Installments:   n,
		PerInstallment: info.EMI.Add(perPenalty),
		Penalty:        penalty,
		Amount:         base.Add(penalty),
	}, nil
}

// Apply records a quoted collection against the loan.
func Apply(l models.LoanRecord, q Quote) models.LoanRecord {
	l.PaidMonths += q.Installments
	l.PaidAmount = l.PaidAmount.Add(q.Amount)
	l.IsRepaid = l.PaidAmount.GreaterThanOrEqual(l.TotalRepayment)
	return l
}

// Installment is one monthly slot of the EMI schedule.
type Installment struct {
	Number  int             `json:"number"`
	DueDate time.Time       `json:"dueDate"`
	Amount  decimal.Decimal `json:"amount"`
	Paid    bool            `json:"paid"`
	Overdue bool            `json:"overdue"`
}

// Schedule lists every installment slot of the loan. Slots are paid in
// order, so the first PaidMonths slots are paid.
func Schedule(l models.LoanRecord, today time.Time) []Installment {
	info := Penalty(l, today)
	slots := make([]Installment, 0, l.DurationMonths)
	for i := 1; i <= l.DurationMonths; i++ {
		paid := i <= l.PaidMonths
		slots = append(slots, Installment{
			Number:  i,
			DueDate: l.DisbursalDate.AddDate(0, i, 0),
			Amount:  info.EMI,
			Paid:    paid,
			Overdue: !paid && i <= info.ElapsedMonths,
		})
	}
	return slots
}
