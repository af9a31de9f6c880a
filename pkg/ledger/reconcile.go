package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/tax"
	"github.com/shopspring/decimal"
)

var ErrOutOfBalance = errors.New("ledger out of balance with transaction log")

// Totals are the per-customer aggregates derived from the transaction log.
type Totals struct {
	Assessed  decimal.Decimal `json:"assessed"`  // TAX_PAYMENT entries for fiscal years
	PlanFees  decimal.Decimal `json:"planFees"`  // TAX_PAYMENT entries for plan activation
	Disbursed decimal.Decimal `json:"disbursed"` // LOAN_CREDIT
	Collected decimal.Decimal `json:"collected"` // EMI_DEBIT
	Activated bool            `json:"activated"` // any MODE_ACTIVATE
}

const planFeePrefix = "Daily Mode Activation Fee"

// Replay folds a customer's log into totals.
func Replay(logs []models.TransactionLog) Totals {
	t := Totals{Assessed: decimal.Zero, PlanFees: decimal.Zero, Disbursed: decimal.Zero, Collected: decimal.Zero}
	for _, e := range logs {
		switch e.Type {
		case models.TransactionTypeTaxPayment:
			if strings.HasPrefix(e.Description, planFeePrefix) {
				t.PlanFees = t.PlanFees.Add(e.Amount)
			} else {
				t.Assessed = t.Assessed.Add(e.Amount)
			}
		case models.TransactionTypeLoanCredit:
			t.Disbursed = t.Disbursed.Add(e.Amount)
		case models.TransactionTypeEMIDebit:
			t.Collected = t.Collected.Add(e.Amount)
		case models.TransactionTypeModeActivate:
			t.Activated = true
		}
	}
	return t
}

// Reconcile checks that the customer's payment records, loans and plan flag
// agree with what the transaction log replays to. Customers seeded with the
// plan already active have no MODE_ACTIVATE entry and still reconcile.
func (l *Ledger) Reconcile(token string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cust, _, err := l.customer(token)
	if err != nil {
		return err
	}
	got := Replay(l.state.Logs[token])

	assessed := decimal.Zero
	for _, rec := range l.state.Payments[token] {
		assessed = assessed.Add(tax.ItemsTotal(rec.Items))
	}
	disbursed, collected := decimal.Zero, decimal.Zero
	for _, rec := range l.state.Loans[token] {
		disbursed = disbursed.Add(rec.Principal)
		collected = collected.Add(rec.PaidAmount)
	}

	switch {
	case !got.Assessed.Equal(assessed):
		return fmt.Errorf("%w: %s assessed %s, log %s", ErrOutOfBalance, token, assessed, got.Assessed)
	case !got.Disbursed.Equal(disbursed):
		return fmt.Errorf("%w: %s disbursed %s, log %s", ErrOutOfBalance, token, disbursed, got.Disbursed)
	case !got.Collected.Equal(collected):
		return fmt.Errorf("%w: %s collected %s, log %s", ErrOutOfBalance, token, collected, got.Collected)
	case got.Activated && !cust.BusinessPlusActive:
		return fmt.Errorf("%w: %s plan flag %t, log %t", ErrOutOfBalance, token, cust.BusinessPlusActive, got.Activated)
	}
	return nil
}
