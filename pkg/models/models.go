package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxCategory is the customer's registration category. It drives the base
// fee printed on assessments and premium plan eligibility.
type TaxCategory string

const (
	TaxCategoryBSHPG  TaxCategory = "BSHPG TAX"
	TaxCategoryHNCG   TaxCategory = "HNCG TAX"
	TaxCategoryMCLBSG TaxCategory = "MCLBSG TAX"
)

type Customer struct {
	Token              string      `json:"token" yaml:"token"`
	Name               string      `json:"name" yaml:"name"`
	TaxType            TaxCategory `json:"taxType" yaml:"taxType"`
	District           string      `json:"district" yaml:"district"`
	Price              string      `json:"price" yaml:"price"` // Base fee as printed, e.g. "12,500"
	Brokerage          string      `json:"brokerage,omitempty" yaml:"brokerage,omitempty"`
	BusinessPlusActive bool        `json:"businessPlusActive" yaml:"businessPlusActive"` // Unlocks daily-cycle lending
}

type LineItem struct {
	Label  string          `json:"label" yaml:"label"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
}

// PaymentRecord is the settled assessment for one customer and fiscal year.
type PaymentRecord struct {
	Year  int        `json:"year"`
	Items []LineItem `json:"items"`
}

type LoanType string

const (
	LoanTypeRegular LoanType = "regular"
	LoanTypeDaily   LoanType = "daily"
)

type RepaymentCycle string

const (
	RepaymentCycleMonthly RepaymentCycle = "monthly"
	RepaymentCycleYearly  RepaymentCycle = "yearly"
)

type LoanRecord struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annualRatePercent"`
	DurationMonths    int             `json:"durationMonths"`
	PaidMonths        int             `json:"paidMonths"`
	PaidAmount        decimal.Decimal `json:"paidAmount"`
	TotalRepayment    decimal.Decimal `json:"totalRepayment"` // Principal plus simple interest, fixed at disbursal
	DisbursalDate     time.Time       `json:"disbursalDate"`
	IsRepaid          bool            `json:"isRepaid"`
	LoanType          LoanType        `json:"loanType"`
	RepaymentCycle    RepaymentCycle  `json:"repaymentCycle"`
}

// Outstanding is what remains to be collected against TotalRepayment.
func (l *LoanRecord) Outstanding() decimal.Decimal {
	if l.IsRepaid {
		return decimal.Zero
	}
	return l.TotalRepayment.Sub(l.PaidAmount)
}

type TransactionType string

const (
	TransactionTypeTaxPayment   TransactionType = "TAX_PAYMENT"
	TransactionTypeLoanCredit   TransactionType = "LOAN_CREDIT"
	TransactionTypeEMIDebit     TransactionType = "EMI_DEBIT"
	TransactionTypeModeActivate TransactionType = "MODE_ACTIVATE"
)

// Valid reports whether t is one of the known log types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTaxPayment, TransactionTypeLoanCredit, TransactionTypeEMIDebit, TransactionTypeModeActivate:
		return true
	}
	return false
}

type TransactionLog struct {
	ID          uuid.UUID       `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Snapshot is every persisted collection of the ledger. It is loaded and
// saved as one unit.
type Snapshot struct {
	Customers []Customer                       `json:"customers"`
	Payments  map[string]map[int]PaymentRecord `json:"payments"` // token -> fiscal year -> record
	Loans     map[string][]LoanRecord          `json:"loans"`    // token -> loans in disbursal order
	Logs      map[string][]TransactionLog      `json:"logs"`     // token -> entries, newest first
}

// Storage keys of the four collections in the key-value medium.
const (
	KeyCustomers = "hpg_tax_customers_v8"
	KeyPayments  = "hpg_tax_payment_history_v8"
	KeyLoans     = "hpg_tax_loan_history_v8"
	KeyLogs      = "hpg_tax_transaction_logs_v8"
)

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Customers: []Customer{},
		Payments:  map[string]map[int]PaymentRecord{},
		Loans:     map[string][]LoanRecord{},
		Logs:      map[string][]TransactionLog{},
	}
}

// Clone deep-copies the snapshot so the copy can be mutated freely.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	out.Customers = append(out.Customers, s.Customers...)
	for token, years := range s.Payments {
		m := make(map[int]PaymentRecord, len(years))
		for y, rec := range years {
			rec.Items = append([]LineItem(nil), rec.Items...)
			m[y] = rec
		}
		out.Payments[token] = m
	}
	for token, loans := range s.Loans {
		out.Loans[token] = append([]LoanRecord(nil), loans...)
	}
	for token, logs := range s.Logs {
		out.Logs[token] = append([]TransactionLog(nil), logs...)
	}
	return out
}
