// Package tax is the assessment engine: which fiscal years are settled,
// what an assessment totals, and what the premium plan costs per category.
package tax

import (
	"errors"
	"fmt"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/money"
	"github.com/shopspring/decimal"
)

// GrandfatheredYear is treated as settled for every customer whether or not
// a payment record exists.
const GrandfatheredYear = 2024

var ErrNotEligible = errors.New("tax category not eligible for premium plan")

// upgradeFees is the premium (daily capital) plan fee per category. Only
// these categories may upgrade.
var upgradeFees = map[models.TaxCategory]decimal.Decimal{
	models.TaxCategoryBSHPG:  decimal.NewFromInt(49500),
	models.TaxCategoryHNCG:   decimal.NewFromInt(69500),
	models.TaxCategoryMCLBSG: decimal.NewFromInt(78900),
}

// UpgradeFee returns the premium plan fee for a category.
func UpgradeFee(category models.TaxCategory) (decimal.Decimal, error) {
	fee, ok := upgradeFees[category]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotEligible, category)
	}
	return fee, nil
}

// IsSettled reports whether the customer's assessment for year is settled.
func IsSettled(payments map[int]models.PaymentRecord, year int) bool {
	if year == GrandfatheredYear {
		return true
	}
	_, ok := payments[year]
	return ok
}

// BaseFee parses the customer's printed registration fee.
func BaseFee(c models.Customer) decimal.Decimal {
	return money.ParseDigits(c.Price)
}

// ItemsTotal sums the billed line items.
func ItemsTotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// AssessmentTotal is the base fee plus every selected line item.
func AssessmentTotal(c models.Customer, items []models.LineItem) decimal.Decimal {
	return BaseFee(c).Add(ItemsTotal(items))
}

// OutstandingLoanBalance sums what remains due on every open loan.
func OutstandingLoanBalance(loans []models.LoanRecord) decimal.Decimal {
	total := decimal.Zero
	for i := range loans {
		total = total.Add(loans[i].Outstanding())
	}
	return total
}

// DefaultPresets are the billable line items offered at the assessment desk.
var DefaultPresets = []models.LineItem{
	{Label: "Bhakti Medicine Insurance", Amount: decimal.NewFromInt(14500)},
	{Label: "Pathan Charitable Trust", Amount: decimal.NewFromInt(34900)},
	{Label: "Sakshi SKHM", Amount: decimal.NewFromInt(3200)},
	{Label: "Nora Info Tech", Amount: decimal.NewFromInt(5700)},
	{Label: "Swaminarayan Juna Mandir", Amount: decimal.NewFromInt(2100)},
	{Label: "BAPS Swaminarayan", Amount: decimal.NewFromInt(3900)},
	{Label: "GST", Amount: decimal.NewFromInt(6800)},
	{Label: "SGST", Amount: decimal.NewFromInt(1800)},
}
