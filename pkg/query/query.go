// Package query projects the customer list for the desk: status filters,
// search, and the dashboard counters.
package query

import (
	"fmt"
	"strings"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAll       Status = "all"
	StatusSettled   Status = "paid"
	StatusUnsettled Status = "pending"
	StatusLoan      Status = "loan"
)

// ParseStatus maps a filter name to a Status. An empty name means all.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusSettled:
		return StatusSettled, nil
	case StatusUnsettled:
		return StatusUnsettled, nil
	case StatusLoan:
		return StatusLoan, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// View is the read side of the ledger the projections need.
type View interface {
	IsSettled(token string, year int) bool
	OutstandingLoanBalance(token string) decimal.Decimal
}

type Criteria struct {
	Year   int
	Status Status
	Search string
}

// Filter returns the customers matching the criteria, in input order.
func Filter(customers []models.Customer, c Criteria, v View) []models.Customer {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]models.Customer, 0, len(customers))
	for _, cust := range customers {
		if !matchesStatus(cust, c, v) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(cust.Name), search) &&
			!strings.Contains(strings.ToLower(cust.Token), search) {
			continue
		}
		out = append(out, cust)
	}
	return out
}

func matchesStatus(cust models.Customer, c Criteria, v View) bool {
	switch c.Status {
	case StatusSettled:
		return v.IsSettled(cust.Token, c.Year)
	case StatusUnsettled:
		return !v.IsSettled(cust.Token, c.Year)
	case StatusLoan:
		return v.OutstandingLoanBalance(cust.Token).IsPositive()
	default:
		return true
	}
}

// Stats are the dashboard counters for one fiscal year.
type Stats struct {
	Year             int             `json:"year"`
	TotalCustomers   int             `json:"totalCustomers"`
	SettledCount     int             `json:"paidCount"`
	PendingCount     int             `json:"pendingCount"`
	ActiveLoanCount  int             `json:"activeLoanCount"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
}

// Summarize computes the dashboard counters over all customers.
func Summarize(customers []models.Customer, year int, v View) Stats {
	s := Stats{Year: year, TotalCustomers: len(customers), TotalOutstanding: decimal.Zero}
	for _, cust := range customers {
		if v.IsSettled(cust.Token, year) {
			s.SettledCount++
		}
		if bal := v.OutstandingLoanBalance(cust.Token); bal.IsPositive() {
			s.ActiveLoanCount++
			s.TotalOutstanding = s.TotalOutstanding.Add(bal)
		}
	}
	s.PendingCount = s.TotalCustomers - s.SettledCount
	return s
}
