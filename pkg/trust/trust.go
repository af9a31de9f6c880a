// Package trust computes the desk's CIBIL-like trust score from a
// customer's loan history.
package trust

import "github.com/mcclellann/hpgLedger/pkg/models"

const (
	BaseScore = 750
	MinScore  = 300
	MaxScore  = 900

	unpaidMonthWeight = -5
	paidMonthWeight   = 2
)

// Score is a pure function of the loan history. Settled loans count too.
func Score(loans []models.LoanRecord) int {
	score := BaseScore
	for _, l := range loans {
		unpaid := l.DurationMonths - l.PaidMonths
		if unpaid < 0 {
			unpaid = 0
		}
		score += unpaidMonthWeight*unpaid + paidMonthWeight*l.PaidMonths
	}
	return min(MaxScore, max(MinScore, score))
}

type Band string

const (
	BandPoor      Band = "poor"
	BandFair      Band = "fair"
	BandGood      Band = "good"
	BandExcellent Band = "excellent"
)

// BandOf classifies a score for display.
func BandOf(score int) Band {
	switch {
	case score >= 800:
		return BandExcellent
	case score >= 700:
		return BandGood
	case score >= 550:
		return BandFair
	default:
		return BandPoor
	}
}
