package trust

import (
	"testing"

	"github.com/mcclellann/hpgLedger/pkg/models"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name  string
		loans []models.LoanRecord
		want  int
	}{
		{"no loans", nil, 750},
		{"fully paid", []models.LoanRecord{{DurationMonths: 12, PaidMonths: 12}}, 774},
		{"fresh loan", []models.LoanRecord{{DurationMonths: 12}}, 690},
		{"two loans", []models.LoanRecord{
			{DurationMonths: 12, PaidMonths: 12, IsRepaid: true},
			{DurationMonths: 6, PaidMonths: 2},
		}, 750 + 24 - 20 + 4},
		{"floor", []models.LoanRecord{{DurationMonths: 120}}, 300},
		{"ceiling", []models.LoanRecord{
			{DurationMonths: 60, PaidMonths: 60},
			{DurationMonths: 60, PaidMonths: 60},
		}, 900},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Score(c.loans); got != c.want {
				t.Errorf("Expected score %d, got %d", c.want, got)
			}
		})
	}
}

func TestScore_Pure(t *testing.T) {
	loans := []models.LoanRecord{{DurationMonths: 12, PaidMonths: 3}, {DurationMonths: 24, PaidMonths: 24}}
	first := Score(loans)
	second := Score(loans)
	if first != second {
		t.Errorf("Expected identical scores, got %d and %d", first, second)
	}
	if loans[0].PaidMonths != 3 {
		t.Error("Score must not mutate its input")
	}
	if first < MinScore || first > MaxScore {
		t.Errorf("Score %d out of range", first)
	}
}

func TestBandOf(t *testing.T) {
	if BandOf(774) != BandGood || BandOf(900) != BandExcellent || BandOf(600) != BandFair || BandOf(300) != BandPoor {
		t.Error("Unexpected band classification")
	}
}
