package ledger

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/hpgLedger/pkg/loan"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/query"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MockCommitter records every snapshot handed to the commit hook and can be
// told to fail.
type MockCommitter struct {
	snapshots []models.Snapshot
	fail      error
}

func (m *MockCommitter) Commit(s models.Snapshot) error {
	if m.fail != nil {
		return m.fail
	}
	m.snapshots = append(m.snapshots, s)
	return nil
}

// testClock is a settable time source.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seedSnapshot() models.Snapshot {
	s := models.NewSnapshot()
	s.Customers = []models.Customer{
		{Token: "HPG-001", Name: "Ramesh Patel", TaxType: models.TaxCategoryHNCG, District: "Surat", Price: "12,500"},
		{Token: "HPG-002", Name: "Sita Desai", TaxType: "HPG TAX", District: "Anand", Price: "4,500"},
	}
	return s
}

func newTestLedger(t *testing.T) (*Ledger, *MockCommitter, *testClock) {
	t.Helper()
	committer := &MockCommitter{}
	clock := &testClock{t: time.Date(2026, time.April, 10, 11, 0, 0, 0, time.UTC)}
	l := NewLedger(seedSnapshot(), quietLogger(), WithClock(clock.Now), WithCommit(committer.Commit))
	return l, committer, clock
}

func standardTerms() loan.Terms {
	return loan.Terms{
		Principal:         decimal.NewFromInt(100000),
		AnnualRatePercent: decimal.NewFromInt(12),
		DurationMonths:    12,
	}
}

func TestRecordTaxPayment(t *testing.T) {
	l, committer, _ := newTestLedger(t)

	items := []models.LineItem{
		{Label: "GST", Amount: decimal.NewFromInt(6800)},
		{Label: "SGST", Amount: decimal.NewFromInt(1800)},
	}
	if _, err := l.RecordTaxPayment("HPG-001", 2026, items); err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}

	if !l.IsSettled("HPG-001", 2026) {
		t.Error("Expected FY 2026 settled")
	}
	if l.IsSettled("HPG-001", 2027) {
		t.Error("Expected FY 2027 unsettled")
	}

	logs := l.Logs("HPG-001")
	if len(logs) != 1 || logs[0].Type != models.TransactionTypeTaxPayment {
		t.Fatalf("Expected one TAX_PAYMENT log, got %+v", logs)
	}
	if !logs[0].Amount.Equal(decimal.NewFromInt(8600)) {
		t.Errorf("Expected log amount 8600, got %s", logs[0].Amount)
	}
	if len(committer.snapshots) != 1 {
		t.Errorf("Expected 1 commit, got %d", len(committer.snapshots))
	}
}

func TestRecordTaxPayment_Duplicate(t *testing.T) {
	l, committer, _ := newTestLedger(t)

	if _, err := l.RecordTaxPayment("HPG-001", 2026, nil); err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}
	_, err := l.RecordTaxPayment("HPG-001", 2026, []models.LineItem{{Label: "GST", Amount: decimal.NewFromInt(6800)}})
	if !errors.Is(err, ErrDuplicateAssessment) {
		t.Errorf("Expected ErrDuplicateAssessment, got %v", err)
	}
	if len(l.Logs("HPG-001")) != 1 || len(committer.snapshots) != 1 {
		t.Error("Rejected payment must not touch state")
	}

	if _, err := l.RecordTaxPayment("HPG-001", 2024, nil); !errors.Is(err, ErrDuplicateAssessment) {
		t.Errorf("Expected the grandfathered year to be settled already, got %v", err)
	}
}

func TestRecordTaxPayment_Invalid(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.RecordTaxPayment("NOPE", 2026, nil); !errors.Is(err, ErrCustomerNotFound) {
		t.Errorf("Expected ErrCustomerNotFound, got %v", err)
	}
	_, err := l.RecordTaxPayment("HPG-001", 2026, []models.LineItem{{Label: "Refund", Amount: decimal.NewFromInt(-5)}})
	if !errors.Is(err, ErrInvalidAssessment) {
		t.Errorf("Expected ErrInvalidAssessment, got %v", err)
	}
}

func TestAssessment_RoundTrip(t *testing.T) {
	l, _, _ := newTestLedger(t)
	items := []models.LineItem{{Label: "Nora Info Tech", Amount: decimal.NewFromInt(5700)}}

	quoted, err := l.AssessmentTotal("HPG-001", items)
	if err != nil {
		t.Fatalf("Failed to price assessment: %v", err)
	}
	if _, err := l.RecordTaxPayment("HPG-001", 2026, items); err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}

	a, err := l.Assessment("HPG-001", 2026)
	if err != nil {
		t.Fatalf("Failed to read assessment: %v", err)
	}
	if !a.Total.Equal(quoted) || !a.Total.Equal(decimal.NewFromInt(18200)) {
		t.Errorf("Expected total %s, got %s", quoted, a.Total)
	}
	if !a.Settled || a.Grandfathered {
		t.Errorf("Unexpected flags %+v", a)
	}

	legacy, _ := l.Assessment("HPG-002", 2024)
	if !legacy.Settled || !legacy.Grandfathered {
		t.Errorf("Expected grandfathered settled year, got %+v", legacy)
	}
}

func TestDisburseLoan(t *testing.T) {
	l, _, clock := newTestLedger(t)

	rec, err := l.DisburseLoan("HPG-001", standardTerms())
	if err != nil {
		t.Fatalf("Failed to disburse loan: %v", err)
	}
	if !rec.TotalRepayment.Equal(decimal.NewFromInt(112000)) {
		t.Errorf("Expected total repayment 112000, got %s", rec.TotalRepayment)
	}
	if !rec.DisbursalDate.Equal(clock.t) {
		t.Errorf("Expected disbursal at %s, got %s", clock.t, rec.DisbursalDate)
	}

	logs := l.Logs("HPG-001")
	if len(logs) != 1 || logs[0].Type != models.TransactionTypeLoanCredit || !logs[0].Amount.Equal(rec.Principal) {
		t.Errorf("Expected LOAN_CREDIT for the principal, got %+v", logs)
	}
	if !l.OutstandingLoanBalance("HPG-001").Equal(decimal.NewFromInt(112000)) {
		t.Errorf("Unexpected balance %s", l.OutstandingLoanBalance("HPG-001"))
	}
}

func TestDisburseLoan_DailyNeedsPlan(t *testing.T) {
	l, _, _ := newTestLedger(t)
	terms := standardTerms()
	terms.LoanType = models.LoanTypeDaily

	if _, err := l.DisburseLoan("HPG-001", terms); !errors.Is(err, ErrPlanNotActive) {
		t.Fatalf("Expected ErrPlanNotActive, got %v", err)
	}

	if _, err := l.ActivatePlan("HPG-001"); err != nil {
		t.Fatalf("Failed to activate plan: %v", err)
	}
	terms.RepaymentCycle = models.RepaymentCycleYearly
	rec, err := l.DisburseLoan("HPG-001", terms)
	if err != nil {
		t.Fatalf("Failed to disburse daily loan: %v", err)
	}
	if rec.LoanType != models.LoanTypeDaily || rec.RepaymentCycle != models.RepaymentCycleYearly || rec.Name != "Business Capital" {
		t.Errorf("Unexpected daily loan %+v", rec)
	}
}

func TestApplyRepayment_WithPenalty(t *testing.T) {
	l, _, clock := newTestLedger(t)
	rec, _ := l.DisburseLoan("HPG-001", standardTerms())

	if _, err := l.ApplyRepayment("HPG-001", rec.ID, 2); err != nil {
		t.Fatalf("Failed to apply repayment: %v", err)
	}

	clock.t = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	info, err := l.PenaltyInfo("HPG-001", rec.ID)
	if err != nil {
		t.Fatalf("Failed to read penalty: %v", err)
	}
	if info.OverdueCount != 4 || !info.MonthlyPenalty.Equal(decimal.NewFromInt(187)) {
		t.Errorf("Unexpected penalty %+v", info)
	}

	r, err := l.ApplyRepayment("HPG-001", rec.ID, 2)
	if err != nil {
		t.Fatalf("Failed to apply repayment: %v", err)
	}
	if !r.Quote.Amount.Equal(decimal.NewFromInt(19040)) {
		t.Errorf("Expected 19040 collected, got %s", r.Quote.Amount)
	}
	if r.Loan.PaidMonths != 4 || !r.Loan.PaidAmount.Equal(decimal.NewFromInt(18666+19040)) {
		t.Errorf("Unexpected loan after repayment %+v", r.Loan)
	}
	if !r.Loan.TotalRepayment.Equal(rec.TotalRepayment) {
		t.Error("Total repayment must not change")
	}
	if r.AmountInWords != "19 Thousand 40 Only" {
		t.Errorf("Unexpected words %q", r.AmountInWords)
	}

	logs := l.Logs("HPG-001")
	if logs[0].Type != models.TransactionTypeEMIDebit || !logs[0].Amount.Equal(decimal.NewFromInt(19040)) {
		t.Errorf("Expected newest log to be the EMI debit, got %+v", logs[0])
	}
}

func TestApplyRepayment_Errors(t *testing.T) {
	l, _, _ := newTestLedger(t)
	rec, _ := l.DisburseLoan("HPG-001", standardTerms())

	if _, err := l.ApplyRepayment("HPG-001", uuid.New(), 1); !errors.Is(err, ErrLoanNotFound) {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}
	if _, err := l.ApplyRepayment("HPG-002", rec.ID, 1); !errors.Is(err, ErrLoanNotFound) {
		t.Errorf("Expected another customer's loan to be not found, got %v", err)
	}
	if _, err := l.ApplyRepayment("HPG-001", rec.ID, 0); !errors.Is(err, ErrNoInstallmentsSelected) {
		t.Errorf("Expected ErrNoInstallmentsSelected, got %v", err)
	}
	if _, err := l.ApplyRepayment("HPG-001", rec.ID, 13); !errors.Is(err, ErrInstallmentsExceedTerm) {
		t.Errorf("Expected ErrInstallmentsExceedTerm, got %v", err)
	}
}

func TestApplyRepayment_SettledLoanRejected(t *testing.T) {
	l, _, _ := newTestLedger(t)
	rec, _ := l.DisburseLoan("HPG-001", standardTerms())

	r, err := l.ApplyRepayment("HPG-001", rec.ID, 12)
	if err != nil {
		t.Fatalf("Failed to prepay the loan: %v", err)
	}
	if !r.Loan.IsRepaid || !r.Loan.PaidAmount.Equal(decimal.NewFromInt(112000)) {
		t.Fatalf("Expected loan repaid in full, got %+v", r.Loan)
	}
	if !l.OutstandingLoanBalance("HPG-001").IsZero() {
		t.Errorf("Expected zero balance, got %s", l.OutstandingLoanBalance("HPG-001"))
	}

	if _, err := l.ApplyRepayment("HPG-001", rec.ID, 1); !errors.Is(err, ErrLoanAlreadySettled) {
		t.Errorf("Expected ErrLoanAlreadySettled, got %v", err)
	}
}

func TestActivatePlan(t *testing.T) {
	l, _, _ := newTestLedger(t)

	fee, err := l.ActivatePlan("HPG-001")
	if err != nil {
		t.Fatalf("Failed to activate plan: %v", err)
	}
	if !fee.Equal(decimal.NewFromInt(69500)) {
		t.Errorf("Expected fee 69500, got %s", fee)
	}
	c, _ := l.Customer("HPG-001")
	if !c.BusinessPlusActive {
		t.Error("Expected plan flag set")
	}

	logs := l.Logs("HPG-001")
	if len(logs) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(logs))
	}
	if logs[0].Type != models.TransactionTypeTaxPayment || !logs[0].Amount.Equal(fee) {
		t.Errorf("Expected fee entry first, got %+v", logs[0])
	}
	if logs[1].Type != models.TransactionTypeModeActivate {
		t.Errorf("Expected MODE_ACTIVATE entry, got %+v", logs[1])
	}
	if l.IsSettled("HPG-001", 2026) {
		t.Error("Plan fee must not settle the fiscal year")
	}

	if _, err := l.ActivatePlan("HPG-001"); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}
	if _, err := l.ActivatePlan("HPG-002"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("Expected ErrNotEligible, got %v", err)
	}
}

func TestCommitFailureLeavesStateUnchanged(t *testing.T) {
	l, committer, _ := newTestLedger(t)
	before := l.Snapshot()

	committer.fail = errors.New("disk full")
	if _, err := l.RecordTaxPayment("HPG-001", 2026, nil); err == nil {
		t.Fatal("Expected commit failure to surface")
	}
	if _, err := l.ActivatePlan("HPG-001"); err == nil {
		t.Fatal("Expected commit failure to surface")
	}

	after := l.Snapshot()
	if l.IsSettled("HPG-001", 2026) || len(after.Logs["HPG-001"]) != len(before.Logs["HPG-001"]) {
		t.Error("Failed commit must not change payments or logs")
	}
	if c, _ := l.Customer("HPG-001"); c.BusinessPlusActive {
		t.Error("Failed commit must not change the plan flag")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l, _, _ := newTestLedger(t)
	l.DisburseLoan("HPG-001", standardTerms())

	snap := l.Snapshot()
	snap.Loans["HPG-001"][0].PaidMonths = 99
	snap.Customers[0].Name = "changed"

	if l.Loans("HPG-001")[0].PaidMonths != 0 {
		t.Error("Mutating a snapshot must not reach the ledger")
	}
	if c, _ := l.Customer("HPG-001"); c.Name != "Ramesh Patel" {
		t.Error("Mutating a snapshot must not reach the ledger")
	}
}

func TestTrustScore(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if got := l.TrustScore("HPG-001"); got != 750 {
		t.Errorf("Expected base score 750, got %d", got)
	}

	rec, _ := l.DisburseLoan("HPG-001", standardTerms())
	l.ApplyRepayment("HPG-001", rec.ID, 12)

	first := l.TrustScore("HPG-001")
	if first != 774 {
		t.Errorf("Expected 774, got %d", first)
	}
	if second := l.TrustScore("HPG-001"); second != first {
		t.Errorf("Expected a stable score, got %d then %d", first, second)
	}
}

func TestFilterCustomersAndStats(t *testing.T) {
	l, _, _ := newTestLedger(t)
	l.RecordTaxPayment("HPG-001", 2026, nil)
	l.DisburseLoan("HPG-002", standardTerms())

	paid := l.FilterCustomers(query.Criteria{Year: 2026, Status: query.StatusSettled})
	if len(paid) != 1 || paid[0].Token != "HPG-001" {
		t.Errorf("Unexpected settled customers %+v", paid)
	}
	withLoan := l.FilterCustomers(query.Criteria{Year: 2026, Status: query.StatusLoan, Search: "sita"})
	if len(withLoan) != 1 || withLoan[0].Token != "HPG-002" {
		t.Errorf("Unexpected loan customers %+v", withLoan)
	}

	s := l.Stats(2026)
	if s.SettledCount != 1 || s.PendingCount != 1 || s.ActiveLoanCount != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestReconcile(t *testing.T) {
	l, _, clock := newTestLedger(t)

	l.RecordTaxPayment("HPG-001", 2026, []models.LineItem{{Label: "GST", Amount: decimal.NewFromInt(6800)}})
	l.ActivatePlan("HPG-001")
	rec, _ := l.DisburseLoan("HPG-001", standardTerms())
	clock.t = clock.t.AddDate(0, 5, 0)
	l.ApplyRepayment("HPG-001", rec.ID, 3)

	if err := l.Reconcile("HPG-001"); err != nil {
		t.Errorf("Expected ledger to reconcile, got %v", err)
	}

	totals := Replay(l.Logs("HPG-001"))
	if !totals.PlanFees.Equal(decimal.NewFromInt(69500)) || !totals.Assessed.Equal(decimal.NewFromInt(6800)) {
		t.Errorf("Unexpected replay totals %+v", totals)
	}

	l.state.Loans["HPG-001"][0].PaidAmount = decimal.Zero
	if err := l.Reconcile("HPG-001"); !errors.Is(err, ErrOutOfBalance) {
		t.Errorf("Expected ErrOutOfBalance after tampering, got %v", err)
	}
}
