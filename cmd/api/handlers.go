package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/hpgLedger/pkg/ledger"
	"github.com/mcclellann/hpgLedger/pkg/loan"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/money"
	"github.com/mcclellann/hpgLedger/pkg/query"
	"github.com/mcclellann/hpgLedger/pkg/report"
	"github.com/mcclellann/hpgLedger/pkg/store"
	"github.com/mcclellann/hpgLedger/pkg/trust"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Server exposes the ledger over HTTP.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Closed by main on shutdown
	presets []models.LineItem
	logger  *logrus.Logger
	now     func() time.Time
}

func NewServer(l *ledger.Ledger, s store.Storage, presets []models.LineItem, logger *logrus.Logger) *Server {
	return &Server{
		ledger:  l,
		storage: s,
		presets: presets,
		logger:  logger,
		now:     time.Now,
	}
}

// Routes registers every endpoint on a fresh router.
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/presets", s.presetsHandler).Methods("GET")
	router.HandleFunc("/stats", s.statsHandler).Methods("GET")
	router.HandleFunc("/reports/register", s.registerHandler).Methods("GET")

	customers := router.PathPrefix("/customers").Subrouter()
	customers.HandleFunc("", s.listCustomersHandler).Methods("GET")
	customers.HandleFunc("/{token}", s.getCustomerHandler).Methods("GET")
	customers.HandleFunc("/{token}/reconcile", s.reconcileHandler).Methods("GET")
	customers.HandleFunc("/{token}/payments", s.recordPaymentHandler).Methods("POST")
	customers.HandleFunc("/{token}/payments/quote", s.quoteAssessmentHandler).Methods("POST")
	customers.HandleFunc("/{token}/payments/{year:[0-9]+}", s.getAssessmentHandler).Methods("GET")
	customers.HandleFunc("/{token}/plan", s.activatePlanHandler).Methods("POST")
	customers.HandleFunc("/{token}/loans", s.listLoansHandler).Methods("GET")
	customers.HandleFunc("/{token}/loans", s.createLoanHandler).Methods("POST")
	customers.HandleFunc("/{token}/loans/{id}", s.getLoanHandler).Methods("GET")
	customers.HandleFunc("/{token}/loans/{id}/penalty", s.penaltyHandler).Methods("GET")
	customers.HandleFunc("/{token}/loans/{id}/schedule", s.scheduleHandler).Methods("GET")
	customers.HandleFunc("/{token}/loans/{id}/quote", s.quoteRepaymentHandler).Methods("GET")
	customers.HandleFunc("/{token}/loans/{id}/repayments", s.recordRepaymentHandler).Methods("POST")

	return router
}

type customerRow struct {
	models.Customer
	Settled            bool            `json:"settled"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	TrustScore         int             `json:"trustScore"`
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	status, err := query.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found := s.ledger.FilterCustomers(query.Criteria{Year: year, Status: status, Search: r.URL.Query().Get("q")})
	rows := make([]customerRow, 0, len(found))
	for _, c := range found {
		rows = append(rows, customerRow{
			Customer:           c,
			Settled:            s.ledger.IsSettled(c.Token, year),
			OutstandingBalance: s.ledger.OutstandingLoanBalance(c.Token),
			TrustScore:         s.ledger.TrustScore(c.Token),
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	c, err := s.ledger.Customer(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	score := s.ledger.TrustScore(token)
	writeJSON(w, http.StatusOK, struct {
		Customer           models.Customer         `json:"customer"`
		Loans              []models.LoanRecord     `json:"loans"`
		Logs               []models.TransactionLog `json:"logs"`
		OutstandingBalance decimal.Decimal         `json:"outstandingBalance"`
		TrustScore         int                     `json:"trustScore"`
		TrustBand          trust.Band              `json:"trustBand"`
	}{
		Customer:           c,
		Loans:              s.ledger.Loans(token),
		Logs:               s.ledger.Logs(token),
		OutstandingBalance: s.ledger.OutstandingLoanBalance(token),
		TrustScore:         score,
		TrustBand:          trust.BandOf(score),
	})
}

func (s *Server) reconcileHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if _, err := s.ledger.Customer(token); err != nil {
		s.writeError(w, err)
		return
	}
	resp := struct {
		Totals   ledger.Totals `json:"totals"`
		Balanced bool          `json:"balanced"`
		Problem  string        `json:"problem,omitempty"`
	}{Totals: ledger.Replay(s.ledger.Logs(token)), Balanced: true}
	if err := s.ledger.Reconcile(token); err != nil {
		if !errors.Is(err, ledger.ErrOutOfBalance) {
			s.writeError(w, err)
			return
		}
		resp.Balanced = false
		resp.Problem = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentRequest struct {
	Year  int               `json:"year"`
	Items []models.LineItem `json:"items"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Year == 0 {
		req.Year = s.now().Year()
	}

	rec, err := s.ledger.RecordTaxPayment(mux.Vars(r)["token"], req.Year, req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) quoteAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	total, err := s.ledger.AssessmentTotal(mux.Vars(r)["token"], req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":        total,
		"totalInWords": money.InWords(total),
		"formatted":    money.Format(total),
	})
}

func (s *Server) getAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return
	}
	a, err := s.ledger.Assessment(vars["token"], year)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) activatePlanHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	fee, err := s.ledger.ActivatePlan(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":      token,
		"fee":        fee,
		"feeInWords": money.InWords(fee),
	})
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if _, err := s.ledger.Customer(token); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Loans(token))
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var terms loan.Terms
	if err := json.NewDecoder(r.Body).Decode(&terms); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.ledger.DisburseLoan(mux.Vars(r)["token"], terms)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	token, loanID, ok := s.loanVars(w, r)
	if !ok {
		return
	}
	rec, err := s.ledger.Loan(token, loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) penaltyHandler(w http.ResponseWriter, r *http.Request) {
	token, loanID, ok := s.loanVars(w, r)
	if !ok {
		return
	}
	info, err := s.ledger.PenaltyInfo(token, loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	token, loanID, ok := s.loanVars(w, r)
	if !ok {
		return
	}
	slots, err := s.ledger.Schedule(token, loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *Server) quoteRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	token, loanID, ok := s.loanVars(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("installments"))
	if err != nil {
		http.Error(w, "Invalid installment count", http.StatusBadRequest)
		return
	}
	q, err := s.ledger.QuoteRepayment(token, loanID, n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) recordRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	token, loanID, ok := s.loanVars(w, r)
	if !ok {
		return
	}
	var req struct {
		Installments int `json:"installments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep, err := s.ledger.ApplyRepayment(token, loanID, req.Installments)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Stats(year))
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	customers := s.ledger.Customers()
	rows := make([]report.Row, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, report.Row{
			Customer:    c,
			Settled:     s.ledger.IsSettled(c.Token, year),
			Outstanding: s.ledger.OutstandingLoanBalance(c.Token),
			TrustScore:  s.ledger.TrustScore(c.Token),
		})
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=register_fy%d.xlsx", year))
	if err := report.WriteRegister(w, year, rows); err != nil {
		s.logger.WithError(err).Error("Failed to export register")
	}
}

func (s *Server) presetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.presets)
}

// yearParam reads ?year=, defaulting to the current calendar year.
func (s *Server) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return s.now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year <= 0 {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

func (s *Server) loanVars(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	vars := mux.Vars(r)
	loanID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	if _, err := s.ledger.Customer(vars["token"]); err != nil {
		s.writeError(w, err)
		return "", uuid.Nil, false
	}
	return vars["token"], loanID, true
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCustomerNotFound), errors.Is(err, ledger.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAssessment),
		errors.Is(err, ledger.ErrAlreadyActive),
		errors.Is(err, ledger.ErrLoanAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAssessment),
		errors.Is(err, ledger.ErrInvalidTerms),
		errors.Is(err, ledger.ErrNoInstallmentsSelected),
		errors.Is(err, ledger.ErrInstallmentsExceedTerm),
		errors.Is(err, ledger.ErrNotEligible),
		errors.Is(err, ledger.ErrPlanNotActive):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
		http.Error(w, "Internal error", status)
		return
	}
	s.logger.WithError(err).Debug("Request rejected")
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
