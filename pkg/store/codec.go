package store

import (
	"encoding/json"
	"fmt"

	"github.com/mcclellann/hpgLedger/pkg/loan"
	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/sirupsen/logrus"
)

// Keys lists the namespaced storage keys, one per collection.
var Keys = []string{models.KeyCustomers, models.KeyPayments, models.KeyLoans, models.KeyLogs}

// Encode serialises each collection of the snapshot under its key.
func Encode(s models.Snapshot) (map[string][]byte, error) {
	values := map[string]any{
		models.KeyCustomers: s.Customers,
		models.KeyPayments:  s.Payments,
		models.KeyLoans:     s.Loans,
		models.KeyLogs:      s.Logs,
	}
	out := make(map[string][]byte, len(values))
	for key, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		out[key] = b
	}
	return out, nil
}

// Decode rebuilds a snapshot from stored values. A missing or malformed
// value leaves that collection empty: the stored medium is not trusted, so
// loading never fails on bad content.
func Decode(raw map[string][]byte, logger *logrus.Logger) models.Snapshot {
	s := models.NewSnapshot()
	targets := map[string]any{
		models.KeyCustomers: &s.Customers,
		models.KeyPayments:  &s.Payments,
		models.KeyLoans:     &s.Loans,
		models.KeyLogs:      &s.Logs,
	}
	for key, target := range targets {
		b, ok := raw[key]
		if !ok || len(b) == 0 {
			continue
		}
		if err := json.Unmarshal(b, target); err != nil {
			logger.WithError(err).WithField("key", key).Warn("Discarding malformed stored collection")
			resetCollection(&s, key)
		}
	}
	return dropInvalid(normalize(s), logger)
}

func resetCollection(s *models.Snapshot, key string) {
	empty := models.NewSnapshot()
	switch key {
	case models.KeyCustomers:
		s.Customers = empty.Customers
	case models.KeyPayments:
		s.Payments = empty.Payments
	case models.KeyLoans:
		s.Loans = empty.Loans
	case models.KeyLogs:
		s.Logs = empty.Logs
	}
}

// normalize replaces collections decoded as JSON null.
func normalize(s models.Snapshot) models.Snapshot {
	empty := models.NewSnapshot()
	if s.Customers == nil {
		s.Customers = empty.Customers
	}
	if s.Payments == nil {
		s.Payments = empty.Payments
	}
	if s.Loans == nil {
		s.Loans = empty.Loans
	}
	if s.Logs == nil {
		s.Logs = empty.Logs
	}
	return s
}

// dropInvalid removes entries that decoded but break the ledger's
// invariants, so a hand-edited store cannot inject them.
func dropInvalid(s models.Snapshot, logger *logrus.Logger) models.Snapshot {
	customers := s.Customers[:0]
	for _, c := range s.Customers {
		if c.Token == "" {
			logger.Warn("Dropping stored customer without token")
			continue
		}
		customers = append(customers, c)
	}
	s.Customers = customers

	for token, loans := range s.Loans {
		kept := loans[:0]
		for _, l := range loans {
			if l.DurationMonths <= 0 || l.DurationMonths > loan.MaxDurationMonths || l.PaidMonths < 0 || l.PaidMonths > l.DurationMonths {
				logger.WithFields(logrus.Fields{"token": token, "loan_id": l.ID}).Warn("Dropping stored loan with invalid installment counts")
				continue
			}
			kept = append(kept, l)
		}
		s.Loans[token] = kept
	}

	for token, logs := range s.Logs {
		kept := logs[:0]
		for _, e := range logs {
			if !e.Type.Valid() {
				logger.WithFields(logrus.Fields{"token": token, "type": e.Type}).Warn("Dropping stored log entry of unknown type")
				continue
			}
			kept = append(kept, e)
		}
		s.Logs[token] = kept
	}
	return s
}
