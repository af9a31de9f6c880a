// Package seed imports the customer catalog and billable presets from a
// YAML file. Customers only enter the ledger through this import.
package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalog = errors.New("invalid seed catalog")

type presetEntry struct {
	Label  string `yaml:"label"`
	Amount int64  `yaml:"amount"`
}

type file struct {
	Customers []models.Customer `yaml:"customers"`
	Presets   []presetEntry     `yaml:"presets"`
}

// Catalog is the parsed seed file.
type Catalog struct {
	Customers []models.Customer
	Presets   []models.LineItem
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	seen := make(map[string]bool, len(f.Customers))
	for i, c := range f.Customers {
		c.Token = strings.TrimSpace(c.Token)
		if c.Token == "" {
			return nil, fmt.Errorf("%w: customer %d has no token", ErrInvalidCatalog, i+1)
		}
		if seen[c.Token] {
			return nil, fmt.Errorf("%w: duplicate token %s", ErrInvalidCatalog, c.Token)
		}
		seen[c.Token] = true
		f.Customers[i] = c
	}

	cat := &Catalog{Customers: f.Customers}
	for _, p := range f.Presets {
		if p.Label == "" || p.Amount < 0 {
			return nil, fmt.Errorf("%w: preset %q", ErrInvalidCatalog, p.Label)
		}
		cat.Presets = append(cat.Presets, models.LineItem{Label: p.Label, Amount: decimal.NewFromInt(p.Amount)})
	}
	return cat, nil
}

// Import adds the catalog customers the snapshot does not know yet and
// reports how many were added. Known customers are left untouched.
func Import(s models.Snapshot, cat *Catalog) (models.Snapshot, int) {
	known := make(map[string]bool, len(s.Customers))
	for _, c := range s.Customers {
		known[c.Token] = true
	}
	out := s.Clone()
	added := 0
	for _, c := range cat.Customers {
		if known[c.Token] {
			continue
		}
		out.Customers = append(out.Customers, c)
		added++
	}
	return out, added
}
