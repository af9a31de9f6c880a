package seed

import (
	"errors"
	"testing"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/shopspring/decimal"
)

const catalogYAML = `
customers:
  - token: HPG-001
    name: Ramesh Patel
    taxType: HNCG TAX
    district: Surat
    price: "12,500"
    businessPlusActive: true
  - token: " HPG-002 "
    name: Sita Desai
    taxType: HPG TAX
    price: "4,500"
presets:
  - label: GST
    amount: 6800
`

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(cat.Customers) != 2 {
		t.Fatalf("Expected 2 customers, got %d", len(cat.Customers))
	}
	c := cat.Customers[0]
	if c.TaxType != models.TaxCategoryHNCG || c.Price != "12,500" || !c.BusinessPlusActive {
		t.Errorf("Unexpected customer %+v", c)
	}
	if cat.Customers[1].Token != "HPG-002" {
		t.Errorf("Expected trimmed token, got %q", cat.Customers[1].Token)
	}
	if len(cat.Presets) != 1 || !cat.Presets[0].Amount.Equal(decimal.NewFromInt(6800)) {
		t.Errorf("Unexpected presets %+v", cat.Presets)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"customers: [{name: nobody}]",
		"customers: [{token: A}, {token: A}]",
		"presets: [{label: GST, amount: -1}]",
		"customers: {",
	}
	for _, in := range cases {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("Parse(%q): expected ErrInvalidCatalog, got %v", in, err)
		}
	}
}

func TestImport(t *testing.T) {
	cat, _ := Parse([]byte(catalogYAML))

	s := models.NewSnapshot()
	s.Customers = []models.Customer{{Token: "HPG-001", Name: "Already Known"}}

	out, added := Import(s, cat)
	if added != 1 {
		t.Errorf("Expected 1 customer added, got %d", added)
	}
	if len(out.Customers) != 2 || out.Customers[0].Name != "Already Known" || out.Customers[1].Token != "HPG-002" {
		t.Errorf("Unexpected customers %+v", out.Customers)
	}
	if len(s.Customers) != 1 {
		t.Error("Import must not mutate its input")
	}
}
