// Package report renders the desk's customer register as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/mcclellann/hpgLedger/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Register"

// Row is one customer line of the register.
type Row struct {
	Customer    models.Customer
	Settled     bool
	Outstanding decimal.Decimal
	TrustScore  int
}

var headers = []string{"Token", "Name", "Category", "District", "Base Fee", "FY Status", "Loan Outstanding", "Trust Score"}

// WriteRegister writes the register for a fiscal year as an XLSX workbook.
func WriteRegister(w io.Writer, year int, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetName)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, r := range rows {
		status := "Pending"
		if r.Settled {
			status = fmt.Sprintf("Paid FY %d", year)
		}
		values := []interface{}{
			r.Customer.Token,
			r.Customer.Name,
			string(r.Customer.TaxType),
			r.Customer.District,
			money.ParseDigits(r.Customer.Price).IntPart(),
			status,
			r.Outstanding.InexactFloat64(),
			r.TrustScore,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.Customer.Token, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
