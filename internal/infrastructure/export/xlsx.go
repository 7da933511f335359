// Package export writes committed bills as downloadable spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Sheet names of the workbook
const (
	SheetBills = "Bills"
	SheetItems = "Items"
)

var (
	billHeaders = []interface{}{
		"Bill ID", "Bill Date", "Vendor", "Category", "Payment Method",
		"Bill No", "Currency", "Tax", "Total", "Source", "Created At",
	}
	itemHeaders = []interface{}{
		"Bill ID", "Vendor", "#", "Description", "Quantity", "Rate", "Amount", "Tax",
	}
)

// XLSXExporter implements port.BillExporter with excelize
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType returns the MIME type of the workbook
func (x *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension returns the file extension of the workbook
func (x *XLSXExporter) Extension() string {
	return ".xlsx"
}

// Write renders one row per bill on the first sheet and one row per item on
// the second
func (x *XLSXExporter) Write(w io.Writer, bills []*entity.Bill) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			x.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetBills); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("failed to create items sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	for sheet, headers := range map[string][]interface{}{SheetBills: billHeaders, SheetItems: itemHeaders} {
		if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
			return fmt.Errorf("failed to write %s header: %w", sheet, err)
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}

	itemRow := 2
	for i, b := range bills {
		row := []interface{}{
			b.ID, b.BillDate, b.Vendor, b.Category, b.PaymentMethod,
			b.BillNo, b.Currency, b.TaxAmount, b.TotalAmount, b.Source,
			b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(SheetBills, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write bill %s: %w", b.ID, err)
		}

		for n, item := range b.Items {
			row := []interface{}{
				b.ID, b.Vendor, n + 1, item.Description, item.Quantity, item.Rate, item.Amount, item.Tax,
			}
			if err := f.SetSheetRow(SheetItems, fmt.Sprintf("A%d", itemRow), &row); err != nil {
				return fmt.Errorf("failed to write item of bill %s: %w", b.ID, err)
			}
			itemRow++
		}
	}

	if err := f.SetColWidth(SheetBills, "A", "A", 38); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(SheetBills, "C", "C", 28); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		x.logger.Error("Failed to write workbook", zap.Error(err))
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Debug("Workbook written",
		zap.Int("bills", len(bills)),
		zap.Int("items", itemRow-2))
	return nil
}

// Verify interface compliance
var _ port.BillExporter = (*XLSXExporter)(nil)
