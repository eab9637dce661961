package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	productsSheet   = "Products"
	categoriesSheet = "Categories"
)

var productColumns = []struct {
	title string
	width float64
}{
	{"ID", 14},
	{"Name", 48},
	{"Price", 10},
	{"Unit", 8},
	{"Quantity", 10},
	{"Unit price", 12},
	{"Bio", 6},
	{"Category", 10},
	{"URL", 60},
	{"Issues", 30},
}

var categoryColumns = []struct {
	title string
	width float64
}{
	{"Code", 8},
	{"Description", 48},
	{"URL", 60},
	{"Active", 8},
}

// WriteCatalog writes a catalog as an xlsx workbook with a products and a categories sheet
func WriteCatalog(w io.Writer, catalog *domain.Catalog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", productsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(categoriesSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, col := range productColumns {
		if err := writeHeader(f, productsSheet, i, col.title, col.width, headerStyle); err != nil {
			return err
		}
	}
	for i, col := range categoryColumns {
		if err := writeHeader(f, categoriesSheet, i, col.title, col.width, headerStyle); err != nil {
			return err
		}
	}

	for i, p := range catalog.Products {
		var category interface{}
		if p.CategoryCode != nil {
			category = *p.CategoryCode
		}
		issues := make([]string, 0, len(p.Issues))
		for _, issue := range p.Issues {
			issues = append(issues, string(issue))
		}

		row := []interface{}{
			p.ID,
			p.Name,
			decimalCell(p.Price),
			p.Unit,
			decimalCell(p.Quantity),
			decimalCell(p.UnitPrice),
			p.Bio,
			category,
			p.URL,
			strings.Join(issues, ", "),
		}
		if err := writeRow(f, productsSheet, i+2, row); err != nil {
			return err
		}
	}

	for i, c := range catalog.Categories {
		row := []interface{}{c.Code, c.Description, c.URL, c.Active}
		if err := writeRow(f, categoriesSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(productsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename is the attachment name for a catalog export
func Filename(catalog *domain.Catalog) string {
	return fmt.Sprintf("%s-%s.xlsx", catalog.Retailer, catalog.Date)
}

func writeHeader(f *excelize.File, sheet string, index int, title string, width float64, style int) error {
	cell, err := excelize.CoordinatesToCellName(index+1, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return err
	}
	col, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, col, col, width)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// decimalCell leaves null values blank
func decimalCell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}
