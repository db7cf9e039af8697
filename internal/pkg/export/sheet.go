package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

//Write renders records as a single sheet workbook: one header row from the record's columns
//followed by one row per record
func Write[R domain.Row](w io.Writer, sheet string, records []R) error {
	f, err := build(sheet, records)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	return nil
}

//WriteFile saves records as an .xlsx workbook at path, creating parent directories
func WriteFile[R domain.Row](path, sheet string, records []R) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := build(sheet, records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	return nil
}

func build[R domain.Row](sheet string, records []R) (*excelize.File, error) {
	if sheet == "" {
		sheet = "Sheet1"
	}
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, err
	}

	var zero R
	columns := zero.Columns()

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetRowStyle(sheet, 1, 1, bold)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}

		values := record.Values()
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if len(columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(columns))
		f.SetColWidth(sheet, "A", last, 16)
	}

	return f, nil
}

//Rows reads back the cells of sheet as text, used to inspect exported workbooks
func Rows(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetRows(sheet)
}
