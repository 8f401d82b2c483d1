package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"vital-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

// ErrNoHeader 文件为空或没有表头
var ErrNoHeader = errors.New("file has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV 读取 CSV，逗号分隔优先；表头只有一列且包含分号时按分号重新解析
func ReadCSV(r io.Reader) (models.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	table, err := parseDelimited(data, ',')
	if err != nil {
		return models.Table{}, err
	}
	if len(table.Header) == 1 && strings.Contains(table.Header[0], ";") {
		return parseDelimited(data, ';')
	}
	return table, nil
}

func parseDelimited(data []byte, comma rune) (models.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return models.Table{}, ErrNoHeader
	}
	return models.Table{Header: records[0], Rows: records[1:]}, nil
}

// ReadXLSX 读取第一个工作表
func ReadXLSX(r io.Reader) (models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return models.Table{}, ErrNoHeader
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return models.Table{}, ErrNoHeader
	}
	return models.Table{Header: rows[0], Rows: rows[1:]}, nil
}

// ReadTable 按扩展名选择解析方式（.xlsx 为 Excel，其余按 CSV）
func ReadTable(filename string, r io.Reader) (models.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return ReadCSV(r)
	}
}
