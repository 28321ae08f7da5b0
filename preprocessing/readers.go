package preprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ReadDataset читает табличный файл по расширению (csv или xlsx)
func ReadDataset(fileName string, r io.Reader) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return ReadCSV(fileName, r)
	case ".xlsx", ".xlsm":
		return ReadExcel(fileName, r)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(fileName))
	}
}

// ReadCSV читает CSV в Dataset с определением кодировки и разделителя.
// Файлы не в UTF-8 декодируются как windows-1251 (частый случай выгрузок)
func ReadCSV(fileName string, r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Срезаем UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	// Не UTF-8 -> пробуем windows-1251
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode file as windows-1251: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return &Dataset{
		FileName: filepath.Base(fileName),
		Headers:  trimAll(records[0]),
		Rows:     records[1:],
	}, nil
}

// detectDelimiter определяет разделитель по первой строке файла
func detectDelimiter(data []byte) rune {
	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}

	candidates := []rune{',', ';', '\t', '|'}
	best := ','
	bestCount := 0

	for _, c := range candidates {
		count := bytes.Count(firstLine, []byte(string(c)))
		if count > bestCount {
			best = c
			bestCount = count
		}
	}

	return best
}

// ReadExcel читает первый лист xlsx-файла в Dataset
func ReadExcel(fileName string, r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	return &Dataset{
		FileName: filepath.Base(fileName),
		Headers:  trimAll(rows[0]),
		Rows:     rows[1:],
	}, nil
}

// trimAll обрезает пробелы во всех элементах среза
func trimAll(values []string) []string {
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = strings.TrimSpace(v)
	}
	return result
}
