package preprocessing

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// maxScanRows максимальное число строк, сканируемых для вывода типов
const maxScanRows = 1000

// Preprocessor извлекает метаданные колонок из табличного набора данных
type Preprocessor struct {
	normalizer *HeaderNormalizer
}

// NewPreprocessor создает новый препроцессор
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		normalizer: NewHeaderNormalizer(),
	}
}

// Process строит неизменяемый снимок метаданных загрузки.
// Сырые значения ячеек не покидают эту функцию: наружу уходят только
// заголовки, статистика и паттерн-токены
func (p *Preprocessor) Process(dataset *Dataset) (*FileMetadata, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if len(dataset.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no header row")
	}

	scanRows := len(dataset.Rows)
	if scanRows > maxScanRows {
		scanRows = maxScanRows
	}

	columns := make([]ColumnMetadata, 0, len(dataset.Headers))

	for colIdx, header := range dataset.Headers {
		values := make([]string, 0, scanRows)
		for rowIdx := 0; rowIdx < scanRows; rowIdx++ {
			row := dataset.Rows[rowIdx]
			if colIdx < len(row) {
				values = append(values, row[colIdx])
			} else {
				values = append(values, "")
			}
		}

		col := p.analyzeColumn(header, values)
		columns = append(columns, col)
	}

	metadata := &FileMetadata{
		FileName:    dataset.FileName,
		RowCount:    len(dataset.Rows),
		ColumnCount: len(dataset.Headers),
		Columns:     columns,
		CreatedAt:   time.Now(),
	}

	log.Printf("[Preprocessor] Extracted metadata: file=%s columns=%d rows=%d",
		dataset.FileName, metadata.ColumnCount, metadata.RowCount)

	return metadata, nil
}

// analyzeColumn вычисляет метаданные одной колонки
func (p *Preprocessor) analyzeColumn(header string, values []string) ColumnMetadata {
	nonEmpty := 0
	distinct := make(map[string]bool)
	numeric := 0
	datetime := 0

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		distinct[trimmed] = true

		if isNumericValue(trimmed) {
			numeric++
		} else if isDatetimeValue(trimmed) {
			datetime++
		}
	}

	nullPercent := 0.0
	if len(values) > 0 {
		nullPercent = float64(len(values)-nonEmpty) / float64(len(values))
	}

	return ColumnMetadata{
		OriginalHeader:   header,
		NormalizedHeader: p.normalizer.Normalize(header),
		DType:            inferDType(nonEmpty, numeric, datetime),
		NullPercent:      nullPercent,
		Cardinality:      len(distinct),
		SampleTokens:     collectSampleTokens(values),
		IDLike:           isIDLikeColumn(nonEmpty, len(distinct)),
	}
}

// inferDType определяет семейство типа по долям распознанных значений.
// Порог 80%: допускаем примеси мусорных значений в реальных выгрузках
func inferDType(nonEmpty, numeric, datetime int) DType {
	if nonEmpty == 0 {
		return DTypeEmpty
	}

	threshold := float64(nonEmpty) * 0.8
	if float64(numeric) >= threshold {
		return DTypeNumeric
	}
	if float64(datetime) >= threshold {
		return DTypeDatetime
	}
	return DTypeText
}

// isNumericValue проверяет, что значение является числом
func isNumericValue(v string) bool {
	// Частый случай: разделители тысяч и валютные символы
	cleaned := strings.NewReplacer(",", "", " ", "", "$", "", "€", "", "₽", "").Replace(v)
	if cleaned == "" {
		return false
	}
	_, err := strconv.ParseFloat(cleaned, 64)
	return err == nil
}

// datetimeLayouts поддерживаемые форматы дат в выгрузках
var datetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"02.01.2006 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// isDatetimeValue проверяет, что значение распознается как дата
func isDatetimeValue(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// isIDLikeColumn эвристика "похоже на идентификатор": почти все значения
// уникальны и непустых значений достаточно для вывода
func isIDLikeColumn(nonEmpty, distinct int) bool {
	if nonEmpty < 5 {
		return false
	}
	return float64(distinct) >= float64(nonEmpty)*0.95
}
