package preprocessing

import "time"

// DType семейство типов данных колонки, определенное по образцам значений
type DType string

const (
	DTypeNumeric  DType = "numeric"
	DTypeDatetime DType = "datetime"
	DTypeText     DType = "text"
	DTypeEmpty    DType = "empty"
)

// ColumnMetadata метаданные одной колонки.
// SampleTokens содержит только паттерн-санитизированные образцы:
// сырые значения ячеек за пределы препроцессора не выходят
type ColumnMetadata struct {
	OriginalHeader   string   `json:"original_header"`
	NormalizedHeader string   `json:"normalized_header"`
	DType            DType    `json:"dtype"`
	NullPercent      float64  `json:"null_percent"`
	Cardinality      int      `json:"cardinality"`
	SampleTokens     []string `json:"sample_tokens"`
	IDLike           bool     `json:"id_like"`
}

// FileMetadata неизменяемый снимок одной загрузки
type FileMetadata struct {
	FileName    string           `json:"file_name"`
	RowCount    int              `json:"row_count"`
	ColumnCount int              `json:"column_count"`
	Columns     []ColumnMetadata `json:"columns"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Column возвращает метаданные колонки по оригинальному заголовку
func (fm *FileMetadata) Column(originalHeader string) (ColumnMetadata, bool) {
	for _, col := range fm.Columns {
		if col.OriginalHeader == originalHeader {
			return col, true
		}
	}
	return ColumnMetadata{}, false
}

// Headers возвращает список оригинальных заголовков в порядке колонок
func (fm *FileMetadata) Headers() []string {
	headers := make([]string, len(fm.Columns))
	for i, col := range fm.Columns {
		headers[i] = col.OriginalHeader
	}
	return headers
}

// Dataset табличный набор данных: строка заголовков и строки значений.
// Промежуточное представление между читателями файлов и препроцессором
type Dataset struct {
	FileName string
	Headers  []string
	Rows     [][]string
}
