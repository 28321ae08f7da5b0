package schema

import "strings"

// CanonicalType канонический тип колонки бизнес-схемы
type CanonicalType string

// Фиксированный набор канонических типов целевой схемы
const (
	Date          CanonicalType = "Date"
	Sales         CanonicalType = "Sales"
	Amount        CanonicalType = "Amount"
	Product       CanonicalType = "Product"
	Quantity      CanonicalType = "Quantity"
	Region        CanonicalType = "Region"
	Customer      CanonicalType = "Customer"
	TransactionID CanonicalType = "Transaction_ID"

	// Ignore сентинел "колонка не участвует в аналитике"
	Ignore CanonicalType = "Ignore"
)

// allTypes упорядоченный список канонических типов (без Ignore)
var allTypes = []CanonicalType{
	Date,
	Sales,
	Amount,
	Product,
	Quantity,
	Region,
	Customer,
	TransactionID,
}

// AllTypes возвращает упорядоченный список канонических типов (без Ignore)
func AllTypes() []CanonicalType {
	result := make([]CanonicalType, len(allTypes))
	copy(result, allTypes)
	return result
}

// DropdownDisplayList возвращает упорядоченный список строк для UI-дропдауна,
// включая литеральный вариант "Ignore" в конце
func DropdownDisplayList() []string {
	result := make([]string, 0, len(allTypes)+1)
	for _, t := range allTypes {
		result = append(result, string(t))
	}
	result = append(result, string(Ignore))
	return result
}

// IsValid проверяет, что строка является каноническим типом или Ignore
func IsValid(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Parse разбирает строку в канонический тип без учета регистра.
// Принимает также варианты с пробелами вместо подчеркиваний ("transaction id")
func Parse(s string) (CanonicalType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if normalized == strings.ToLower(string(Ignore)) {
		return Ignore, true
	}

	for _, t := range allTypes {
		if normalized == strings.ToLower(string(t)) {
			return t, true
		}
	}

	return "", false
}
