package preprocessing

import (
	"strings"
	"unicode"
)

// maxSampleTokens максимальное число образцов паттернов на колонку
const maxSampleTokens = 3

// maxPatternLength предел длины паттерн-токена в рунах
const maxPatternLength = 24

// SanitizePattern преобразует значение ячейки в паттерн-токен:
// цифры -> '9', буквы -> 'X', разделители сохраняются.
// Это граница приватности: дальше по конвейеру уходят только такие токены
func SanitizePattern(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var builder strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			builder.WriteRune('9')
		case unicode.IsLetter(r):
			builder.WriteRune('X')
		default:
			builder.WriteRune(r)
		}
	}

	pattern := builder.String()

	// Длинные значения обрезаем: для определения формата достаточно начала.
	// Обрезка по рунам: сохраненные разделители могут быть многобайтовыми
	if len(pattern) > maxPatternLength {
		runes := []rune(pattern)
		if len(runes) > maxPatternLength {
			runes = runes[:maxPatternLength]
		}
		pattern = string(runes)
	}

	return pattern
}

// collectSampleTokens собирает до maxSampleTokens уникальных паттернов
// из непустых значений колонки
func collectSampleTokens(values []string) []string {
	seen := make(map[string]bool)
	var tokens []string

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		pattern := SanitizePattern(v)
		if pattern == "" || seen[pattern] {
			continue
		}
		seen[pattern] = true
		tokens = append(tokens, pattern)
		if len(tokens) >= maxSampleTokens {
			break
		}
	}

	return tokens
}
