package preprocessing

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HeaderNormalizer нормализует строки заголовков для дальнейшего сопоставления
type HeaderNormalizer struct {
	diacriticsRemover transform.Transformer
}

// NewHeaderNormalizer создает новый нормализатор заголовков
func NewHeaderNormalizer() *HeaderNormalizer {
	// NFD -> удаление комбинируемых знаков -> NFC
	return &HeaderNormalizer{
		diacriticsRemover: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// Normalize выполняет полную нормализацию заголовка
func (hn *HeaderNormalizer) Normalize(header string) string {
	// 1. Нижний регистр и обрезка пробелов
	text := strings.ToLower(strings.TrimSpace(header))

	// 2. Схлопывание внутренних пробелов
	text = strings.Join(strings.Fields(text), " ")

	// 3. Нормализация кавычек и дефисов
	text = normalizeQuotes(text)
	text = normalizeHyphens(text)

	// 4. Удаление диакритических знаков
	if removed, _, err := transform.String(hn.diacriticsRemover, text); err == nil {
		text = removed
	}

	// 5. Пунктуация и пробелы -> подчеркивание
	text = collapseToUnderscores(text)

	return strings.Trim(text, "_")
}

// NormalizeAll нормализует список заголовков, сохраняя порядок
func (hn *HeaderNormalizer) NormalizeAll(headers []string) []string {
	result := make([]string, len(headers))
	for i, h := range headers {
		result[i] = hn.Normalize(h)
	}
	return result
}

// normalizeQuotes приводит типографские кавычки к ASCII
func normalizeQuotes(text string) string {
	replacements := map[rune]rune{
		'“': '"',
		'”': '"',
		'‘': '\'',
		'’': '\'',
		'«': '"',
		'»': '"',
		'„': '"',
	}

	var builder strings.Builder
	for _, r := range text {
		if replacement, ok := replacements[r]; ok {
			builder.WriteRune(replacement)
		} else {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// normalizeHyphens приводит тире и длинные дефисы к обычному дефису
func normalizeHyphens(text string) string {
	text = strings.ReplaceAll(text, "—", "-") // em dash
	text = strings.ReplaceAll(text, "–", "-") // en dash
	text = strings.ReplaceAll(text, "−", "-") // minus sign
	return text
}

// collapseToUnderscores заменяет пробелы, дефисы и пунктуацию на подчеркивания,
// схлопывая последовательности в одно подчеркивание
func collapseToUnderscores(text string) string {
	var builder strings.Builder
	lastUnderscore := false

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				builder.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	return builder.String()
}
