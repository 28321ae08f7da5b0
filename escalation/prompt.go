package escalation

import (
	"fmt"
	"strings"

	"schemamapper/schema"
)

// systemPrompt рамка для LLM: аналитик схем, закрытый мир типов, строгий JSON
const systemPrompt = `You are a schema-mapping analyst. You map spreadsheet column headers to a fixed business schema. Respond with a single JSON object and nothing else.`

// BuildPrompt строит user-промпт batch-запроса.
// В промпт попадают только заголовки колонок и опциональный контекст файла —
// никогда значения ячеек
func BuildPrompt(headers []string, fileContext string) string {
	var sb strings.Builder

	sb.WriteString("Map each column header to exactly one of these canonical types:\n")
	for _, t := range schema.AllTypes() {
		sb.WriteString("- ")
		sb.WriteString(string(t))
		sb.WriteByte('\n')
	}
	sb.WriteString("Use null when no canonical type fits.\n\n")

	if fileContext != "" {
		fmt.Fprintf(&sb, "File context: %s\n\n", fileContext)
	}

	sb.WriteString("Column headers:\n")
	for _, h := range headers {
		fmt.Fprintf(&sb, "- %s\n", h)
	}

	sb.WriteString(`
Respond with strict JSON:
{"mappings":[{"original":"<header>","mapped_to":"<canonical or null>","confidence":0-100,"reasoning":"<short>"}]}`)

	return sb.String()
}

// SystemPrompt возвращает системный промпт эскалации
func SystemPrompt() string {
	return systemPrompt
}
