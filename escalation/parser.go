package escalation

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"schemamapper/schema"
)

// ParseResponse разбирает и валидирует ответ LLM.
// Неизвестные канонические типы и битые элементы отбрасываются поэлементно:
// частично валидный ответ лучше, чем отказ всего батча
func ParseResponse(raw string) (*GPTResponse, error) {
	cleaned := stripMarkdownFences(raw)

	var wire wireResponse
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	response := EmptyResponse()

	for _, m := range wire.Mappings {
		if m.Original == "" {
			continue
		}

		// null или "null" означает отсутствие подходящего типа
		if m.MappedTo == nil || strings.EqualFold(*m.MappedTo, "null") {
			continue
		}

		canonical, ok := schema.Parse(*m.MappedTo)
		if !ok || canonical == schema.Ignore {
			log.Printf("[Escalation] Dropping unrecognized mapped_to %q for header %q", *m.MappedTo, m.Original)
			continue
		}

		response.Mappings[m.Original] = MappingResult{
			Canonical:  canonical,
			Confidence: clampConfidence(m.Confidence / 100.0),
			Reasoning:  m.Reasoning,
		}
	}

	return response, nil
}

// stripMarkdownFences убирает обрамление ```json ... ``` из ответа модели
func stripMarkdownFences(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
	}

	return strings.TrimSpace(response)
}

// clampConfidence ограничивает уверенность диапазоном [0,1]
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
