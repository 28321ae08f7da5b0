package confirmation

import (
	"time"

	"schemamapper/schema"
)

// maxOptionsPerColumn сколько ранжированных кандидатов показывать
// помимо обязательного варианта Ignore
const maxOptionsPerColumn = 3

// DropdownOption один кандидат дропдауна для колонки
type DropdownOption struct {
	Canonical        schema.CanonicalType `json:"canonical"`
	DisplayName      string               `json:"display_name"`
	Confidence       float64              `json:"confidence"`
	Sources          []string             `json:"sources"`
	Rationale        string               `json:"rationale"`
	EnabledAnalytics []string             `json:"enabled_analytics,omitempty"`
}

// DropdownConfiguration UI-контракт подтверждения одной колонки:
// ранжированные кандидаты, обязательный вариант Ignore и подсказка
type DropdownConfiguration struct {
	OriginalHeader string           `json:"original_header"`
	Priority       int              `json:"priority"`
	Options        []DropdownOption `json:"options"`
	Guidance       string           `json:"guidance"`
}

// UserSelection подтвержденный выбор пользователя по одной колонке
type UserSelection struct {
	OriginalHeader string               `json:"original_header"`
	Selected       schema.CanonicalType `json:"selected"`
	Skipped        bool                 `json:"skipped"`
	SelectedAt     time.Time            `json:"selected_at"`
}

// FinalMapping итоговое соответствие заголовков каноническим типам.
// На каждый канонический тип (кроме Ignore) приходится не более одной колонки
type FinalMapping struct {
	Mappings           map[string]schema.CanonicalType `json:"mappings"`
	FeasibleAnalytics  []string                        `json:"feasible_analytics"`
	ResolvedCollisions []CollisionResolution           `json:"resolved_collisions,omitempty"`
}

// CollisionResolution запись о разрешении коллизии канонического типа
type CollisionResolution struct {
	Canonical    schema.CanonicalType `json:"canonical"`
	WinnerHeader string               `json:"winner_header"`
	LoserHeaders []string             `json:"loser_headers"`
}
