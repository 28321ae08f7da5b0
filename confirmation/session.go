package confirmation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"schemamapper/schema"
)

// UserConfirmationSession сессия подтверждения одной загрузки.
// Держит дропдауны всех неразрешенных колонок, накапливает выборы
// пользователя и собирает итоговый маппинг по завершении
type UserConfirmationSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`

	// Дропдауны в порядке приоритета (критичные колонки первыми)
	Dropdowns []DropdownConfiguration `json:"dropdowns"`

	// Авто-применяемые маппинги, не требующие подтверждения
	AutoApplied map[string]schema.CanonicalType `json:"auto_applied"`

	mu         sync.Mutex
	selections map[string]UserSelection
}

// newSession создает сессию подтверждения
func newSession(id, userID, fileName string, dropdowns []DropdownConfiguration, autoApplied map[string]schema.CanonicalType) *UserConfirmationSession {
	return &UserConfirmationSession{
		ID:          id,
		UserID:      userID,
		FileName:    fileName,
		CreatedAt:   time.Now(),
		Dropdowns:   dropdowns,
		AutoApplied: autoApplied,
		selections:  make(map[string]UserSelection),
	}
}

// RecordSelection записывает выбор пользователя по колонке.
// Идемпотентна: повторный выбор той же колонки перезаписывает предыдущий
func (s *UserConfirmationSession) RecordSelection(header string, selected schema.CanonicalType) error {
	if !s.hasDropdown(header) {
		return fmt.Errorf("column %q is not presented for confirmation", header)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selections[header] = UserSelection{
		OriginalHeader: header,
		Selected:       selected,
		SelectedAt:     time.Now(),
	}
	return nil
}

// SkipColumn помечает колонку явно пропущенной (эквивалент выбора Ignore)
func (s *UserConfirmationSession) SkipColumn(header string) error {
	if !s.hasDropdown(header) {
		return fmt.Errorf("column %q is not presented for confirmation", header)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selections[header] = UserSelection{
		OriginalHeader: header,
		Selected:       schema.Ignore,
		Skipped:        true,
		SelectedAt:     time.Now(),
	}
	return nil
}

// hasDropdown проверяет, что колонка представлена в сессии
func (s *UserConfirmationSession) hasDropdown(header string) bool {
	for _, d := range s.Dropdowns {
		if d.OriginalHeader == header {
			return true
		}
	}
	return false
}

// Selections возвращает копию накопленных выборов
func (s *UserConfirmationSession) Selections() map[string]UserSelection {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]UserSelection, len(s.selections))
	for k, v := range s.selections {
		result[k] = v
	}
	return result
}

// IsComplete проверяет, что каждая представленная колонка имеет ровно
// один выбор (или явно пропущена)
func (s *UserConfirmationSession) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.Dropdowns {
		if _, ok := s.selections[d.OriginalHeader]; !ok {
			return false
		}
	}
	return true
}

// AssembleFinalMapping собирает итоговый маппинг завершенной сессии.
// Выбор пользователя всегда перекрывает авто-применение той же колонки.
// Коллизии канонических типов разрешаются до завершения: выше уверенность
// побеждает, при равенстве — более длинный заголовок; проигравшие получают Ignore
func (s *UserConfirmationSession) AssembleFinalMapping() (*FinalMapping, error) {
	if !s.IsComplete() {
		return nil, fmt.Errorf("session %s is not complete", s.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type claim struct {
		header     string
		canonical  schema.CanonicalType
		confidence float64
		fromUser   bool
	}

	var claims []claim

	for header, canonical := range s.AutoApplied {
		claims = append(claims, claim{header: header, canonical: canonical, confidence: s.autoConfidence(header)})
	}
	for header, selection := range s.selections {
		if selection.Selected == schema.Ignore {
			continue
		}
		// Подтверждение пользователя авторитетно: уверенность 1.0
		claims = append(claims, claim{header: header, canonical: selection.Selected, confidence: 1.0, fromUser: true})
	}

	// Выбор пользователя для колонки перекрывает ее авто-применение
	byHeader := make(map[string]claim)
	for _, c := range claims {
		existing, ok := byHeader[c.header]
		if !ok || (c.fromUser && !existing.fromUser) {
			byHeader[c.header] = c
		}
	}

	// Разрешение коллизий по каноническому типу
	byCanonical := make(map[schema.CanonicalType][]claim)
	for _, c := range byHeader {
		byCanonical[c.canonical] = append(byCanonical[c.canonical], c)
	}

	final := &FinalMapping{Mappings: make(map[string]schema.CanonicalType)}

	for canonical, contenders := range byCanonical {
		sort.Slice(contenders, func(i, j int) bool {
			a, b := contenders[i], contenders[j]
			if a.fromUser != b.fromUser {
				return a.fromUser
			}
			if a.confidence != b.confidence {
				return a.confidence > b.confidence
			}
			if len(a.header) != len(b.header) {
				return len(a.header) > len(b.header)
			}
			return a.header < b.header
		})

		final.Mappings[contenders[0].header] = canonical

		if len(contenders) > 1 {
			resolution := CollisionResolution{
				Canonical:    canonical,
				WinnerHeader: contenders[0].header,
			}
			for _, loser := range contenders[1:] {
				final.Mappings[loser.header] = schema.Ignore
				resolution.LoserHeaders = append(resolution.LoserHeaders, loser.header)
			}
			final.ResolvedCollisions = append(final.ResolvedCollisions, resolution)
		}
	}

	// Явные Ignore пользователя тоже входят в итоговый маппинг
	for header, selection := range s.selections {
		if selection.Selected == schema.Ignore {
			final.Mappings[header] = schema.Ignore
		}
	}

	available := make(map[schema.CanonicalType]bool)
	for _, canonical := range final.Mappings {
		if canonical != schema.Ignore {
			available[canonical] = true
		}
	}
	final.FeasibleAnalytics = schema.FeasibleProducts(available)

	return final, nil
}

// autoConfidence возвращает уверенность авто-применяемой колонки из дропдаунов
// (для коллизий); авто-применение вне дропдаунов оценивается порогом применения
func (s *UserConfirmationSession) autoConfidence(header string) float64 {
	for _, d := range s.Dropdowns {
		if d.OriginalHeader != header {
			continue
		}
		if len(d.Options) > 0 {
			return d.Options[0].Confidence
		}
	}
	// Авто-применение состоялось, значит уверенность была не ниже порога
	return 0.90
}
