package ladder

import (
	"fmt"
	"strings"

	"github.com/EgorLis/waldner/internal/entity"
)

// Period — за какой срок брать рейтинг и место.
type Period int

const (
	Weekly Period = iota
	AllTime
)

func (p Period) key() string {
	if p == AllTime {
		return "all_time"
	}
	return "weekly"
}

// PeriodOf: группа "all time" задана — AllTime.
func PeriodOf(allTime bool) Period {
	if allTime {
		return AllTime
	}
	return Weekly
}

const unknown = "?"

func text(e *entity.Entity, keys ...string) string {
	if s, ok := e.String(keys...); ok {
		return s
	}
	return unknown
}

// GameProps — поля игрока в формате, который бэкенд ждёт в теле матча.
// Источник — профиль пользователя Slack; отсутствующие поля пропускаются.
func GameProps(user *entity.Entity) map[string]any {
	props := map[string]any{}
	copyField := func(dst string, src ...string) {
		if v, ok := user.Path(src...); ok {
			props[dst] = v.AsInterface()
		}
	}
	copyField("id", "id")
	copyField("name", "real_name")
	copyField("slack_id", "id")
	copyField("slack_name", "name")
	copyField("avatar_url", "profile", "image_original")
	return props
}

// RankText — ответ на "rank": очки и место за период.
func RankText(p *entity.Entity, period Period) string {
	score := text(p, "ratings", period.key())
	rank := text(p, "rank", period.key())
	s := fmt.Sprintf("@%s har ladder score %s och ligger på plats %s", text(p, "slack_name"), score, rank)
	// место может прийти и числом, и строкой
	if n, ok := p.Number("rank", period.key()); (ok && n == 1) || rank == "1" {
		s += " :party::sports_medal::trophy:"
	}
	return s
}

// StatsText — ответ на "stats".
func StatsText(p *entity.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statistik för @%s\n", text(p, "slack_name"))
	fmt.Fprintf(&b, "Vinster: %s, förluster: %s\n", text(p, "stats", "wins"), text(p, "stats", "loses"))
	fmt.Fprintf(&b, "Veckans ladder score: %s (plats %s)\n", text(p, "ratings", "weekly"), text(p, "rank", "weekly"))
	fmt.Fprintf(&b, "Maraton: %s (plats %s)", text(p, "ratings", "all_time"), text(p, "rank", "all_time"))
	return b.String()
}
