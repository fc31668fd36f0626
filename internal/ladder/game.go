package ladder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/EgorLis/waldner/internal/entity"
	"github.com/EgorLis/waldner/internal/restapi"
)

const GamesResource = "games"

var reScore = regexp.MustCompile(`\d+`)

var ErrBadSets = errors.New("sets must be pairs of scores")

// ParseSets разбирает "11-5 9-11", "11-5, 9-11" или "11 5": все числа по
// порядку, парами.
func ParseSets(s string) ([][2]int, error) {
	nums := reScore.FindAllString(s, -1)
	if len(nums) == 0 || len(nums)%2 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadSets, s)
	}
	sets := make([][2]int, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		a, err := strconv.Atoi(nums[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSets, err)
		}
		b, err := strconv.Atoi(nums[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSets, err)
		}
		sets = append(sets, [2]int{a, b})
	}
	return sets, nil
}

// NewGame — модель нового матча: {"players": [p1, p2], "sets": [[a,b], ...]}.
func NewGame(api *restapi.Client, first, second map[string]any, sets [][2]int) (*restapi.Model, error) {
	rows := make([]any, len(sets))
	for i, s := range sets {
		rows[i] = []any{s[0], s[1]}
	}
	attrs, err := entity.FromMap(map[string]any{
		"players": []any{first, second},
		"sets":    rows,
	})
	if err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}
	return api.Model(GamesResource, attrs), nil
}

// GameLine — строка списка матчей: "jo - kim: 11-5, 9-11".
func GameLine(_ int, m *restapi.Model) string {
	var names []string
	if v, ok := m.Get("players"); ok {
		for _, p := range v.GetListValue().GetValues() {
			e := entity.FromStruct(p.GetStructValue())
			name, ok := e.String("slack_name")
			if !ok {
				name = text(e, "name")
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = []string{unknown, unknown}
	}

	var scores []string
	if v, ok := m.Get("sets"); ok {
		for _, s := range v.GetListValue().GetValues() {
			pair := s.GetListValue()
			// старый формат: {"set": [a, b]}
			if pair == nil {
				pair = s.GetStructValue().GetFields()["set"].GetListValue()
			}
			var parts []string
			for _, x := range pair.GetValues() {
				t, ok := entity.Text(x)
				if !ok {
					t = unknown
				}
				parts = append(parts, t)
			}
			scores = append(scores, strings.Join(parts, "-"))
		}
	}

	line := strings.Join(names, " - ")
	if len(scores) > 0 {
		line += ": " + strings.Join(scores, ", ")
	}
	return line
}

// GamesText — ответ на "games".
func GamesText(games *restapi.Store) string {
	return "Senaste matcherna :table_tennis_paddle_and_ball:\n" + games.PrettyPrint(GameLine)
}
