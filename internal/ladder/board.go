package ladder

import (
	"fmt"
	"net/url"

	"github.com/EgorLis/waldner/internal/restapi"
)

const (
	PlayersResource = "players"
	TopPath         = "players/top?include=stats"
)

// PlayerPath — адрес игрока со статистикой.
func PlayerPath(id string) string {
	return PlayersResource + "/" + url.PathEscape(id) + "?include=stats"
}

// LadderText — топ за период; пустой топ — только заголовок и подвал.
func LadderText(top *restapi.Store, period Period) string {
	header := ":trophy: Veckans topplista :trophy:\n```"
	if period == AllTime {
		header = ":trophy: Maratonlista :trophy:\n```"
	}
	lines := top.PrettyPrint(func(i int, p *restapi.Model) string {
		return fmt.Sprintf("%d. %s (%s): %s-%s",
			i+1,
			text(p.Entity, "name"),
			text(p.Entity, "ratings", period.key()),
			text(p.Entity, "stats", "wins"),
			text(p.Entity, "stats", "loses"))
	})
	return header + lines + "```"
}
