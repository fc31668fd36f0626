package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/waldner/internal/dispatch"
	"github.com/EgorLis/waldner/internal/entity"
	"github.com/EgorLis/waldner/internal/ladder"
	"github.com/EgorLis/waldner/internal/restapi"
)

// упоминание пользователя в Slack: <@U123> или <@U123|name>
const mention = `<@([^>|\s]*)(?:\|[^>]*)?>`

var (
	patRank   = `rank(\ ` + mention + `)?(\ all\ time)?`
	patLadder = `ladder(\ all\ time)?`
	patGames  = `games(\ ` + mention + `)?`
	patStats  = `stats(\ ` + mention + `)?`
	patGame   = mention + `\ ` + mention + `\ (\d+[\ -]\d+.*)`
	patHelp   = `help`
	patQuote  = `^waldner$`
)

const (
	msgGameSaved    = ":table_tennis_paddle_and_ball: Matchen sparades! :table_tennis_paddle_and_ball:"
	msgGameFailed   = "Kunde inte spara matchen :crying_cat_face:"
	msgBadSets      = "Kunde inte tolka resultatet :thinking_face: Skriv t.ex. `@spelare1 @spelare2 11-5 9-11 11-7`"
	msgLadderFailed = "Kunde inte hämta topplistan :tired_face:"
	msgGamesFailed  = "Kunde inte hämta matcher :cry:"
	msgOops         = "Något gick fel :cry:"

	iconMedal = "medal"
	iconHappy = "happy"
)

var helpText = strings.Join([]string{
	"Jag kan:",
	"`@spelare1 @spelare2 11-5 9-11 11-7` – spara en match",
	"`rank [@spelare] [all time]` – ladder score och placering",
	"`ladder [all time]` – topplistan",
	"`games` – senaste matcherna",
	"`stats [@spelare]` – statistik",
}, "\n")

var quotes = []string{
	"Vet du vad det sjukaste är?\nNär jag möter folk på gatan säger fem av tio fortfarande Kungen.",
	"Medaljerna tänkte jag skicka till ett museum i Köping, men de fick inte plats så nu ligger de i påsar.",
	"Jag var tvungen att sätta ett bunkerslag på 25 meter och \"Tickan\" sa till mig: \"Sätter du det här slaget har du fri dricka i resten av ditt liv\".\nJa, ja sa jag, pang mot flaggan och rakt i",
	"Går jag in i en taxi i Kina säger chauffören: \"Tja Lao Wa! Läget?\".\nJag är halvkines och på slutet fick jag lika mycket stöd som den kines jag mötte.",
	"Alla kineser jag möter och alla som är med dem, ska ta kort innan matcherna. För dem är det lika viktigt som att spela, och det är rätt häftigt. De vill ha något att visa upp i Kina.",
	"Jag tycker att det är bättre ljus här i hallen, än när det är dåligt ljus.",
}

func (bot *WaldnerBot) registerCommands() error {
	cmds := []struct {
		pattern string
		handler dispatch.Handler
	}{
		{patRank, bot.handleRank},
		{patLadder, bot.handleLadder},
		{patGames, bot.handleGames},
		{patStats, bot.handleStats},
		{patGame, bot.handleReportGame},
		{patHelp, bot.handleHelp},
		{patQuote, bot.handleQuote},
	}
	for _, c := range cmds {
		if err := bot.engine.HearString(c.pattern, c.handler); err != nil {
			return err
		}
	}
	return nil
}

// mentioned — id из группы i или fallback, если упоминания нет.
func mentioned(args dispatch.Args, i int, fallback string) string {
	if id, ok := args.Get(i); ok && id != "" {
		return id
	}
	return fallback
}

// fetchPlayer читает игрока со статистикой.
func (bot *WaldnerBot) fetchPlayer(ctx context.Context, id string) (*entity.Entity, error) {
	p := bot.api.Model(ladder.PlayersResource, nil)
	if err := p.Set("id", id); err != nil {
		return nil, err
	}
	if _, err := p.Fetch(ctx, ladder.PlayerPath(id)); err != nil {
		return nil, err
	}
	return p.Entity, nil
}

// logFetchError: незарегистрированный игрок (404) — обычная ситуация, не warn.
func (bot *WaldnerBot) logFetchError(cmd, player string, err error) {
	if restapi.IsStatus(err, http.StatusNotFound) {
		bot.log.Info(cmd+": unknown player", zap.String("player", player))
		return
	}
	bot.log.Warn(cmd+": fetch player", zap.String("player", player), zap.Error(err))
}

// rank [@user] [all time]; без упоминания — отправитель
func (bot *WaldnerBot) handleRank(ctx context.Context, m dispatch.Message, args dispatch.Args) error {
	userID := mentioned(args, 1, m.User)
	_, allTime := args.Get(2)

	p, err := bot.fetchPlayer(ctx, userID)
	if err != nil {
		bot.logFetchError("rank", userID, err)
		return bot.reply(ctx, m, "Kunde inte hämta spelare :cry: "+err.Error(), "")
	}
	return bot.reply(ctx, m, ladder.RankText(p, ladder.PeriodOf(allTime)), iconMedal)
}

func (bot *WaldnerBot) handleLadder(ctx context.Context, m dispatch.Message, args dispatch.Args) error {
	_, allTime := args.Get(0)

	top := bot.api.Store(ladder.PlayersResource).WithKey(ladder.PlayersResource)
	if _, err := top.Fetch(ctx, ladder.TopPath, nil); err != nil {
		bot.log.Warn("could not fetch ladder", zap.Error(err))
		return bot.reply(ctx, m, msgLadderFailed, "")
	}
	return bot.reply(ctx, m, ladder.LadderText(top, ladder.PeriodOf(allTime)), iconMedal)
}

// TODO: фильтр по упомянутому игроку, когда бэкенд научится games?player=<id>
func (bot *WaldnerBot) handleGames(ctx context.Context, m dispatch.Message, _ dispatch.Args) error {
	games := bot.api.Store(ladder.GamesResource).WithKey(ladder.GamesResource)
	if _, err := games.Fetch(ctx, "", nil); err != nil {
		bot.log.Warn("could not fetch games", zap.Error(err))
		return bot.reply(ctx, m, msgGamesFailed, "")
	}
	return bot.reply(ctx, m, ladder.GamesText(games), iconHappy)
}

func (bot *WaldnerBot) handleStats(ctx context.Context, m dispatch.Message, args dispatch.Args) error {
	userID := mentioned(args, 1, m.User)
	p, err := bot.fetchPlayer(ctx, userID)
	if err != nil {
		bot.logFetchError("stats", userID, err)
		return bot.reply(ctx, m, "Kunde inte hämta spelare "+err.Error(), "")
	}
	return bot.reply(ctx, m, ladder.StatsText(p), "")
}

// @a @b 11-5 9-11 ...
func (bot *WaldnerBot) handleReportGame(ctx context.Context, m dispatch.Message, args dispatch.Args) error {
	if bot.chat == nil {
		return errors.New("chat is not configured")
	}
	ids := [2]string{args.Or(0, ""), args.Or(1, "")}
	setsText, _ := args.Get(2)

	sets, err := ladder.ParseSets(setsText)
	if err != nil {
		bot.log.Info("bad sets", zap.String("text", setsText), zap.Error(err))
		return bot.reply(ctx, m, msgBadSets, "")
	}

	// оба профиля — параллельно
	var users [2]*entity.Entity
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			u, err := bot.chat.UserInfo(gctx, id)
			if err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
			if !u.Has("id") {
				return fmt.Errorf("user %s: profile without id", id)
			}
			users[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		bot.log.Warn("could not resolve players", zap.Error(err))
		return bot.reply(ctx, m, msgGameFailed, "")
	}

	game, err := ladder.NewGame(bot.api, ladder.GameProps(users[0]), ladder.GameProps(users[1]), sets)
	if err != nil {
		return err
	}
	if _, err := game.Save(ctx); err != nil {
		bot.log.Warn("could not save game", zap.Error(err))
		return bot.reply(ctx, m, msgGameFailed, "")
	}
	return bot.reply(ctx, m, msgGameSaved, iconHappy)
}

func (bot *WaldnerBot) handleHelp(ctx context.Context, m dispatch.Message, _ dispatch.Args) error {
	return bot.reply(ctx, m, helpText, "")
}

func (bot *WaldnerBot) handleQuote(ctx context.Context, m dispatch.Message, _ dispatch.Args) error {
	return bot.reply(ctx, m, quotes[bot.pick(len(quotes))], iconHappy)
}
