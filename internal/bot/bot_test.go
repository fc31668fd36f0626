package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/EgorLis/waldner/internal/entity"
	"github.com/EgorLis/waldner/internal/restapi"
	"github.com/EgorLis/waldner/internal/slackrtm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type response struct {
	User, Channel, Text, Icon string
}

type fakeChat struct {
	mu        sync.Mutex
	responses []response
	users     map[string]string // id -> JSON профиля
	failNext  bool
}

func (c *fakeChat) Respond(_ context.Context, user, channel, text, icon string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return errors.New("slack is down")
	}
	c.responses = append(c.responses, response{User: user, Channel: channel, Text: text, Icon: icon})
	return nil
}

func (c *fakeChat) UserInfo(_ context.Context, user string) (*entity.Entity, error) {
	js, ok := c.users[user]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return entity.Parse([]byte(js))
}

func (c *fakeChat) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.responses))
	for _, r := range c.responses {
		out = append(out, r.Text)
	}
	return out
}

// fakeBackend отдаёт заготовленные ответы по "METHOD path" и пишет тела запросов.
type fakeBackend struct {
	mu       sync.Mutex
	routes   map[string]string
	status   map[string]int
	requests []string
	bodies   []string
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.RequestURI()
	b, _ := io.ReadAll(r.Body)

	fb.mu.Lock()
	fb.requests = append(fb.requests, key)
	fb.bodies = append(fb.bodies, string(b))
	body, ok := fb.routes[key]
	code := fb.status[key]
	fb.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newTestBot(t *testing.T, fb *fakeBackend) (*WaldnerBot, *fakeChat) {
	t.Helper()
	if fb.routes == nil {
		fb.routes = map[string]string{}
	}
	if fb.status == nil {
		fb.status = map[string]int{}
	}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	b, err := New(Config{Name: "waldner", Backend: restapi.Config{BaseURL: srv.URL + "/api/"}}, nil)
	require.NoError(t, err)
	chat := &fakeChat{users: map[string]string{
		"U1": `{"id":"U1","name":"jo","real_name":"Jo W","profile":{"image_original":"https://img/jo.png"}}`,
		"U2": `{"id":"U2","name":"kim","real_name":"Kim K","profile":{"image_original":"https://img/kim.png"}}`,
	}}
	b.SetChat(chat)
	return b, chat
}

func say(b *WaldnerBot, text, user, channel string) int {
	n := b.HandleEvent(context.Background(), slackrtm.Event{Type: "message", Text: text, User: user, Channel: channel})
	b.Wait()
	return n
}

func TestReportGameSaved(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["POST /api/games"] = `{"data":{"id":42}}`

	n := say(b, "<@U1> <@U2> 11-5 9-11 11-7", "U1", "C1")
	assert.Equal(t, 1, n)

	require.Equal(t, []string{"POST /api/games"}, fb.requests)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(fb.bodies[0]), &got))
	want := map[string]any{
		"players": []any{
			map[string]any{"id": "U1", "name": "Jo W", "slack_id": "U1", "slack_name": "jo", "avatar_url": "https://img/jo.png"},
			map[string]any{"id": "U2", "name": "Kim K", "slack_id": "U2", "slack_name": "kim", "avatar_url": "https://img/kim.png"},
		},
		"sets": []any{
			[]any{11.0, 5.0}, []any{9.0, 11.0}, []any{11.0, 7.0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("game payload mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []response{{User: "U1", Channel: "C1", Text: msgGameSaved, Icon: iconHappy}}, chat.responses)
	assert.Equal(t, ":table_tennis_paddle_and_ball: Matchen sparades! :table_tennis_paddle_and_ball:", chat.texts()[0])
}

func TestReportGameBackendFailure(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.status["POST /api/games"] = http.StatusInternalServerError

	say(b, "<@U1> <@U2> 11-5 9-11 11-7", "U1", "")
	assert.Equal(t, []string{"Kunde inte spara matchen :crying_cat_face:"}, chat.texts())
	assert.Len(t, fb.requests, 1)
}

func TestReportGameUnknownUser(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)

	say(b, "<@U1> <@U404> 11-5", "U1", "C1")
	assert.Equal(t, []string{msgGameFailed}, chat.texts())
	assert.Empty(t, fb.requests)
}

func TestReportGameProfileWithoutID(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	chat.users["U3"] = `{"name":"ghost"}`

	say(b, "<@U1> <@U3> 11-5", "U1", "C1")
	assert.Equal(t, []string{msgGameFailed}, chat.texts())
	assert.Empty(t, fb.requests)
}

func TestReportGameBadSets(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)

	say(b, "<@U1> <@U2> 11-5 9-11 7", "U1", "C1")
	assert.Equal(t, []string{msgBadSets}, chat.texts())
	assert.Empty(t, fb.requests)
}

func TestReportGameMentionWithName(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["POST /api/games"] = `{}`

	say(b, "<@U1|jo> <@U2|kim> 11 5", "U1", "C1")
	assert.Equal(t, []string{msgGameSaved}, chat.texts())
	require.Len(t, fb.bodies, 1)
	assert.Contains(t, fb.bodies[0], `"sets":[[11,5]]`)
}

func TestLadderEmpty(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/top?include=stats"] = `{"data":[]}`

	say(b, "ladder", "U1", "C1")
	assert.Equal(t, []string{":trophy: Veckans topplista :trophy:\n``````"}, chat.texts())
	assert.Equal(t, iconMedal, chat.responses[0].Icon)
}

func TestLadderAllTime(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/top?include=stats"] = `[{"name":"Jo","ratings":{"weekly":1500,"all_time":1600},"stats":{"wins":2,"loses":1}}]`

	say(b, "Ladder all time", "U1", "C1")
	assert.Equal(t, []string{":trophy: Maratonlista :trophy:\n```1. Jo (1600): 2-1\n```"}, chat.texts())
}

func TestLadderNamedList(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/top?include=stats"] = `{"players":[{"name":"Jo","ratings":{"weekly":1500},"stats":{"wins":2,"loses":1}}],"total":1}`

	say(b, "ladder", "U1", "C1")
	assert.Equal(t, []string{":trophy: Veckans topplista :trophy:\n```1. Jo (1500): 2-1\n```"}, chat.texts())
}

func TestLadderFailure(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.status["GET /api/players/top?include=stats"] = http.StatusBadGateway

	say(b, "ladder", "U1", "C1")
	assert.Equal(t, []string{msgLadderFailed}, chat.texts())
}

func TestRankDefaultsToSender(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/U9?include=stats"] = `{"slack_name":"nine","ratings":{"weekly":1400},"rank":{"weekly":3}}`

	say(b, "rank", "U9", "")
	assert.Equal(t, []string{"GET /api/players/U9?include=stats"}, fb.requests)
	assert.Equal(t, []response{{User: "U9", Text: "@nine har ladder score 1400 och ligger på plats 3", Icon: iconMedal}}, chat.responses)
}

func TestRankMentionedAllTime(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/U2?include=stats"] = `{"data":{"slack_name":"kim","ratings":{"all_time":1700},"rank":{"all_time":1}}}`

	say(b, "rank <@U2> all time", "U1", "C1")
	assert.Equal(t, []string{"@kim har ladder score 1700 och ligger på plats 1 :party::sports_medal::trophy:"}, chat.texts())
}

func TestRankFailure(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)

	say(b, "rank", "U9", "C1")
	texts := chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Kunde inte hämta spelare :cry: ")
	assert.Contains(t, texts[0], "status 404")
}

func TestStats(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/U2?include=stats"] = `{"slack_name":"kim","stats":{"wins":1,"loses":2},"ratings":{"weekly":1,"all_time":2},"rank":{"weekly":3,"all_time":4}}`

	say(b, "stats <@U2>", "U1", "C1")
	assert.Equal(t, []string{"Statistik för @kim\nVinster: 1, förluster: 2\nVeckans ladder score: 1 (plats 3)\nMaraton: 2 (plats 4)"}, chat.texts())

	say(b, "stats", "U404", "C1")
	texts := chat.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Kunde inte hämta spelare ")
}

func TestGames(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/games"] = `[{"players":[{"slack_name":"jo"},{"slack_name":"kim"}],"sets":[[11,5]]}]`

	say(b, "games", "U1", "C1")
	assert.Equal(t, []string{"Senaste matcherna :table_tennis_paddle_and_ball:\njo - kim: 11-5\n"}, chat.texts())

	fb.mu.Lock()
	fb.status["GET /api/games"] = http.StatusInternalServerError
	fb.mu.Unlock()
	say(b, "games", "U1", "C1")
	assert.Equal(t, msgGamesFailed, chat.texts()[1])
}

func TestHelpAndQuote(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	b.pick = func(n int) int { return n - 1 }

	say(b, "help", "U1", "C1")
	say(b, "Waldner", "U1", "C1")
	say(b, "waldner är bäst", "U1", "C1")

	assert.Equal(t, []string{helpText, quotes[len(quotes)-1]}, chat.texts())
}

func TestQuotePicksFromAll(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	require.Len(t, quotes, 6)

	for i := range quotes {
		b.pick = func(int) int { return i }
		say(b, "waldner", "U1", "C1")
	}
	assert.Equal(t, quotes, chat.texts())
	assert.Contains(t, chat.texts()[2], "Tickan")
}

func TestNonMessageEventsIgnored(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)

	for _, typ := range []string{"user_typing", "presence_change", "reaction_added"} {
		n := b.HandleEvent(context.Background(), slackrtm.Event{Type: typ, Text: "ladder", User: "U1", Channel: "C1"})
		assert.Zero(t, n)
	}
	b.Wait()
	assert.Empty(t, chat.responses)
	assert.Empty(t, fb.requests)
}

func TestUnmatchedTextIsSilent(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)

	assert.Zero(t, say(b, "   ", "U1", "C1"))
	assert.Zero(t, say(b, "god morgon", "U1", "C1"))
	assert.Empty(t, chat.responses)
}

func TestHandlerFailureGetsApology(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	chat.failNext = true

	say(b, "help", "U1", "C1")
	assert.Equal(t, []string{msgOops}, chat.texts())
}

func TestSeveralPatternsAnswerIndependently(t *testing.T) {
	fb := &fakeBackend{}
	b, chat := newTestBot(t, fb)
	fb.routes["GET /api/players/top?include=stats"] = `[]`

	// обработчики идут параллельно, порядок ответов не фиксирован
	n := say(b, "help with ladder", "U1", "C1")
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{helpText, ":trophy: Veckans topplista :trophy:\n``````"}, chat.texts())
}

func TestStartRequiresSession(t *testing.T) {
	fb := &fakeBackend{}
	b, _ := newTestBot(t, fb)
	assert.Error(t, b.Start())
	b.Stop()
}

func TestNewRejectsBadBackend(t *testing.T) {
	_, err := New(Config{Backend: restapi.Config{BaseURL: "not a url"}}, nil)
	assert.Error(t, err)
}
