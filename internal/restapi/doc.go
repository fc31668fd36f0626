// Package restapi — доступ к сущностям REST-бэкенда статистики (игроки,
// матчи, топ). Клиент знает базовый URL и токен, Model читает/пишет один
// объект, Store читает список.
//
// Правила:
//   - адрес ресурса: <base>/<resource>[/<id>];
//   - ответы — голый JSON или обёртка {"data": ...};
//   - успех определяется только классом статуса (2xx), тело ошибки не разбирается;
//   - повторов нет: одна неудачная попытка возвращается вызывающему как есть.
//
// Пример:
//
//	api, _ := restapi.NewClient(restapi.Config{BaseURL: "https://pong.example/api/"}, logger)
//	top := api.Store("players")
//	if _, err := top.Fetch(ctx, "players/top", url.Values{"include": {"stats"}}); err != nil {
//	    return err
//	}
//	p, ok := top.GetByID("U123")
package restapi
