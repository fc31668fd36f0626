// Package bot — "склейка" вокруг slackrtm, dispatch и restapi, реализующая
// бота Waldner для ладдера по настольному теннису. Бот:
//   - слушает сообщения Slack (RTM) и прогоняет их через движок команд;
//   - сохраняет матчи (@игрок1 @игрок2 11-5 9-11 ...);
//   - отвечает на rank, ladder, games, stats, help и waldner;
//   - на любую ошибку обработчика отвечает извинением, а не молчит.
//
// Жизненный цикл:
//   - LoadConfig("conf/waldner.yaml") — YAML + переменные окружения.
//   - New(cfg, logger), затем SetSlack(cfg.Slack) (или SetChat для своей платформы).
//   - Start() и Stop(); Fatal() — ошибка, после которой сессия не поднимется.
//
// Пример:
//
//	cfg, err := bot.LoadConfig("conf/waldner.yaml")
//	if err != nil { log.Fatal(err) }
//	b, err := bot.New(*cfg, logger)
//	if err != nil { log.Fatal(err) }
//	b.SetSlack(cfg.Slack)
//	if err := b.Start(); err != nil { log.Fatal(err) }
//	defer b.Stop()
//
// Всё состояние хранится в бэкенде статистики; у бота нет своего хранилища.
package bot
