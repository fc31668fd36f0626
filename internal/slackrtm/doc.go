// Package slackrtm реализует сессию бота в Slack: RTM websocket для входящих
// событий и Web API для ответов.
//
// Сессия:
//   - rtm.connect -> websocket (gorilla/websocket), readLoop раздаёт события
//     через OnEvent;
//   - при обрыве или "goodbye" — переподключение с экспоненциальным backoff
//     (1s..30s); ошибки авторизации прекращают Run;
//   - heartbeat: при простое >20s шлёт RTM ping, нет трафика 8s — рвёт
//     соединение, readLoop переподключится;
//   - сообщения самого бота и bot_message отфильтровываются.
//
// Ответы (Web API): Respond пишет в канал, а без канала — в личку
// пользователю (conversations.open + chat.postMessage). UserInfo читает
// профиль через users.info.
//
// Пример:
//
//	s := slackrtm.New(slackrtm.Config{Token: token}, logger)
//	s.OnEvent = func(ev slackrtm.Event) { fmt.Println(ev.Type, ev.Text) }
//	go func() { _ = s.Run(ctx) }()
//	_ = s.Respond(ctx, "U123", "", "hej!", "happy")
package slackrtm
