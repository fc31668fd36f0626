// Package dispatch — движок команд чата: сопоставляет текст входящего
// сообщения со всеми зарегистрированными регулярными выражениями и
// запускает обработчики всех совпавших (не только первого).
//
// Контракт:
//   - события с Type != "message" отбрасываются до сопоставления;
//   - группы захвата передаются в порядке объявления, неучаствовавшие —
//     как Capture{Set: false};
//   - обработчики работают независимо, каждый в своей горутине; движок их
//     не ждёт и не сериализует (Wait — только для остановки и тестов);
//   - ошибка или паника обработчика перехватывается и передаётся в
//     OnFailure, который должен ответить пользователю.
//
// Пример:
//
//	e := dispatch.New(logger)
//	e.OnFailure(func(ctx context.Context, m dispatch.Message, _ string, err error) {
//	    _ = chat.Respond(ctx, m.User, m.Channel, "Något gick fel :cry:", "")
//	})
//	_ = e.HearString(`ladder( all time)?`, ladderHandler)
//	e.Dispatch(ctx, dispatch.Message{Type: "message", Text: "ladder", User: "U1"})
package dispatch
