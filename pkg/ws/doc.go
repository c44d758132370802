// Package ws предоставляет неблокирующий WebSocket клиент для пошагового
// выполнения тестов:
//   - Одна исходящая сессия на клиента (переподключение заменяет её)
//   - Все операции возвращаются сразу, исход узнаётся опросом
//   - Входящие текстовые и бинарные сообщения копятся в FIFO очереди
//   - Ошибки не выбрасываются, а сохраняются в LastError
//   - Транспорт подключается через интерфейс Transport (см. пакеты gorilla и coder)
//
// # Подключение
//
//	conn, err := ws.NewConnectionConfig(ws.ConnectionParams{
//	    ServerURI:    "wss://example.test/socket",
//	    Subprotocols: "v2.chat,v1.chat",
//	})
//	client, err := ws.NewClient(ws.DefaultClientConfig(conn, gorilla.New(gorilla.Options{})))
//	client.Connect()
//
//	for !client.IsConnected() && !client.IsFaulty() {
//	    time.Sleep(10 * time.Millisecond) // шаг теста сам решает, сколько ждать
//	}
//
// # Обмен сообщениями
//
//	client.SendMessage(ws.TextMessage("ping"))
//	if client.IsAvailable() { ... }           // отправка завершилась успешно
//	if msg, ok := client.NextMessage(); ok { ... }
//
// # Завершение
//
//	client.Disconnect(false) // NORMAL_CLOSURE, сессию очистит OnClose
//	client.Disconnect(true)  // PROTOCOL_ERROR, сессия забывается сразу
//	client.Dispose()         // можно вызывать повторно
//
// # Классификация закрытия
//
// Код закрытия больше 1000 даёт CloseError с ErrAbnormalClose. Закрытие при
// незавершённой операции даёт ErrUnexpectedClose. Остальные закрытия считаются
// штатными, даже если вызывающий не просил отключения.
//
// # Прокси
//
// На время попытки подключения клиент через proxy.Guard ставит процессный
// селектор "без прокси", если никакой не задан, и возвращает прежний, как
// только исход известен (OnOpen, OnError, OnClose или Dispose).
package ws
