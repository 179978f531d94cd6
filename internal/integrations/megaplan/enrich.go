package megaplan

// enrichExecutors восстанавливает полные данные исполнителей во всех сделках
// ответа. Эндпоинт списка возвращает полную запись сотрудника только при
// первом вхождении, а при повторных - stub только с id.
//
// Два прохода по дереву ответа: первый собирает полные записи в кэш по id,
// второй заменяет каждый stub на запись из кэша. Stub без записи в кэше
// остается как есть.
func enrichExecutors(deals []Deal) {
	cache := make(map[string]Employee)

	for _, deal := range deals {
		for _, executor := range deal.Executors {
			if executor.ID != "" && !executor.IsStub() {
				cache[executor.ID] = executor
			}
		}
	}

	if len(cache) == 0 {
		return
	}

	for di := range deals {
		executors := deals[di].Executors
		for ei := range executors {
			if executors[ei].IsStub() {
				if full, ok := cache[executors[ei].ID]; ok {
					executors[ei] = full
				}
			}
		}
	}
}
