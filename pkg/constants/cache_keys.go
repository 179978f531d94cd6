package constants

//============== CACHE KEYS ==============

// Префиксы для ключей в Redis/кеше.
const (
	// Кэш ответов геопортала по кадастровому номеру.
	// Формат: nspd:object:<кадастровый номер> -> JSON объекта
	CacheKeyNspdObject = "nspd:object:%s"
)
