// Package ladder — предметная часть бота для настольного тенниса: разбор
// счёта по сетам, тело запроса "записать матч" и тексты ответов (rank,
// stats, ladder, games). Все функции чистые: только читают уже загруженные
// атрибуты и не ходят в сеть.
package ladder
