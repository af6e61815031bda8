package model

// ViewStats — агрегированная статистика просмотров для дашбордов.
// Все поля заполняются нулями при недоступности хранилища.
type ViewStats struct {
	// TotalViews — сумма персистентных счётчиков просмотров всех карточек
	TotalViews int64 `json:"total_views"`
	// UniqueViews24h — количество записей леджера, созданных за последние 24 часа
	UniqueViews24h int64 `json:"unique_views_24h"`
	// TotalLogs — общее количество записей леджера
	TotalLogs int64 `json:"total_logs"`
	// ExpiredLogs — количество просроченных, но ещё не удалённых записей
	ExpiredLogs int64 `json:"expired_logs"`
}
