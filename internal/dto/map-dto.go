package dto

// MapLocationDTO - координаты одного кадастрового объекта на карте.
// Coords в порядке [долгота, широта].
type MapLocationDTO struct {
	CadastralNumber string     `json:"cadastral_number"`
	Coords          [2]float64 `json:"coords"`
}

// MapDealDTO - данные одной сделки для отображения на карте.
type MapDealDTO struct {
	DealID    string           `json:"deal_id"`
	DealURL   string           `json:"deal_url"`
	DealName  string           `json:"deal_name"`
	VisitTime string           `json:"visit_time"`
	Executors []string         `json:"executors"`
	Locations []MapLocationDTO `json:"locations"`
}

// MapLinkDTO - результат создания запроса на карту.
type MapLinkDTO struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}
