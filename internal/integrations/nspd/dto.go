package nspd

import (
	"encoding/json"
	"strconv"
	"strings"

	"ticket-bot/pkg/geo"
)

// CadastralObject - структурированная информация о кадастровом объекте
// (участке, здании, сооружении), полученная от геопортала.
type CadastralObject struct {
	CadastralNumber string `json:"cadastral_number"`
	// Категория объекта (Здание, Участок и т.д.)
	CategoryName string `json:"category_name,omitempty"`
	Address      string `json:"address,omitempty"`

	// Характеристики взаимоисключающие: площадь для площадных объектов,
	// протяженность для линейных.
	AreaSqM    *float64 `json:"area_sq_m,omitempty"`
	ExtensionM *float64 `json:"extension_m,omitempty"`

	// Геометрия в WGS 84. Point заполнен для точечных объектов,
	// Rings и Centroid - для полигонов. Centroid присутствует только если
	// репроекция полигона прошла успешно и контур не вырожден.
	GeometryType string     `json:"geometry_type,omitempty"`
	Point        *geo.Point `json:"point,omitempty"`
	Rings        geo.Rings  `json:"rings,omitempty"`
	Centroid     *geo.Point `json:"centroid,omitempty"`

	// Кадастровые номера связанных дочерних объектов (например, зданий на
	// участке). Плоский список идентификаторов, не граф живых объектов.
	RelatedCadastralNumbers []string `json:"related_cadastral_numbers,omitempty"`

	// Исходная геометрия от сервера для трассировки.
	OriginalGeometry json.RawMessage `json:"original_geometry,omitempty"`
}

// floatValue - число, которое геопортал может вернуть и числом, и строкой.
type floatValue float64

func (f *floatValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return err
	}
	*f = floatValue(parsed)
	return nil
}

// searchResponse - конверт поискового ответа геопортала (GeoJSON-подобный).
type searchResponse struct {
	Data struct {
		Features []feature `json:"features"`
	} `json:"data"`
}

type feature struct {
	ID         int64             `json:"id"`
	Properties featureProperties `json:"properties"`
	Geometry   *featureGeometry  `json:"geometry"`
}

type featureProperties struct {
	Category     int64          `json:"category"`
	CategoryName string         `json:"categoryName"`
	Options      featureOptions `json:"options"`
}

// featureOptions - характеристики объекта. Схема меняется в зависимости от
// категории, поэтому для каждого значения перечислены все известные имена
// полей; берется первое непустое.
type featureOptions struct {
	CadNum    string `json:"cad_num"`
	CadNumber string `json:"cad_number"`

	ReadableAddress        string `json:"readable_address"`
	AddressReadableAddress string `json:"address_readable_address"`

	SpecifiedArea   *floatValue `json:"specified_area"`
	BuildRecordArea *floatValue `json:"build_record_area"`
	ParamsArea      *floatValue `json:"params_area"`
	LandRecordArea  *floatValue `json:"land_record_area"`
	Area            *floatValue `json:"area"`

	ParamsExtension *floatValue `json:"params_extension"`
}

func (o featureOptions) cadastralNumber() string {
	if o.CadNum != "" {
		return o.CadNum
	}
	return o.CadNumber
}

func (o featureOptions) address() string {
	if o.ReadableAddress != "" {
		return o.ReadableAddress
	}
	return o.AddressReadableAddress
}

func (o featureOptions) area() *float64 {
	for _, candidate := range []*floatValue{
		o.SpecifiedArea, o.BuildRecordArea, o.ParamsArea, o.LandRecordArea, o.Area,
	} {
		if candidate != nil {
			value := float64(*candidate)
			return &value
		}
	}
	return nil
}

func (o featureOptions) extension() *float64 {
	if o.ParamsExtension == nil {
		return nil
	}
	value := float64(*o.ParamsExtension)
	return &value
}

type featureGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// tabGroupResponse - ответ эндпоинта связанных объектов.
type tabGroupResponse struct {
	Object []struct {
		Value []string `json:"value"`
	} `json:"object"`
}
