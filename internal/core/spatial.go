package core

import (
	"math"
	"sort"
	"strings"

	"mkrew_service/internal/domain/model"
)

// Признаки основного центра крови в названии объекта OSM.
var bloodBankNameHints = []string{"rckik", "rckk", "krwiodawstwa", "centrum krwi"}

// pickBloodBank выбирает основной объект среди найденных: сначала по названию,
// затем по площади контура.
func pickBloodBank(elements []model.OSMElement) (model.OSMElement, bool) {
	if len(elements) == 0 {
		return model.OSMElement{}, false
	}
	best := elements[0]
	bestScore := bloodBankScore(best)
	for _, el := range elements[1:] {
		if score := bloodBankScore(el); score > bestScore {
			best, bestScore = el, score
		}
	}
	return best, true
}

func bloodBankScore(el model.OSMElement) float64 {
	score := calculateArea(el.Bounds)
	name := strings.ToLower(el.Name())
	for _, hint := range bloodBankNameHints {
		if strings.Contains(name, hint) {
			// название важнее площади
			score += 1e6
			break
		}
	}
	return score
}

func calculateArea(bounds model.Bounds) float64 {
	// Площадь с учетом кривизны Земли
	latMid := (bounds.MinLat + bounds.MaxLat) / 2 * math.Pi / 180
	dLat := bounds.MaxLat - bounds.MinLat
	dLon := bounds.MaxLon - bounds.MinLon

	// Коэффициенты перевода градусов в метры
	kx := 111132.92 - 559.82*math.Cos(2*latMid)
	ky := 111412.84 * math.Cos(latMid)

	return math.Abs(dLat*kx*dLon*ky) / 1000000 // Площадь в км²
}

// SourceDistance: источник и расстояние до него в км.
type SourceDistance struct {
	Source     model.Source `json:"source"`
	DistanceKm float64      `json:"distanceKm"`
}

// rankByDistance сортирует источники с известными координатами по удалённости от точки.
func rankByDistance(sources []model.Source, lat, lon float64) []SourceDistance {
	out := make([]SourceDistance, 0, len(sources))
	for _, src := range sources {
		if src.Lat == nil || src.Lon == nil {
			continue
		}
		out = append(out, SourceDistance{
			Source:     src,
			DistanceKm: haversine(lat, lon, *src.Lat, *src.Lon),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Радиус Земли в км
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
