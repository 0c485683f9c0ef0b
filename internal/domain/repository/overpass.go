package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"mkrew_service/internal/domain/model"
)

// BloodBankLocator ищет пункты крови в OpenStreetMap.
type BloodBankLocator interface {
	FindBloodBanks(ctx context.Context, city string) ([]model.OSMElement, error)
}

type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

// FindBloodBanks возвращает объекты healthcare=blood_donation внутри границ города.
func (r *OverpassRepository) FindBloodBanks(ctx context.Context, city string) ([]model.OSMElement, error) {
	query := fmt.Sprintf(`
		[out:json][timeout:%d];
		area["name"="%s"]["boundary"="administrative"]->.city;
		(
			node["healthcare"="blood_donation"](area.city);
			way["healthcare"="blood_donation"](area.city);
		);
		out body;
		>;
		out skel qt;
	`, int(r.timeout.Seconds()), escapeOverpass(city))

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute blood bank query: %w", err)
	}

	return convertToOSMElements(result), nil
}

// executeQuery: клиент overpass не принимает контекст, поэтому ожидание ограничено снаружи.
func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type response struct {
		result overpass.Result
		err    error
	}
	done := make(chan response, 1)
	go func() {
		res, err := r.client.Query(query)
		done <- response{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query cancelled: %w", ctx.Err())
	case resp := <-done:
		if resp.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", resp.err)
		}
		return &resp.result, nil
	}
}

func convertToOSMElements(result *overpass.Result) []model.OSMElement {
	var elements []model.OSMElement

	for _, node := range result.Nodes {
		// узлы контуров приходят без тегов
		if node.Tags["healthcare"] != "blood_donation" {
			continue
		}
		elements = append(elements, model.OSMElement{
			ID:   node.ID,
			Type: string(overpass.ElementTypeNode),
			Lat:  node.Lat,
			Lon:  node.Lon,
			Tags: node.Tags,
		})
	}

	// Для контуров берём центр по узлам
	for _, way := range result.Ways {
		var lat, lon float64
		count := 0
		for _, node := range way.Nodes {
			if node == nil {
				continue
			}
			lat += node.Lat
			lon += node.Lon
			count++
		}
		if count > 0 {
			lat /= float64(count)
			lon /= float64(count)
		}

		var bounds model.Bounds
		if way.Bounds != nil {
			bounds = model.Bounds{
				MinLat: way.Bounds.Min.Lat,
				MinLon: way.Bounds.Min.Lon,
				MaxLat: way.Bounds.Max.Lat,
				MaxLon: way.Bounds.Max.Lon,
			}
			if count == 0 {
				lat = (bounds.MinLat + bounds.MaxLat) / 2
				lon = (bounds.MinLon + bounds.MaxLon) / 2
			}
		}

		elements = append(elements, model.OSMElement{
			ID:     way.ID,
			Type:   string(overpass.ElementTypeWay),
			Lat:    lat,
			Lon:    lon,
			Tags:   way.Tags,
			Bounds: bounds,
		})
	}

	sort.Slice(elements, func(i, j int) bool {
		if elements[i].Type != elements[j].Type {
			return elements[i].Type < elements[j].Type
		}
		return elements[i].ID < elements[j].ID
	})
	return elements
}

func escapeOverpass(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
