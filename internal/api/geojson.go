package api

import (
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON skips reports without a location.
func toGeoJSON(reports []models.AccidentReport) FeatureCollection {
	features := make([]Feature, 0, len(reports))

	for _, r := range reports {
		loc, ok := r.Coordinates()
		if !ok {
			continue
		}
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{loc.Longitude, loc.Latitude},
			},
			Properties: map[string]any{
				"id":          r.ID,
				"severity":    r.Severity,
				"source":      r.Source,
				"description": r.Description,
				"created_at":  r.CreatedAt,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
