package models

import "math"

const earthRadiusKM = 6371.0

// DistanceKM is the haversine great-circle distance between two points.
func DistanceKM(a, b Coordinates) float64 {
	dLat := deg2rad(b.Latitude - a.Latitude)
	dLon := deg2rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Latitude))*math.Cos(deg2rad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Reaches reports whether a broadcast notification covers the given position.
// Notifications without a location or radius reach nobody.
func (n *ChannelNotification) Reaches(pos Coordinates) bool {
	if n.Location == nil || n.RadiusKM <= 0 {
		return false
	}
	return DistanceKM(*n.Location, pos) <= n.RadiusKM
}

// AlertFilter is a subscriber's view of the broadcast stream. The zero value
// matches everything.
type AlertFilter struct {
	Position    *Coordinates
	MinSeverity Severity
}

func (f AlertFilter) Match(n *ChannelNotification) bool {
	if f.MinSeverity != "" && n.Severity.Rank() < f.MinSeverity.Rank() {
		return false
	}
	if f.Position != nil && !n.Reaches(*f.Position) {
		return false
	}
	return true
}
