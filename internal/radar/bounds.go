package radar

import "math"

// Bounds is an inclusive latitude/longitude rectangle.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// CONUS is the continental coverage box every emitted point must fall in.
var CONUS = Bounds{MinLat: 24.0, MaxLat: 49.0, MinLon: -125.0, MaxLon: -66.0}

// Contains reports whether lat/lon lie inside b, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Valid reports whether b is a well-ordered rectangle of finite values.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon} {
		if !isFinite(v) {
			return false
		}
	}
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Extent returns the smallest Bounds covering points. An empty slice yields
// the zero Bounds.
func Extent(points []RadarPoint) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	for _, p := range points {
		b.MinLat = math.Min(b.MinLat, p.lat)
		b.MaxLat = math.Max(b.MaxLat, p.lat)
		b.MinLon = math.Min(b.MinLon, p.lon)
		b.MaxLon = math.Max(b.MaxLon, p.lon)
	}
	return b
}

// FilterCONUS drops points that are outside CONUS or not finite. Order is
// preserved.
func FilterCONUS(points []RadarPoint) []RadarPoint {
	out := make([]RadarPoint, 0, len(points))
	for _, p := range points {
		if p.Finite() && CONUS.Contains(p.lat, p.lon) {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeLongitude maps 0..360 longitudes onto -180..180.
func NormalizeLongitude(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
