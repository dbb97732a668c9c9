package radar

// Station is a fixed radar site used by the station-derived estimate and the
// per-station synthetic mode.
type Station struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// DefaultStations returns the built-in WSR-88D site list. Callers get their
// own copy.
func DefaultStations() []Station {
	return []Station{
		{ID: "KTLX", Name: "Oklahoma City", Lat: 35.333, Lon: -97.278},
		{ID: "KFWS", Name: "Dallas/Fort Worth", Lat: 32.573, Lon: -97.303},
		{ID: "KLOT", Name: "Chicago", Lat: 41.604, Lon: -88.085},
		{ID: "KOKX", Name: "New York City", Lat: 40.866, Lon: -72.864},
		{ID: "KAMX", Name: "Miami", Lat: 25.611, Lon: -80.413},
		{ID: "KFFC", Name: "Atlanta", Lat: 33.364, Lon: -84.566},
		{ID: "KFTG", Name: "Denver", Lat: 39.786, Lon: -104.546},
		{ID: "KATX", Name: "Seattle", Lat: 48.195, Lon: -122.496},
		{ID: "KMUX", Name: "San Francisco", Lat: 37.155, Lon: -121.898},
		{ID: "KMPX", Name: "Minneapolis", Lat: 44.849, Lon: -93.566},
	}
}
