package model

type OSMElement struct {
	ID     int64             `json:"id"`
	Type   string            `json:"type"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Tags   map[string]string `json:"tags"`
	Bounds Bounds            `json:"bounds"`
}

type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Name returns the OSM name tag, or empty.
func (e OSMElement) Name() string {
	return e.Tags["name"]
}
