package ingest

// oceanRegion tags a position with its basin. The split is deliberately
// coarse: 20°E separates the Atlantic from the Indian basin, 146°E the
// Indian from the Pacific, and everything south of 60°S is the Southern
// Ocean. Queries match this tag by name.
func oceanRegion(lat, lon float64) string {
	switch {
	case lat <= -60:
		return "southern"
	case lon >= 20 && lon < 146:
		return "indian"
	case lon >= -70 && lon < 20:
		return "atlantic"
	default:
		return "pacific"
	}
}
