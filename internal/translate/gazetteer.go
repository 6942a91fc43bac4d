package translate

import (
	"strings"

	"floatchat/internal/types"
)

// namedBox pairs a place phrase with its bounding box. Longer phrases are
// listed first so "bay of bengal" wins over a bare "bengal".
type namedBox struct {
	phrase string
	name   string
	box    types.BoundingBox
}

// boxedRegions are places resolved to coordinate windows. Boxes are coarse
// on purpose: they bound the search, they do not draw coastlines.
var boxedRegions = []namedBox{
	{"bay of bengal", "bay_of_bengal", types.BoundingBox{LatMin: 5, LatMax: 23, LonMin: 80, LonMax: 100}},
	{"arabian sea", "arabian_sea", types.BoundingBox{LatMin: 0, LatMax: 25, LonMin: 50, LonMax: 78}},
	{"southern ocean", "southern_ocean", types.BoundingBox{LatMin: -90, LatMax: -60, LonMin: -180, LonMax: 180}},
	{"northern hemisphere", "northern_hemisphere", types.BoundingBox{LatMin: 0, LatMax: 90, LonMin: -180, LonMax: 180}},
	{"southern hemisphere", "southern_hemisphere", types.BoundingBox{LatMin: -90, LatMax: 0, LonMin: -180, LonMax: 180}},
	{"equator", "equatorial_band", types.BoundingBox{LatMin: -5, LatMax: 5, LonMin: -180, LonMax: 180}},
	{"equatorial", "equatorial_band", types.BoundingBox{LatMin: -5, LatMax: 5, LonMin: -180, LonMax: 180}},
}

// basinNames are ocean basins matched against the ocean_region tag assigned
// at ingest time. Basins are not boxed: the Pacific wraps the antimeridian
// and a single window cannot hold it.
var basinNames = []string{"indian", "pacific", "atlantic"}

// matchRegion resolves place wording in the normalized query. Boxed places
// take priority over basin tags.
func matchRegion(query string) (box *types.BoundingBox, name string) {
	for _, r := range boxedRegions {
		if strings.Contains(query, r.phrase) {
			b := r.box
			return &b, r.name
		}
	}
	for _, basin := range basinNames {
		if strings.Contains(query, basin+" ocean") || strings.Contains(query, basin) {
			return nil, basin
		}
	}
	return nil, ""
}
