package geoskernel

import "github.com/twpayne/go-geos"

// cascadedUnion dissolves geometries by unioning halves recursively. The
// inputs are left untouched; the caller owns the result.
func cascadedUnion(geometries []*geos.Geom) *geos.Geom {
	switch len(geometries) {
	case 0:
		return nil
	case 1:
		return geometries[0].Clone()
	}

	mid := len(geometries) / 2
	left := cascadedUnion(geometries[:mid])
	right := cascadedUnion(geometries[mid:])

	result := left.Union(right)

	// Free the intermediate halves
	left.Destroy()
	right.Destroy()

	return result
}
