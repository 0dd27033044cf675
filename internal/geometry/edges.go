package geometry

import "github.com/golang/geo/r3"

// edgeKey is an unordered vertex index pair
type edgeKey struct {
	lo, hi int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// BoundaryEdges returns the edges used by exactly one triangle
func BoundaryEdges(triangles []int) [][2]int {
	counts := make(map[edgeKey]int, len(triangles))
	order := make([]edgeKey, 0, len(triangles))
	for t := 0; t+2 < len(triangles); t += 3 {
		for _, e := range [3]edgeKey{
			newEdgeKey(triangles[t], triangles[t+1]),
			newEdgeKey(triangles[t+1], triangles[t+2]),
			newEdgeKey(triangles[t+2], triangles[t]),
		} {
			if counts[e] == 0 {
				order = append(order, e)
			}
			counts[e]++
		}
	}

	var boundary [][2]int
	for _, e := range order {
		if counts[e] == 1 {
			boundary = append(boundary, [2]int{e.lo, e.hi})
		}
	}
	return boundary
}

// BoundaryEdgeLength sums the lengths of all boundary edges
func BoundaryEdgeLength(vertices []r3.Vector, triangles []int) float64 {
	total := 0.0
	for _, e := range BoundaryEdges(triangles) {
		total += vertices[e[0]].Distance(vertices[e[1]])
	}
	return total
}
