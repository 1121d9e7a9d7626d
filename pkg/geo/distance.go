package geo

import "math"

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.0088

// kmPerDegree approximates one degree of latitude at the equator, used to
// convert a kilometer radius into degrees for the planar metric.
const kmPerDegree = 111.195

// DistanceMetric computes the distance in kilometers between two lon/lat
// points. The dispatcher selects geodesic or planar per query token.
type DistanceMetric func(lon1, lat1, lon2, lat2 float64) float64

// HaversineKm returns the great-circle distance in kilometers.
func HaversineKm(lon1, lat1, lon2, lat2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// PlanarKm returns the Euclidean distance in coordinate degrees scaled to
// kilometers. It ignores latitude convergence, matching the planar sort
// the intersectDistance query uses.
func PlanarKm(lon1, lat1, lon2, lat2 float64) float64 {
	dx := lon2 - lon1
	dy := lat2 - lat1
	return math.Sqrt(dx*dx+dy*dy) * kmPerDegree
}
