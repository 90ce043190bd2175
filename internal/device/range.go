package device

import "math"

// PathLossExponent is n in the log-distance path loss model. 2.0 is free
// space; indoor environments are usually worse, so estimates read short.
const PathLossExponent = 2.0

// Bucket boundaries in metres.
const (
	ImmediateMaxMeters = 0.5
	NearMaxMeters      = 4.0
)

// EstimateRange converts an advertised TX power (the RSSI expected at one
// metre) and a measured RSSI into a distance:
//
//	d = 10 ^ ((txPower - rssi) / (10 * n))
//
// Meters is rounded to centimetres.
func EstimateRange(txPower, rssi int) RangeEstimate {
	exp := float64(txPower-rssi) / (10 * PathLossExponent)
	meters := math.Round(math.Pow(10, exp)*100) / 100
	return RangeEstimate{Meters: meters, Bucket: bucketFor(meters)}
}

func bucketFor(meters float64) string {
	switch {
	case meters < ImmediateMaxMeters:
		return BucketImmediate
	case meters < NearMaxMeters:
		return BucketNear
	default:
		return BucketFar
	}
}
