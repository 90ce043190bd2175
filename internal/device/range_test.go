package device

import "testing"

func TestEstimateRange(t *testing.T) {
	tests := []struct {
		txPower, rssi int
		wantMeters    float64
		wantBucket    string
	}{
		{-59, -59, 1, BucketNear},
		{-59, -79, 10, BucketFar},
		{-59, -99, 100, BucketFar},
		{-59, -47, 0.25, BucketImmediate},
		{-59, -53, 0.5, BucketNear},
		{-59, -71, 3.98, BucketNear},
		{-59, -72, 4.47, BucketFar},
	}

	for _, tt := range tests {
		got := EstimateRange(tt.txPower, tt.rssi)
		if got.Meters != tt.wantMeters || got.Bucket != tt.wantBucket {
			t.Errorf("EstimateRange(%d, %d) = %+v, want {%v %s}", tt.txPower, tt.rssi, got, tt.wantMeters, tt.wantBucket)
		}
	}
}
