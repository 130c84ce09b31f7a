// query/geo_test.go
package query

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	paris := Point{Lat: 48.8566, Lon: 2.3522}
	london := Point{Lat: 51.5074, Lon: -0.1278}
	amsterdam := Point{Lat: 52.3676, Lon: 4.9041}
	utrecht := Point{Lat: 52.0907, Lon: 5.1214}

	tests := []struct {
		name    string
		a, b    Point
		wantKm  float64
		slackKm float64
	}{
		{"paris-london", paris, london, 344, 5},
		{"amsterdam-utrecht", amsterdam, utrecht, 34, 2},
		{"same point", paris, paris, 0, 0.001},
		{"equator quarter", Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 90}, 10008, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b) / 1000
			if math.Abs(got-tt.wantKm) > tt.slackKm {
				t.Errorf("Distance = %.1f km, want %.1f ± %.1f", got, tt.wantKm, tt.slackKm)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := Point{Lat: 48.8566, Lon: 2.3522}
	b := Point{Lat: 52.3676, Lon: 4.9041}
	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-6 {
		t.Errorf("Distance not symmetric: %v vs %v", d1, d2)
	}
}
