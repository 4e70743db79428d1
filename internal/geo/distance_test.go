package geo

import (
	"math"
	"testing"
)

func TestDistanceKm_Zero(t *testing.T) {
	points := [][2]float64{
		{45.4642, 9.1900},
		{0, 0},
		{-33.8688, 151.2093},
	}
	for _, p := range points {
		if d := DistanceKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("distance from (%v,%v) to itself = %v, want 0", p[0], p[1], d)
		}
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	cases := [][4]float64{
		{45.4642, 9.1900, 41.9028, 12.4964},
		{51.5074, -0.1278, 40.7128, -74.0060},
		{-33.8688, 151.2093, 35.6762, 139.6503},
	}
	for _, c := range cases {
		ab := DistanceKm(c[0], c[1], c[2], c[3])
		ba := DistanceKm(c[2], c[3], c[0], c[1])
		if ab != ba {
			t.Errorf("distance not symmetric: %v vs %v", ab, ba)
		}
	}
}

// Milan to Rome is roughly 477 km great-circle.
func TestDistanceKm_MilanRome(t *testing.T) {
	d := DistanceKm(45.4642, 9.1900, 41.9028, 12.4964)
	if math.Abs(d-477) > 5 {
		t.Errorf("Milan-Rome distance = %v, want 477 +/- 5", d)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{0.125, 0.13}, // half rounds up
		{1.999, 2.00},
		{0, 0},
	}
	for _, c := range cases {
		if got := Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestPointValid(t *testing.T) {
	var nilPoint *Point
	if nilPoint.Valid() {
		t.Error("nil point reported valid")
	}
	if !(&Point{Longitude: 9.19, Latitude: 45.46}).Valid() {
		t.Error("Milan coordinates reported invalid")
	}
	if (&Point{Longitude: 181, Latitude: 0}).Valid() {
		t.Error("longitude 181 reported valid")
	}
	if (&Point{Longitude: 0, Latitude: -91}).Valid() {
		t.Error("latitude -91 reported valid")
	}
}
