package geo_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"lumina/fraud-lab/internal/geo"
)

// ─── Distance ─────────────────────────────────────────────────────────────────

func TestDistance_SamePoint_IsZero(t *testing.T) {
	for _, c := range geo.Cities {
		if d := geo.Distance(c.Lat, c.Lon, c.Lat, c.Lon); d != 0 {
			t.Errorf("%s: expected 0, got %f", c.Name, d)
		}
	}
}

func TestDistance_IsSymmetric(t *testing.T) {
	for _, a := range geo.Cities {
		for _, b := range geo.Cities {
			ab := geo.Distance(a.Lat, a.Lon, b.Lat, b.Lon)
			ba := geo.Distance(b.Lat, b.Lon, a.Lat, a.Lon)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("%s/%s: %f != %f", a.Name, b.Name, ab, ba)
			}
		}
	}
}

func TestDistance_TriangleInequality(t *testing.T) {
	for _, a := range geo.Cities {
		for _, b := range geo.Cities {
			for _, c := range geo.Cities {
				ab := geo.Distance(a.Lat, a.Lon, b.Lat, b.Lon)
				bc := geo.Distance(b.Lat, b.Lon, c.Lat, c.Lon)
				ac := geo.Distance(a.Lat, a.Lon, c.Lat, c.Lon)
				if ac > ab+bc+1e-9 {
					t.Errorf("%s→%s→%s violates triangle inequality", a.Name, b.Name, c.Name)
				}
			}
		}
	}
}

func TestDistance_BengaluruMumbai(t *testing.T) {
	blr, _ := geo.LookupCity("Bengaluru")
	bom, _ := geo.LookupCity("Mumbai")

	d := geo.Distance(blr.Lat, blr.Lon, bom.Lat, bom.Lon)
	if math.Abs(d-840)/840 > 0.02 {
		t.Errorf("expected ~840 km, got %.1f", d)
	}
}

// ─── SampleRing ───────────────────────────────────────────────────────────────

func TestSampleRing_StaysNearRadiusBand(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	blr, _ := geo.LookupCity("Bengaluru")

	for i := 0; i < 1000; i++ {
		lat, lon := geo.SampleRing(rng, blr.Lat, blr.Lon, 2, 15)
		d := geo.Distance(blr.Lat, blr.Lon, lat, lon)
		// The degree approximation is within a few percent at this latitude.
		if d < 2*0.95 || d > 15*1.05 {
			t.Fatalf("sample %d: distance %.3f outside [2, 15]", i, d)
		}
	}
}

func TestSampleRing_SameSeedSamePoints(t *testing.T) {
	a := rand.New(rand.NewPCG(1, 1))
	b := rand.New(rand.NewPCG(1, 1))

	for i := 0; i < 50; i++ {
		lat1, lon1 := geo.SampleRing(a, 19.0, 72.8, 0.5, 3)
		lat2, lon2 := geo.SampleRing(b, 19.0, 72.8, 0.5, 3)
		if lat1 != lat2 || lon1 != lon2 {
			t.Fatalf("draw %d differs", i)
		}
	}
}

func TestLookupCity_Unknown(t *testing.T) {
	if _, ok := geo.LookupCity("Atlantis"); ok {
		t.Error("expected unknown city lookup to fail")
	}
}
