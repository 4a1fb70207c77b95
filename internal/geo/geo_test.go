package geo

import (
	"context"
	"math"
	"strings"
	"testing"
)

func testGazetteer() *Gazetteer {
	return NewGazetteer([]Place{
		{Name: "Nairobi", Latitude: -1.2833, Longitude: 36.8167, County: "Nairobi", Population: 4397073},
		{Name: "Westlands", Latitude: -1.2676, Longitude: 36.8070, County: "Nairobi", Population: 247102},
		{Name: "Kibra", AltNames: []string{"Kibera"}, Latitude: -1.3171, Longitude: 36.7924, County: "Nairobi", Population: 185777},
		{Name: "Nakuru", Latitude: -0.3031, Longitude: 36.0800, County: "Nakuru", Population: 570674},
		{Name: "Naivasha", Latitude: -0.7172, Longitude: 36.4310, County: "Nakuru", Population: 198444},
	})
}

// --- gazetteer lookups ---

func TestGazetteer_ExactMatchIsCaseInsensitive(t *testing.T) {
	g := testGazetteer()
	for _, q := range []string{"Westlands", "westlands", "WESTLANDS", "  westlands  "} {
		hits := g.Exact(q)
		if len(hits) != 1 || hits[0].Name != "Westlands" {
			t.Fatalf("Exact(%q) = %v", q, hits)
		}
	}
	if hits := g.Exact("kibera"); len(hits) != 1 || hits[0].Name != "Kibra" {
		t.Fatalf("alternate name lookup failed: %v", hits)
	}
}

func TestGazetteer_SubstringRanksByPopulation(t *testing.T) {
	g := testGazetteer()
	// "na" is too short; below the 3-rune floor.
	if hits := g.Substring("na"); hits != nil {
		t.Fatalf("short query should return nil, got %v", hits)
	}
	// Query containing a place name.
	hits := g.Substring("near nakuru town")
	if len(hits) == 0 || hits[0].Name != "Nakuru" {
		t.Fatalf("Substring = %v", hits)
	}
	// Place name containing the query, most populous first.
	hits = g.Substring("Nai")
	if len(hits) < 2 || hits[0].Name != "Nairobi" {
		t.Fatalf("population ranking broken: %v", hits)
	}
}

// --- TSV parsing ---

func TestParseTSV_KeepsPAndA_SkipsMalformed(t *testing.T) {
	rows := []string{
		// geonameid name ascii altnames lat lon fclass fcode cc cc2 admin1 a2 a3 a4 population ...
		"184745\tNairobi\tNairobi\tNairobbi,Naerobi\t-1.28333\t36.81667\tP\tPPLC\tKE\t\tNairobi\t\t\t\t2750547\t",
		"184622\tNakuru\tNakuru\t\t-0.30719\t36.07225\tP\tPPLA\tKE\t\tNakuru\t\t\t\t307990\t",
		"192910\tKenya\tKenya\t\t1\t38\tA\tPCLI\tKE\t\t\t\t\t\t47564296\t",
		"1\tMount Kenya\tMount Kenya\t\t-0.15\t37.3\tT\tMT\tKE\t\t\t\t\t\t0\t", // feature class T dropped
		"2\tBadLat\tBadLat\t\tnot-a-number\t36\tP\tPPL\tKE\t\t\t\t\t\t5\t",    // skipped
		"3\tTooFewColumns\t1\t2",                                               // skipped
		"# comment line",
		"",
	}
	g, err := ParseTSV(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("ParseTSV: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len = %d, want 3", g.Len())
	}
	if hits := g.Exact("naerobi"); len(hits) != 1 || hits[0].Name != "Nairobi" {
		t.Fatalf("alt names not indexed: %v", hits)
	}
	if hits := g.Exact("Nakuru"); len(hits) != 1 || hits[0].County != "Nakuru" {
		t.Fatalf("admin1 not captured: %v", hits)
	}
}

// --- resolver cascade ---

func TestResolver_CascadeOrder(t *testing.T) {
	r := NewResolver(testGazetteer())
	ctx := context.Background()

	cases := []struct {
		name, text, county string
		want               MatchKind
		lat, lon           float64
	}{
		{"exact", "Westlands", "Nairobi", MatchExact, -1.2676, 36.8070},
		{"alt name exact", "kibera", "Nairobi", MatchExact, -1.3171, 36.7924},
		{"substring", "around naivasha lake", "Nakuru", MatchPartial, -0.7172, 36.4310},
		{"county centroid", "zzzz unknown", "Machakos", MatchCentroid, -1.518333, 37.266667},
		{"default", "zzzz unknown", "Wajir", MatchDefault, DefaultLatitude, DefaultLongitude},
		{"empty everything", "", "", MatchDefault, DefaultLatitude, DefaultLongitude},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(ctx, tc.text, tc.county)
			if got.Match != tc.want {
				t.Fatalf("match = %q, want %q", got.Match, tc.want)
			}
			if got.Latitude != tc.lat || got.Longitude != tc.lon {
				t.Fatalf("coords = (%v,%v), want (%v,%v)", got.Latitude, got.Longitude, tc.lat, tc.lon)
			}
		})
	}
}

func TestResolver_CacheHitAndKeyFolding(t *testing.T) {
	r := NewResolver(testGazetteer())
	ctx := context.Background()

	first := r.Resolve(ctx, "Westlands", "Nairobi")
	if first.Match != MatchExact {
		t.Fatalf("first match = %q", first.Match)
	}
	// Case-folded repeat hits the cache with the same coordinates.
	second := r.Resolve(ctx, "  westlands ", "NAIROBI")
	if second.Match != MatchCache {
		t.Fatalf("second match = %q, want cache", second.Match)
	}
	if second.Latitude != first.Latitude || second.Longitude != first.Longitude {
		t.Fatalf("cache returned different coordinates")
	}
	// A different county is a different cache entry.
	third := r.Resolve(ctx, "Westlands", "Nakuru")
	if third.Match == MatchCache {
		t.Fatalf("county must partition the cache")
	}
}

func TestResolver_NilGazetteerFallsThrough(t *testing.T) {
	r := NewResolver(nil)
	got := r.Resolve(context.Background(), "anywhere", "Kisumu")
	if got.Match != MatchCentroid {
		t.Fatalf("match = %q, want centroid", got.Match)
	}
}

// --- fuzzing ---

func TestFuzzer_OffsetWithinRadius(t *testing.T) {
	const radius = 5.0
	f := NewFuzzer(radius, 42)
	maxDeg := radius / kmPerDegree

	lat0, lon0 := -1.2833, 36.8167
	for i := 0; i < 1000; i++ {
		lat, lon := f.Fuzz(lat0, lon0)
		if math.Abs(lat-lat0) > maxDeg || math.Abs(lon-lon0) > maxDeg {
			t.Fatalf("offset exceeds bound: (%v,%v)", lat-lat0, lon-lon0)
		}
	}
}

func TestFuzzer_OutputsVary(t *testing.T) {
	f := NewFuzzer(5, 7)
	a1, o1 := f.Fuzz(0, 0)
	a2, o2 := f.Fuzz(0, 0)
	if a1 == a2 && o1 == o2 {
		t.Fatalf("successive fuzzes should differ")
	}
}
