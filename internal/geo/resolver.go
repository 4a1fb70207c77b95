package geo

import (
	"context"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// MatchKind reports which step of the resolution cascade produced the
// coordinates.
type MatchKind string

const (
	MatchCache    MatchKind = "cache"
	MatchExact    MatchKind = "exact"
	MatchPartial  MatchKind = "partial"
	MatchCentroid MatchKind = "county_centroid"
	MatchDefault  MatchKind = "default"
)

// Result is a successful resolution. Resolution is total: there is no error
// branch, only progressively coarser match kinds.
type Result struct {
	Latitude  float64
	Longitude float64
	Match     MatchKind
}

// Nairobi CBD, the national fallback when nothing else matches.
const (
	DefaultLatitude  = -1.286389
	DefaultLongitude = 36.817223
)

// countyCentroids maps case-folded county (and major town) names to an
// approximate centroid. Consulted when the gazetteer has no hit for the
// free text but the survivor named a county.
var countyCentroids = map[string][2]float64{
	"nairobi":     {-1.286389, 36.817223},
	"nakuru":      {-0.303099, 36.080026},
	"mombasa":     {-4.043477, 39.668206},
	"kisumu":      {-0.091702, 34.767956},
	"uasin gishu": {0.514277, 35.269780},
	"eldoret":     {0.514277, 35.269780},
	"machakos":    {-1.518333, 37.266667},
	"kajiado":     {-1.852780, 36.776667},
	"kiambu":      {-1.171389, 36.835556},
	"meru":        {0.047035, 37.649803},
	"kakamega":    {0.282731, 34.751206},
}

// Resolver maps survivor-provided location text to coordinates through a
// cascade of cheapening strategies, memoizing every answer. It never fails:
// the worst case is the national default. Safe for concurrent use.
type Resolver struct {
	gaz   *Gazetteer
	cache *gocache.Cache
}

// NewResolver builds a Resolver over the given gazetteer. A nil gazetteer is
// allowed; the cascade then starts at the county-centroid step.
func NewResolver(gaz *Gazetteer) *Resolver {
	return &Resolver{
		gaz:   gaz,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// cacheKey folds the query so "Westlands"/"westlands" share one entry. The
// county is part of the key because the same text can resolve differently
// per county.
func cacheKey(text, county string) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + strings.ToLower(strings.TrimSpace(county))
}

// Resolve runs the cascade for the given free text and county:
// cache, exact gazetteer match, substring match ranked by population,
// county centroid, national default. Every non-cache answer is written back
// to the cache under the original query key. Concurrent duplicate writes are
// harmless; the cascade is deterministic so racing writers store the same
// coordinates.
func (r *Resolver) Resolve(ctx context.Context, text, county string) Result {
	_, span := otel.Tracer("geo").Start(ctx, "Resolver.Resolve")
	defer span.End()

	key := cacheKey(text, county)
	if v, ok := r.cache.Get(key); ok {
		res := v.(Result)
		res.Match = MatchCache
		span.SetAttributes(attribute.String("geo.match", string(res.Match)))
		return res
	}

	res := r.lookup(text, county)
	r.cache.Set(key, res, gocache.NoExpiration)
	span.SetAttributes(attribute.String("geo.match", string(res.Match)))
	log.Debug().Str("match", string(res.Match)).Str("county", county).
		Msg("location resolved")
	return res
}

func (r *Resolver) lookup(text, county string) Result {
	text = strings.TrimSpace(text)

	if r.gaz != nil && text != "" {
		if hits := r.gaz.Exact(text); len(hits) > 0 {
			return Result{hits[0].Latitude, hits[0].Longitude, MatchExact}
		}
		if hits := r.gaz.Substring(text); len(hits) > 0 {
			return Result{hits[0].Latitude, hits[0].Longitude, MatchPartial}
		}
	}

	if c := strings.ToLower(strings.TrimSpace(county)); c != "" {
		if ll, ok := countyCentroids[c]; ok {
			return Result{ll[0], ll[1], MatchCentroid}
		}
		if r.gaz != nil {
			if hits := r.gaz.Exact(c); len(hits) > 0 {
				return Result{hits[0].Latitude, hits[0].Longitude, MatchCentroid}
			}
		}
	}

	return Result{DefaultLatitude, DefaultLongitude, MatchDefault}
}
