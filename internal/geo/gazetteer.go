// Package geo implements location resolution for incident reports: a
// gazetteer of Kenyan populated places, a cascading resolver that always
// produces coordinates, and the privacy fuzzing transform applied before
// coordinates become public.
package geo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Place is one gazetteer entry. Names are matched case-insensitively;
// Population breaks ties between candidate matches.
type Place struct {
	Name       string
	AltNames   []string
	Latitude   float64
	Longitude  float64
	County     string // admin1 name when known
	Population int64
}

// Gazetteer is an in-memory, read-only index of places. Built once at
// startup; safe for concurrent lookups afterwards.
type Gazetteer struct {
	places []Place
	byName map[string][]int // case-folded name or alt name -> indices into places
}

// NewGazetteer indexes the given places.
func NewGazetteer(places []Place) *Gazetteer {
	g := &Gazetteer{
		places: places,
		byName: make(map[string][]int, len(places)*2),
	}
	for i, p := range places {
		g.index(strings.ToLower(p.Name), i)
		for _, alt := range p.AltNames {
			g.index(strings.ToLower(alt), i)
		}
	}
	return g
}

func (g *Gazetteer) index(key string, i int) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	g.byName[key] = append(g.byName[key], i)
}

// Len returns the number of indexed places.
func (g *Gazetteer) Len() int { return len(g.places) }

// Exact returns places whose primary or alternate name equals name
// (case-insensitive), most populous first.
func (g *Gazetteer) Exact(name string) []Place {
	idx := g.byName[strings.ToLower(strings.TrimSpace(name))]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Place, len(idx))
	for i, j := range idx {
		out[i] = g.places[j]
	}
	sortByPopulation(out)
	return out
}

// Substring returns places where the query contains the place name or the
// place name contains the query (case-insensitive), most populous first.
// Queries shorter than 3 runes are rejected to avoid noise matches.
func (g *Gazetteer) Substring(query string) []Place {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < 3 {
		return nil
	}
	var out []Place
	for _, p := range g.places {
		name := strings.ToLower(p.Name)
		if strings.Contains(q, name) || strings.Contains(name, q) {
			out = append(out, p)
		}
	}
	sortByPopulation(out)
	return out
}

func sortByPopulation(ps []Place) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Population > ps[j].Population })
}

// GeoNames TSV column positions used by the loader.
const (
	colName       = 1
	colAltNames   = 3
	colLatitude   = 4
	colLongitude  = 5
	colFeature    = 6
	colAdmin1     = 10
	colPopulation = 14
	minColumns    = 15
)

// LoadTSV reads a GeoNames-format gazetteer dump from path. Only feature
// classes P (populated place) and A (administrative area) are kept.
// Malformed rows are skipped, not fatal.
func LoadTSV(path string) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open gazetteer: %w", err)
	}
	defer f.Close()
	return ParseTSV(f)
}

// ParseTSV parses GeoNames TSV rows from r. See LoadTSV.
func ParseTSV(r io.Reader) (*Gazetteer, error) {
	var places []Place
	skipped := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < minColumns {
			skipped++
			continue
		}
		switch cols[colFeature] {
		case "P", "A":
		default:
			continue
		}
		lat, err1 := strconv.ParseFloat(cols[colLatitude], 64)
		lon, err2 := strconv.ParseFloat(cols[colLongitude], 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		name := strings.TrimSpace(cols[colName])
		if name == "" {
			skipped++
			continue
		}
		pop, _ := strconv.ParseInt(cols[colPopulation], 10, 64)
		places = append(places, Place{
			Name:       name,
			AltNames:   splitAltNames(cols[colAltNames]),
			Latitude:   lat,
			Longitude:  lon,
			County:     strings.TrimSpace(cols[colAdmin1]),
			Population: pop,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("geo: read gazetteer: %w", err)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("loaded", len(places)).
			Msg("gazetteer rows skipped during parse")
	}
	return NewGazetteer(places), nil
}

func splitAltNames(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
