package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // offsets must resolve even on hosts without zoneinfo

	"github.com/gosimple/slug"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

//go:embed data/timezones.json
var embedded embed.FS

// record is the on-disk shape of one catalog row.
type record struct {
	ZoneID    string   `json:"zoneId"`
	Cities    []string `json:"cities"`
	Country   string   `json:"country"`
	Continent string   `json:"continent"`
	Alias     string   `json:"alias"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
}

// Source produces the raw catalog bytes. It is called on startup and on
// every explicit reload.
type Source func() (io.ReadCloser, error)

// EmbeddedSource reads the dataset compiled into the binary.
func EmbeddedSource() Source {
	return func() (io.ReadCloser, error) { return embedded.Open("data/timezones.json") }
}

// FileSource reads the dataset at path.
func FileSource(path string) Source {
	return func() (io.ReadCloser, error) { return os.Open(path) }
}

// BytesSource serves a fixed payload; handy for tests and tooling.
func BytesSource(b []byte) Source {
	return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
}

// SourceFor returns FileSource(path), or EmbeddedSource when path is empty.
func SourceFor(path string) Source {
	if strings.TrimSpace(path) == "" {
		return EmbeddedSource()
	}
	return FileSource(path)
}

// Decode parses a catalog payload and resolves each zone's UTC offset as of
// at. Any invalid row fails the whole load.
func Decode(r io.Reader, at time.Time) ([]domain.CatalogEntry, error) {
	var rows []record
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: %w", ErrEmpty)
	}

	out := make([]domain.CatalogEntry, 0, len(rows))
	for i, row := range rows {
		id := strings.TrimSpace(row.ZoneID)
		loc, err := time.LoadLocation(id)
		if id == "" || err != nil {
			return nil, fmt.Errorf("catalog: row %d: unknown zone %q", i, row.ZoneID)
		}
		if row.Lat < -90 || row.Lat > 90 || row.Lon < -180 || row.Lon > 180 {
			return nil, fmt.Errorf("catalog: row %d (%s): coordinates out of range", i, id)
		}
		_, offset := at.In(loc).Zone()

		cities := make([]string, 0, len(row.Cities))
		for _, c := range row.Cities {
			if c = strings.TrimSpace(c); c != "" {
				cities = append(cities, c)
			}
		}
		alias := strings.TrimSpace(row.Alias)
		if alias == "" && len(cities) > 0 {
			alias = slug.Make(cities[0])
		}

		out = append(out, domain.CatalogEntry{
			ZoneID:           id,
			Cities:           cities,
			CountryName:      strings.TrimSpace(row.Country),
			Continent:        strings.TrimSpace(row.Continent),
			UTCOffsetMinutes: offset / 60,
			Alias:            alias,
			Latitude:         row.Lat,
			Longitude:        row.Lon,
		})
	}
	return out, nil
}

// Read opens src and decodes it.
func Read(src Source, at time.Time) ([]domain.CatalogEntry, error) {
	rc, err := src()
	if err != nil {
		return nil, fmt.Errorf("catalog: open source: %w", err)
	}
	defer rc.Close()
	return Decode(rc, at)
}
