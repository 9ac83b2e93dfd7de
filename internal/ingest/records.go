// ABOUTME: Reads raw movie datasets (CSV with a header row, or a JSON array)
// ABOUTME: Normalizes missing years and ratings to the collection sentinels
package ingest

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
)

// RawMovie is one extracted title, the shape of netflix_movies.json
type RawMovie struct {
	ShowID      string `json:"show_id,omitempty"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	ReleaseYear int    `json:"release_year"`
	Rating      string `json:"rating"`
	Description string `json:"description"`
}

// Format names a raw dataset encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat picks a format from the file extension, falling back to the
// first non-space byte
func DetectFormat(path string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	}
	if t := bytes.TrimSpace(head); len(t) > 0 && t[0] == '[' {
		return FormatJSON
	}
	return FormatCSV
}

// ReadRaw parses a dataset in the given format
func ReadRaw(r io.Reader, format Format) ([]RawMovie, error) {
	switch format {
	case FormatJSON:
		return readJSON(r)
	case FormatCSV:
		return readCSV(r)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", format)
}

func readCSV(r io.Reader) ([]RawMovie, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"title", "description"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV header has no %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []RawMovie
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		out = append(out, RawMovie{
			ShowID:      field(row, "show_id"),
			Title:       field(row, "title"),
			Type:        field(row, "type"),
			ReleaseYear: parseYear(field(row, "release_year")),
			Rating:      field(row, "rating"),
			Description: field(row, "description"),
		})
	}
	return out, nil
}

// jsonMovie accepts years as numbers, numeric strings, or null
type jsonMovie struct {
	ShowID      *string         `json:"show_id"`
	Title       *string         `json:"title"`
	Type        *string         `json:"type"`
	ReleaseYear json.RawMessage `json:"release_year"`
	Rating      *string         `json:"rating"`
	Description *string         `json:"description"`
}

func readJSON(r io.Reader) ([]RawMovie, error) {
	var items []jsonMovie
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode JSON dataset: %w", err)
	}
	out := make([]RawMovie, 0, len(items))
	for _, it := range items {
		out = append(out, RawMovie{
			ShowID:      deref(it.ShowID),
			Title:       deref(it.Title),
			Type:        deref(it.Type),
			ReleaseYear: parseYear(strings.Trim(string(it.ReleaseYear), `"`)),
			Rating:      deref(it.Rating),
			Description: deref(it.Description),
		})
	}
	return out, nil
}

func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return models.MissingReleaseYear
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return models.MissingReleaseYear
		}
		y = int(f)
	}
	if y < 1800 || y > 3000 {
		return models.MissingReleaseYear
	}
	return y
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// MetadataRecord is one row of movie_metadata.json
type MetadataRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	ReleaseYear int    `json:"release_year"`
	Rating      string `json:"rating"`
}

// Split keeps titles that have a description and assigns each a stable id
// (see MovieID). Later rows that repeat an id are dropped. The returned
// slices are index-aligned.
func Split(movies []RawMovie) ([]string, []MetadataRecord) {
	var (
		descriptions []string
		metadata     []MetadataRecord
	)
	seen := make(map[string]struct{}, len(movies))
	for _, m := range movies {
		if strings.TrimSpace(m.Description) == "" {
			continue
		}
		id := MovieID(m)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		descriptions = append(descriptions, m.Description)
		metadata = append(metadata, MetadataRecord{
			ID:          id,
			Title:       m.Title,
			Type:        m.Type,
			ReleaseYear: m.ReleaseYear,
			Rating:      m.Rating,
		})
	}
	return descriptions, metadata
}

// MovieID derives an id that survives rows being added or removed around
// the title: the dataset's show_id when present, otherwise a hash of the
// title's content.
func MovieID(m RawMovie) string {
	if key := sanitizeID(m.ShowID); key != "" {
		return "movie_" + key
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(m.Title),
		strings.TrimSpace(m.Type),
		strconv.Itoa(m.ReleaseYear),
		strings.TrimSpace(m.Description),
	}, "\x1f")))
	return "movie_h" + hex.EncodeToString(sum[:8])
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Join rebuilds validated records from the split artifacts
func Join(descriptions []string, metadata []MetadataRecord) ([]models.MovieRecord, error) {
	if len(descriptions) != len(metadata) {
		return nil, fmt.Errorf("%w: %d descriptions but %d metadata rows", ErrArtifactMismatch, len(descriptions), len(metadata))
	}
	out := make([]models.MovieRecord, 0, len(metadata))
	for i, md := range metadata {
		rec := models.MovieRecord{
			ID:          md.ID,
			Title:       md.Title,
			Type:        md.Type,
			ReleaseYear: md.ReleaseYear,
			Rating:      md.Rating,
			Description: descriptions[i],
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
