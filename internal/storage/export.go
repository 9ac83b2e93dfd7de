// ABOUTME: Export of a movie collection to YAML, Markdown, or JSON
// ABOUTME: Reads every entry through the VectorStore contract so any backend can be exported
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"gopkg.in/yaml.v3"
)

// Export formats
const (
	ExportYAML     = "yaml"
	ExportMarkdown = "markdown"
	ExportJSON     = "json"
)

// ExportData represents the complete exportable collection
type ExportData struct {
	Version    string        `json:"version" yaml:"version"`
	ExportedAt string        `json:"exported_at" yaml:"exported_at"`
	Tool       string        `json:"tool" yaml:"tool"`
	Stats      ExportStats   `json:"stats" yaml:"stats"`
	Movies     []ExportMovie `json:"movies" yaml:"movies"`
}

// ExportStats mirrors the collection stats
type ExportStats struct {
	Backend   string `json:"backend" yaml:"backend"`
	Location  string `json:"location" yaml:"location"`
	Count     int    `json:"count" yaml:"count"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

// ExportMovie is one entry. Missing years and ratings are omitted rather than
// written as sentinels.
type ExportMovie struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	ReleaseYear int       `json:"release_year,omitempty" yaml:"release_year,omitempty"`
	Rating      string    `json:"rating,omitempty" yaml:"rating,omitempty"`
	Description string    `json:"description" yaml:"description"`
	ContentHash string    `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Vector      []float64 `json:"vector,omitempty" yaml:"vector,omitempty,flow"`
}

// Export reads the whole collection. Vectors are included only when
// withVectors is set.
func Export(ctx context.Context, store VectorStore, withVectors bool) (*ExportData, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "ragui",
		Stats: ExportStats{
			Backend:   stats.Backend,
			Location:  stats.Location,
			Count:     stats.Count,
			Dimension: stats.Dimension,
		},
		Movies: []ExportMovie{},
	}
	if stats.Count == 0 {
		return data, nil
	}

	entries, err := store.Peek(ctx, stats.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	for _, e := range entries {
		m := e.Record()
		em := ExportMovie{
			ID:          m.ID,
			Title:       m.Title,
			Type:        m.Type,
			Rating:      m.Rating,
			Description: m.Description,
			ContentHash: e.ContentHash,
		}
		if m.HasYear() {
			em.ReleaseYear = m.ReleaseYear
		}
		if withVectors {
			em.Vector = e.Vector
		}
		data.Movies = append(data.Movies, em)
	}
	return data, nil
}

// ExportToFile writes the collection to outputPath in format
func ExportToFile(ctx context.Context, store VectorStore, format, outputPath string, withVectors bool) error {
	var write func(io.Writer, *ExportData) error
	switch format {
	case ExportYAML:
		write = WriteYAML
	case ExportMarkdown:
		write = WriteMarkdown
	case ExportJSON:
		write = WriteJSON
	default:
		return models.NewOpError("export", models.ErrInvalidInput,
			fmt.Errorf("unknown export format %q (use yaml, markdown, or json)", format))
	}

	data, err := Export(ctx, store, withVectors)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteYAML encodes data as YAML
func WriteYAML(w io.Writer, data *ExportData) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteJSON encodes data as indented JSON
func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteMarkdown renders data as a readable catalog. Vectors are never written.
func WriteMarkdown(w io.Writer, data *ExportData) error {
	_, _ = fmt.Fprintf(w, "# Movie Collection Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", data.ExportedAt)

	_, _ = fmt.Fprintln(w, "## Collection")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "- **Backend:** %s\n", data.Stats.Backend)
	_, _ = fmt.Fprintf(w, "- **Location:** %s\n", data.Stats.Location)
	_, _ = fmt.Fprintf(w, "- **Titles:** %d\n", data.Stats.Count)
	_, _ = fmt.Fprintf(w, "- **Dimension:** %d\n", data.Stats.Dimension)
	_, _ = fmt.Fprintln(w)

	if len(data.Movies) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w, "## Titles")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "| ID | Title | Type | Year | Rating |")
	_, _ = fmt.Fprintln(w, "|----|-------|------|------|--------|")
	for _, m := range data.Movies {
		year := "unknown"
		if m.ReleaseYear != 0 {
			year = fmt.Sprint(m.ReleaseYear)
		}
		rating := m.Rating
		if rating == "" {
			rating = "unrated"
		}
		_, _ = fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n", m.ID, escapeCell(m.Title), m.Type, year, rating)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "## Descriptions")
	_, _ = fmt.Fprintln(w)
	for _, m := range data.Movies {
		_, _ = fmt.Fprintf(w, "### %s\n\n%s\n\n", m.Title, m.Description)
	}
	_, err := fmt.Fprintln(w, "---")
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
