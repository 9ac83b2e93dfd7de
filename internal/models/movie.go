// ABOUTME: MovieRecord and embedding entry models for the movie collection
// ABOUTME: Defines missing-value sentinels and content hashing for ingestion
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/BASF-LSU-Collaborations/ragui/internal/validation"
)

const (
	// MissingReleaseYear marks a record whose release year is unknown
	MissingReleaseYear = -1
	// MissingRating marks a record with no rating classification
	MissingRating = ""

	TypeMovie = "Movie"
	TypeShow  = "TV Show"
)

// MovieRecord is one title from the dataset. Description is the embedding input.
type MovieRecord struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	ReleaseYear int    `json:"release_year" validate:"eq=-1|gte=1800,lte=3000"`
	Rating      string `json:"rating"`
	Description string `json:"description" validate:"required"`
}

// Validate checks required fields and the year range
func (m MovieRecord) Validate() error {
	if err := validation.Struct(m); err != nil {
		return fmt.Errorf("movie %q: %w", m.ID, err)
	}
	return nil
}

// Metadata returns the filterable subset of the record
func (m MovieRecord) Metadata() MovieMetadata {
	return MovieMetadata{
		Title:       m.Title,
		Type:        m.Type,
		ReleaseYear: m.ReleaseYear,
		Rating:      m.Rating,
	}
}

// HasYear reports whether the release year is known
func (m MovieRecord) HasYear() bool {
	return m.ReleaseYear != MissingReleaseYear
}

// HasRating reports whether the rating is known
func (m MovieRecord) HasRating() bool {
	return m.Rating != MissingRating
}

// MovieMetadata is the metadata mapping stored next to each vector
type MovieMetadata struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	ReleaseYear int    `json:"release_year"`
	Rating      string `json:"rating"`
}

// EmbeddingEntry is a persisted (id, vector, metadata, document) tuple
type EmbeddingEntry struct {
	ID          string        `json:"id"`
	Vector      []float64     `json:"vector"`
	Metadata    MovieMetadata `json:"metadata"`
	Document    string        `json:"document"`
	ContentHash string        `json:"content_hash"`
}

// NewEmbeddingEntry pairs a record with its vector and stamps the content hash
func NewEmbeddingEntry(m MovieRecord, vector []float64) EmbeddingEntry {
	return EmbeddingEntry{
		ID:          m.ID,
		Vector:      vector,
		Metadata:    m.Metadata(),
		Document:    m.Description,
		ContentHash: ContentHash(m),
	}
}

// Record rebuilds the MovieRecord an entry was created from
func (e EmbeddingEntry) Record() MovieRecord {
	return MovieRecord{
		ID:          e.ID,
		Title:       e.Metadata.Title,
		Type:        e.Metadata.Type,
		ReleaseYear: e.Metadata.ReleaseYear,
		Rating:      e.Metadata.Rating,
		Description: e.Document,
	}
}

// ContentHash fingerprints everything stored for a record except its vector
func ContentHash(m MovieRecord) string {
	h := sha256.New()
	for _, part := range []string{m.ID, m.Title, m.Type, strconv.Itoa(m.ReleaseYear), m.Rating, m.Description} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
