// ABOUTME: Three-stage ingestion: extract raw data, split descriptions from metadata, embed and store
// ABOUTME: Stages are restartable; the manifest lets unchanged stages and entries be skipped
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"go.uber.org/zap"
)

// Stage names
const (
	StageExtract = "extract"
	StageSplit   = "split"
	StageEmbed   = "embed"
)

// Artifact names inside the work dir
const (
	MoviesFile       = "netflix_movies.json"
	DescriptionsFile = "movie_descriptions.json"
	MetadataFile     = "movie_metadata.json"
)

// DefaultBatchSize is the number of descriptions embedded per request
const DefaultBatchSize = 100

// BatchEmbedder embeds texts in order
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Store is the part of the vector store ingestion writes to
type Store interface {
	Upsert(ctx context.Context, entries []models.EmbeddingEntry) error
	Get(ctx context.Context, id string) (*models.EmbeddingEntry, error)
	DeleteExcept(ctx context.Context, keep []string) (int, error)
}

// Options configures an Ingester
type Options struct {
	WorkDir   string
	BatchSize int
	Force     bool
}

// Report summarizes one run
type Report struct {
	Extracted int           `json:"extracted"`
	Records   int           `json:"records"`
	Embedded  int           `json:"embedded"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Batches   int           `json:"batches"`
	Skipped   []string      `json:"skipped_stages,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Ingester runs the ingestion stages against one work dir
type Ingester struct {
	embedder BatchEmbedder
	store    Store
	opts     Options
	logger   *zap.Logger
}

// New creates an ingester
func New(embedder BatchEmbedder, store Store, opts Options, logger *zap.Logger) *Ingester {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("ingest"),
	}
}

// Run executes every stage on rawPath in order
func (in *Ingester) Run(ctx context.Context, rawPath string) (Report, error) {
	start := time.Now()
	var rep Report

	m, err := in.prepare()
	if err != nil {
		return rep, err
	}
	if err := in.extract(ctx, m, rawPath, &rep); err != nil {
		return rep, err
	}
	if err := in.split(ctx, m, &rep); err != nil {
		return rep, err
	}
	if err := in.embed(ctx, m, &rep); err != nil {
		return rep, err
	}

	rep.Elapsed = time.Since(start)
	in.logger.Info("ingestion complete",
		zap.Int("records", rep.Records),
		zap.Int("embedded", rep.Embedded),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("removed", rep.Removed),
		zap.Strings("skipped_stages", rep.Skipped),
		zap.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// RunStage executes a single stage. Stages after extract read the artifacts
// already in the work dir and fail with ErrArtifactMismatch if they changed.
func (in *Ingester) RunStage(ctx context.Context, stage, rawPath string) (Report, error) {
	start := time.Now()
	var rep Report

	m, err := in.prepare()
	if err != nil {
		return rep, err
	}
	switch stage {
	case StageExtract:
		err = in.extract(ctx, m, rawPath, &rep)
	case StageSplit:
		err = in.split(ctx, m, &rep)
	case StageEmbed:
		err = in.embed(ctx, m, &rep)
	default:
		err = models.NewOpError("ingest", models.ErrInvalidInput, fmt.Errorf("unknown stage %q", stage))
	}
	rep.Elapsed = time.Since(start)
	return rep, err
}

func (in *Ingester) prepare() (*Manifest, error) {
	if err := os.MkdirAll(in.opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir %s: %w", in.opts.WorkDir, err)
	}
	return LoadManifest(in.opts.WorkDir)
}

func (in *Ingester) path(name string) string {
	return filepath.Join(in.opts.WorkDir, name)
}

func (in *Ingester) extract(ctx context.Context, m *Manifest, rawPath string, rep *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inputHash, err := HashFile(rawPath)
	if err != nil {
		return err
	}
	if !in.opts.Force && m.UpToDate(StageExtract, inputHash) {
		in.logger.Info("extract is up to date", zap.String("input", rawPath))
		rep.Skipped = append(rep.Skipped, StageExtract)
		return nil
	}

	f, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 64)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind dataset: %w", err)
	}
	movies, err := ReadRaw(f, DetectFormat(rawPath, head[:n]))
	if err != nil {
		return err
	}

	if err := writeJSON(in.path(MoviesFile), movies); err != nil {
		return err
	}
	if err := m.Record(StageExtract, inputHash, MoviesFile); err != nil {
		return err
	}
	rep.Extracted = len(movies)
	in.logger.Info("extracted dataset", zap.String("input", rawPath), zap.Int("titles", len(movies)))
	return nil
}

func (in *Ingester) split(ctx context.Context, m *Manifest, rep *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inputHash, err := m.Verify(MoviesFile)
	if err != nil {
		return err
	}
	if !in.opts.Force && m.UpToDate(StageSplit, inputHash) {
		in.logger.Info("split is up to date")
		rep.Skipped = append(rep.Skipped, StageSplit)
		return nil
	}

	var movies []RawMovie
	if err := readJSONFile(in.path(MoviesFile), &movies); err != nil {
		return err
	}
	descriptions, metadata := Split(movies)

	if err := writeJSON(in.path(DescriptionsFile), descriptions); err != nil {
		return err
	}
	if err := writeJSON(in.path(MetadataFile), metadata); err != nil {
		return err
	}
	if err := m.Record(StageSplit, inputHash, DescriptionsFile, MetadataFile); err != nil {
		return err
	}
	in.logger.Info("split descriptions from metadata",
		zap.Int("titles", len(movies)),
		zap.Int("with_description", len(descriptions)))
	return nil
}

// embed always reconciles the store against the split artifacts. Entries whose
// stored content hash matches are not re-embedded unless Force is set; entries
// no longer in the artifacts are removed once every batch is stored.
func (in *Ingester) embed(ctx context.Context, m *Manifest, rep *Report) error {
	descHash, err := m.Verify(DescriptionsFile)
	if err != nil {
		return err
	}
	metaHash, err := m.Verify(MetadataFile)
	if err != nil {
		return err
	}

	var (
		descriptions []string
		metadata     []MetadataRecord
	)
	if err := readJSONFile(in.path(DescriptionsFile), &descriptions); err != nil {
		return err
	}
	if err := readJSONFile(in.path(MetadataFile), &metadata); err != nil {
		return err
	}
	records, err := Join(descriptions, metadata)
	if err != nil {
		return err
	}
	rep.Records = len(records)

	size := in.opts.BatchSize
	total := (len(records) + size - 1) / size
	for b, start := 0, 0; start < len(records); b, start = b+1, start+size {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := records[start:min(start+size, len(records))]

		pending, err := in.changed(ctx, batch)
		if err != nil {
			return err
		}
		rep.Unchanged += len(batch) - len(pending)
		if len(pending) == 0 {
			in.logger.Debug("batch unchanged", zap.Int("batch", b+1), zap.Int("of", total))
			continue
		}

		texts := make([]string, len(pending))
		for i, r := range pending {
			texts[i] = r.Description
		}
		vectors, err := in.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("batch %d of %d: %w", b+1, total, err)
		}
		if len(vectors) != len(pending) {
			return models.NewOpError("ingest.embed", models.ErrEmbedding,
				fmt.Errorf("batch %d: got %d vectors for %d descriptions", b+1, len(vectors), len(pending)))
		}

		entries := make([]models.EmbeddingEntry, len(pending))
		for i, r := range pending {
			entries[i] = models.NewEmbeddingEntry(r, vectors[i])
		}
		if err := in.store.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("batch %d of %d: %w", b+1, total, err)
		}

		rep.Embedded += len(entries)
		rep.Batches++
		in.logger.Info("stored batch",
			zap.Int("batch", b+1),
			zap.Int("of", total),
			zap.Int("entries", len(entries)))
	}

	keep := make([]string, len(records))
	for i, r := range records {
		keep[i] = r.ID
	}
	removed, err := in.store.DeleteExcept(ctx, keep)
	if err != nil {
		return fmt.Errorf("failed to remove stale entries: %w", err)
	}
	rep.Removed = removed
	if removed > 0 {
		in.logger.Info("removed stale entries", zap.Int("removed", removed))
	}

	return m.Record(StageEmbed, combineHashes(map[string]string{
		DescriptionsFile: descHash,
		MetadataFile:     metaHash,
	}))
}

// changed returns the records whose stored copy is missing or differs
func (in *Ingester) changed(ctx context.Context, batch []models.MovieRecord) ([]models.MovieRecord, error) {
	if in.opts.Force {
		return batch, nil
	}
	var out []models.MovieRecord
	for _, r := range batch {
		existing, err := in.store.Get(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil || existing.ContentHash != models.ContentHash(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
