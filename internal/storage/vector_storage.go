// ABOUTME: Movie vector collection on a Charm KV backend with cosine similarity search
// ABOUTME: Entries are JSON values keyed by movie id; search is a filtered full scan
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/BASF-LSU-Collaborations/ragui/internal/charm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
	"go.uber.org/zap"
)

// CharmBackend is the name reported in collection stats
const CharmBackend = "charm"

// KV is the subset of the charm client the collection needs
type KV interface {
	SetJSON(key string, value any) error
	GetJSON(key string, dest any) error
	ListKeys(prefix string) ([]string, error)
	Delete(key string) error
	Sync() error
	Location() string
	Close() error
}

// charmEntry adds the insertion sequence used to break similarity ties
type charmEntry struct {
	Seq int64 `json:"seq"`
	models.EmbeddingEntry
}

type charmMeta struct {
	Dimension int   `json:"dimension"`
	NextSeq   int64 `json:"next_seq"`
}

// CharmStore manages movie embeddings and similarity search using Charm KV
type CharmStore struct {
	kv     KV
	logger *zap.Logger
	mu     sync.Mutex
}

// NewCharmStore creates a collection over a charm client
func NewCharmStore(kv KV, logger *zap.Logger) *CharmStore {
	return &CharmStore{kv: kv, logger: logging.OrNop(logger).Named("charm")}
}

// Close closes the KV database
func (cs *CharmStore) Close() error {
	return cs.kv.Close()
}

// Upsert writes entries in order and syncs once at the end. Existing ids keep
// their original insertion position.
func (cs *CharmStore) Upsert(ctx context.Context, entries []models.EmbeddingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	meta, err := cs.meta()
	if err != nil {
		return charmErr("upsert", err)
	}
	dim := meta.Dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, e := range entries {
		if e.ID == "" {
			return models.NewOpError("charm.upsert", models.ErrInvalidInput, fmt.Errorf("entry %d has no id", i))
		}
		if len(e.Vector) != dim || dim == 0 {
			return models.NewOpError("charm.upsert", models.ErrInvalidInput,
				fmt.Errorf("entry %s: vector dimension %d does not match collection dimension %d", e.ID, len(e.Vector), dim))
		}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return charmErr("upsert", err)
		}
		key := charm.MovieKey(e.ID)
		seq := meta.NextSeq
		var existing charmEntry
		switch err := cs.kv.GetJSON(key, &existing); {
		case err == nil:
			seq = existing.Seq
		case errors.Is(err, charm.ErrNotFound):
			meta.NextSeq++
		default:
			return charmErr("upsert", err)
		}
		if err := cs.kv.SetJSON(key, charmEntry{Seq: seq, EmbeddingEntry: e}); err != nil {
			return charmErr("upsert", err)
		}
	}

	meta.Dimension = dim
	if err := cs.kv.SetJSON(charm.MetaKey("collection"), meta); err != nil {
		return charmErr("upsert", err)
	}
	if err := cs.kv.Sync(); err != nil {
		cs.logger.Warn("sync after upsert failed", zap.Error(err))
	}
	return nil
}

// Query performs cosine similarity search across all entries matching filter
func (cs *CharmStore) Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error) {
	filter, err := filter.Validate()
	if err != nil {
		return models.RetrievalResult{}, err
	}
	meta, err := cs.meta()
	if err != nil {
		return models.RetrievalResult{}, charmErr("query", err)
	}
	if meta.Dimension != 0 && len(vector) != meta.Dimension {
		return models.RetrievalResult{}, models.NewOpError("charm.query", models.ErrInvalidInput,
			fmt.Errorf("query dimension %d does not match collection dimension %d", len(vector), meta.Dimension))
	}

	all, err := cs.scan(ctx)
	if err != nil {
		return models.RetrievalResult{}, charmErr("query", err)
	}

	var items []models.ScoredMovie
	for _, e := range all {
		if !filter.Matches(e.Metadata) {
			continue
		}
		items = append(items, models.ScoredMovie{
			Movie:      e.Record(),
			Similarity: util.CosineSimilarity(vector, e.Vector),
		})
	}
	items = util.RankTopK(items, func(it models.ScoredMovie) float64 { return it.Similarity }, topK)
	return models.RetrievalResult{Items: items}, nil
}

// Get returns the entry with id, or nil when absent
func (cs *CharmStore) Get(ctx context.Context, id string) (*models.EmbeddingEntry, error) {
	var e charmEntry
	err := cs.kv.GetJSON(charm.MovieKey(id), &e)
	if errors.Is(err, charm.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, charmErr("get", err)
	}
	return &e.EmbeddingEntry, nil
}

// Count returns the number of stored entries
func (cs *CharmStore) Count(ctx context.Context) (int, error) {
	keys, err := cs.kv.ListKeys(charm.MoviePrefix)
	if err != nil {
		return 0, charmErr("count", err)
	}
	return len(keys), nil
}

// Peek returns up to limit entries in insertion order
func (cs *CharmStore) Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	all, err := cs.scan(ctx)
	if err != nil {
		return nil, charmErr("peek", err)
	}
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]models.EmbeddingEntry, 0, len(all))
	for _, e := range all {
		out = append(out, e.EmbeddingEntry)
	}
	return out, nil
}

// Stats describes the collection
func (cs *CharmStore) Stats(ctx context.Context) (models.StoreStats, error) {
	n, err := cs.Count(ctx)
	if err != nil {
		return models.StoreStats{}, err
	}
	meta, err := cs.meta()
	if err != nil {
		return models.StoreStats{}, charmErr("stats", err)
	}
	return models.StoreStats{Backend: CharmBackend, Location: cs.kv.Location(), Count: n, Dimension: meta.Dimension}, nil
}

// DeleteExcept removes every entry whose id is not in keep and returns how
// many were removed
func (cs *CharmStore) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	keys, err := cs.kv.ListKeys(charm.MoviePrefix)
	if err != nil {
		return 0, charmErr("delete", err)
	}
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[charm.MovieKey(id)] = struct{}{}
	}
	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, charmErr("delete", err)
		}
		if _, ok := wanted[key]; ok {
			continue
		}
		if err := cs.kv.Delete(key); err != nil {
			return removed, charmErr("delete", err)
		}
		removed++
	}
	if removed > 0 {
		if err := cs.kv.Sync(); err != nil {
			cs.logger.Warn("sync after delete failed", zap.Error(err))
		}
	}
	return removed, nil
}

// Sync pushes local writes to the Charm server and pulls remote ones
func (cs *CharmStore) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.kv.Sync(); err != nil {
		return charmErr("sync", err)
	}
	cs.logger.Info("synced collection", zap.String("location", cs.kv.Location()))
	return nil
}

// scan loads every entry ordered by insertion sequence
func (cs *CharmStore) scan(ctx context.Context) ([]charmEntry, error) {
	keys, err := cs.kv.ListKeys(charm.MoviePrefix)
	if err != nil {
		return nil, err
	}
	entries := make([]charmEntry, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e charmEntry
		if err := cs.kv.GetJSON(key, &e); err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

func (cs *CharmStore) meta() (charmMeta, error) {
	var m charmMeta
	err := cs.kv.GetJSON(charm.MetaKey("collection"), &m)
	if errors.Is(err, charm.ErrNotFound) {
		return charmMeta{}, nil
	}
	return m, err
}

func charmErr(op string, err error) error {
	return models.NewOpError("charm."+op, models.ErrStoreUnavailable, err)
}
