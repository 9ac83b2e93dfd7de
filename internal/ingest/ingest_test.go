// ABOUTME: Tests for the staged ingestion pipeline
// ABOUTME: Covers the round trip into a real collection, reruns, forced runs, and tampered artifacts
package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/sqlite"
	"go.uber.org/zap/zaptest"
)

const sampleCSV = `show_id,type,title,director,release_year,rating,description
s1,Movie,Vault Job,Ann Lee,1995,R,A crew of thieves plans one last bank vault heist in Chicago.
s2,Movie,Orbit,Bo Chan,2019,PG-13,An astronaut stranded on a space station fights to get home.
s3,TV Show,Kitchen Wars,,2021,TV-14,Rival chefs compete in a cooking tournament for a restaurant.
s4,Movie,Blank Page,,2001,PG,
s5,Movie,Lost Reel,,,,A silent film restorer uncovers a forgotten love letter hidden in a reel.
`

// bagEmbedder hashes words into a fixed number of buckets
type bagEmbedder struct {
	mu     sync.Mutex
	calls  int
	texts  int
	failOn int
}

func (b *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	b.mu.Lock()
	b.calls++
	b.texts += len(texts)
	call := b.calls
	b.mu.Unlock()
	if b.failOn > 0 && call == b.failOn {
		return nil, models.NewOpError("embed", models.ErrEmbedding, errors.New("upstream unavailable"))
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func bagOfWords(text string) []float64 {
	v := make([]float64, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,")))
		v[h.Sum32()%64]++
	}
	return v
}

func writeDataset(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func newStore(t *testing.T) *sqlite.MovieStore {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	s := sqlite.NewMovieStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIngest_RoundTripRanksExactDescriptionFirst(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "netflix_titles.csv", sampleCSV)
	store := newStore(t)
	emb := &bagEmbedder{}
	ctx := context.Background()

	in := New(emb, store, Options{WorkDir: filepath.Join(dir, "work"), BatchSize: 2}, zaptest.NewLogger(t))
	rep, err := in.Run(ctx, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Extracted != 5 {
		t.Errorf("Extracted = %d, want 5", rep.Extracted)
	}
	if rep.Records != 4 || rep.Embedded != 4 {
		t.Errorf("Records/Embedded = %d/%d, want 4/4", rep.Records, rep.Embedded)
	}
	if rep.Batches != 2 {
		t.Errorf("Batches = %d, want 2", rep.Batches)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("Count() = %d, want 4", count)
	}

	var descriptions []string
	if err := readJSONFile(filepath.Join(dir, "work", DescriptionsFile), &descriptions); err != nil {
		t.Fatalf("readJSONFile() error = %v", err)
	}
	var metadata []MetadataRecord
	if err := readJSONFile(filepath.Join(dir, "work", MetadataFile), &metadata); err != nil {
		t.Fatalf("readJSONFile() error = %v", err)
	}
	for i, d := range descriptions {
		res, err := store.Query(ctx, bagOfWords(d), nil, 1)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if res.Len() != 1 || res.Items[0].Movie.ID != metadata[i].ID {
			t.Errorf("query for %s ranked %v first", metadata[i].ID, res.Titles())
		}
	}

	lost, err := store.Get(ctx, "movie_s5")
	if err != nil || lost == nil {
		t.Fatalf("Get(movie_s5) = %v, %v", lost, err)
	}
	if lost.Metadata.ReleaseYear != models.MissingReleaseYear || lost.Metadata.Rating != models.MissingRating {
		t.Errorf("Lost Reel metadata = %+v, want missing sentinels", lost.Metadata)
	}
	if blank, _ := store.Get(ctx, "movie_s4"); blank != nil {
		t.Errorf("title without a description was stored: %+v", blank)
	}
}

func TestIngest_RerunSkipsUnchangedWork(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	store := newStore(t)
	emb := &bagEmbedder{}
	ctx := context.Background()
	in := New(emb, store, Options{WorkDir: filepath.Join(dir, "work")}, zaptest.NewLogger(t))

	if _, err := in.Run(ctx, raw); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstTexts := emb.texts

	rep, err := in.Run(ctx, raw)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if emb.texts != firstTexts {
		t.Errorf("rerun embedded %d more texts, want 0", emb.texts-firstTexts)
	}
	if rep.Unchanged != 4 || rep.Embedded != 0 {
		t.Errorf("Unchanged/Embedded = %d/%d, want 4/0", rep.Unchanged, rep.Embedded)
	}
	if len(rep.Skipped) != 2 {
		t.Errorf("Skipped = %v, want extract and split", rep.Skipped)
	}
}

func TestIngest_ChangedDescriptionIsReembedded(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	store := newStore(t)
	emb := &bagEmbedder{}
	ctx := context.Background()
	in := New(emb, store, Options{WorkDir: filepath.Join(dir, "work")}, zaptest.NewLogger(t))

	if _, err := in.Run(ctx, raw); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	writeDataset(t, dir, "titles.csv", strings.Replace(sampleCSV, "last bank vault heist", "final casino heist", 1))

	rep, err := in.Run(ctx, raw)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if rep.Embedded != 1 || rep.Unchanged != 3 {
		t.Errorf("Embedded/Unchanged = %d/%d, want 1/3", rep.Embedded, rep.Unchanged)
	}
	got, _ := store.Get(ctx, "movie_s1")
	if got == nil || !strings.Contains(got.Document, "casino") {
		t.Errorf("movie_s1 document = %v, want updated description", got)
	}
}

func TestIngest_RemovedRowsLeaveTheCollection(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	store := newStore(t)
	emb := &bagEmbedder{}
	ctx := context.Background()
	in := New(emb, store, Options{WorkDir: filepath.Join(dir, "work")}, zaptest.NewLogger(t))

	if _, err := in.Run(ctx, raw); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstTexts := emb.texts

	lines := strings.Split(sampleCSV, "\n")
	var kept []string
	for _, l := range lines {
		if !strings.HasPrefix(l, "s1,") {
			kept = append(kept, l)
		}
	}
	writeDataset(t, dir, "titles.csv", strings.Join(kept, "\n"))

	rep, err := in.Run(ctx, raw)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if rep.Removed != 1 || rep.Unchanged != 3 || rep.Embedded != 0 {
		t.Errorf("Removed/Unchanged/Embedded = %d/%d/%d, want 1/3/0", rep.Removed, rep.Unchanged, rep.Embedded)
	}
	if emb.texts != firstTexts {
		t.Errorf("removing a row re-embedded %d texts, want 0", emb.texts-firstTexts)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
	if gone, _ := store.Get(ctx, "movie_s1"); gone != nil {
		t.Errorf("removed title still stored: %+v", gone.Metadata)
	}
	peek, err := store.Peek(ctx, 10)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	seen := map[string]bool{}
	for _, e := range peek {
		if seen[e.Metadata.Title] {
			t.Errorf("title %q stored twice", e.Metadata.Title)
		}
		seen[e.Metadata.Title] = true
	}
}

func TestIngest_ShortDatasetWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles", `[{"title":"A","description":"b c"}]`)
	store := newStore(t)
	in := New(&bagEmbedder{}, store, Options{WorkDir: filepath.Join(dir, "work")}, zaptest.NewLogger(t))

	rep, err := in.Run(context.Background(), raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Extracted != 1 || rep.Embedded != 1 {
		t.Errorf("Extracted/Embedded = %d/%d, want 1/1", rep.Extracted, rep.Embedded)
	}
}

func TestIngest_ForceReembedsEverything(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	store := newStore(t)
	emb := &bagEmbedder{}
	ctx := context.Background()

	if _, err := New(emb, store, Options{WorkDir: filepath.Join(dir, "work")}, nil).Run(ctx, raw); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rep, err := New(emb, store, Options{WorkDir: filepath.Join(dir, "work"), Force: true}, nil).Run(ctx, raw)
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if rep.Embedded != 4 || len(rep.Skipped) != 0 {
		t.Errorf("forced run Embedded = %d Skipped = %v, want 4 and none", rep.Embedded, rep.Skipped)
	}
	if emb.texts != 8 {
		t.Errorf("embedded %d texts in total, want 8", emb.texts)
	}
}

func TestIngest_TamperedArtifactIsRejected(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "work")
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	ctx := context.Background()
	in := New(&bagEmbedder{}, newStore(t), Options{WorkDir: work}, zaptest.NewLogger(t))

	if _, err := in.RunStage(ctx, StageExtract, raw); err != nil {
		t.Fatalf("RunStage(extract) error = %v", err)
	}
	if _, err := in.RunStage(ctx, StageSplit, ""); err != nil {
		t.Fatalf("RunStage(split) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(work, DescriptionsFile), []byte(`["edited"]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := in.RunStage(ctx, StageEmbed, "")
	if !errors.Is(err, ErrArtifactMismatch) {
		t.Fatalf("RunStage(embed) error = %v, want ErrArtifactMismatch", err)
	}
}

func TestIngest_StageWithoutInputsIsRejected(t *testing.T) {
	in := New(&bagEmbedder{}, newStore(t), Options{WorkDir: t.TempDir()}, nil)
	_, err := in.RunStage(context.Background(), StageSplit, "")
	if !errors.Is(err, ErrArtifactMismatch) {
		t.Fatalf("RunStage(split) error = %v, want ErrArtifactMismatch", err)
	}
}

func TestIngest_UnknownStage(t *testing.T) {
	in := New(&bagEmbedder{}, newStore(t), Options{WorkDir: t.TempDir()}, nil)
	_, err := in.RunStage(context.Background(), "download", "")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("RunStage(download) error = %v, want ErrInvalidInput", err)
	}
}

func TestIngest_FailedBatchKeepsEarlierBatches(t *testing.T) {
	dir := t.TempDir()
	raw := writeDataset(t, dir, "titles.csv", sampleCSV)
	store := newStore(t)
	ctx := context.Background()

	in := New(&bagEmbedder{failOn: 2}, store, Options{WorkDir: filepath.Join(dir, "work"), BatchSize: 2}, nil)
	_, err := in.Run(ctx, raw)
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("Run() error = %v, want ErrEmbedding", err)
	}
	count, _ := store.Count(ctx)
	if count != 2 {
		t.Fatalf("Count() after failed batch = %d, want 2", count)
	}

	emb := &bagEmbedder{}
	rep, err := New(emb, store, Options{WorkDir: filepath.Join(dir, "work"), BatchSize: 2}, nil).Run(ctx, raw)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if emb.texts != 2 || rep.Unchanged != 2 {
		t.Errorf("resume embedded %d texts with %d unchanged, want 2 and 2", emb.texts, rep.Unchanged)
	}
}

func TestBagOfWords_IsDeterministic(t *testing.T) {
	a, b := bagOfWords("Space heist"), bagOfWords("space heist.")
	for i := range a {
		if math.Abs(a[i]-b[i]) > 0 {
			t.Fatalf("bucket %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}
