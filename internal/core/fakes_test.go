// ABOUTME: In-memory fakes shared by the core package tests
// ABOUTME: A scripted chat model, a keyword embedder, and a filtered slice store
package core

import (
	"context"
	"strings"
	"sync"

	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
)

// fakeChat answers with reply(n, messages); n counts calls from 1
type fakeChat struct {
	mu    sync.Mutex
	calls [][]llm.Message
	opts  []llm.ChatOptions
	reply func(n int, messages []llm.Message) (string, error)
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.opts = append(f.opts, opts)
	n := len(f.calls)
	f.mu.Unlock()
	if f.reply == nil {
		return "ok", nil
	}
	return f.reply(n, messages)
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// keywordEmbedder scores each vocabulary word present in the text
type keywordEmbedder struct {
	vocab []string
	err   error
	texts []string
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	k.texts = append(k.texts, text)
	if k.err != nil {
		return nil, k.err
	}
	lower := strings.ToLower(text)
	v := make([]float64, len(k.vocab)+1)
	v[len(k.vocab)] = 0.1
	for i, w := range k.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

var testVocab = []string{"heist", "romance", "space", "comedy", "crime"}

// sliceStore returns every matching entry in insertion order, unsorted
type sliceStore struct {
	entries []models.EmbeddingEntry
	err     error
	queries int
}

func (s *sliceStore) Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error) {
	s.queries++
	if s.err != nil {
		return models.RetrievalResult{}, s.err
	}
	filter, err := filter.Validate()
	if err != nil {
		return models.RetrievalResult{}, err
	}
	var items []models.ScoredMovie
	for _, e := range s.entries {
		if filter.Matches(e.Metadata) {
			items = append(items, models.ScoredMovie{Movie: e.Record(), Similarity: util.CosineSimilarity(vector, e.Vector)})
		}
	}
	return models.RetrievalResult{Items: items}, nil
}

// catalog embeds descriptions with the keyword embedder
func catalog(records ...models.MovieRecord) *sliceStore {
	emb := &keywordEmbedder{vocab: testVocab}
	s := &sliceStore{}
	for _, r := range records {
		v, _ := emb.Embed(context.Background(), r.Description)
		s.entries = append(s.entries, models.NewEmbeddingEntry(r, v))
	}
	return s
}

func movie(id, title, typ string, year int, rating, description string) models.MovieRecord {
	return models.MovieRecord{ID: id, Title: title, Type: typ, ReleaseYear: year, Rating: rating, Description: description}
}

func sampleCatalog() *sliceStore {
	return catalog(
		movie("movie_0", "Vault Nine", models.TypeMovie, 1995, "R", "A crew plans a daring heist on a casino vault."),
		movie("movie_1", "Paris Nights", models.TypeMovie, 2012, "PG-13", "A slow romance between two musicians."),
		movie("movie_2", "Orbiters", models.TypeShow, 1997, "TV-14", "A space station crew drifts toward a comet."),
		movie("movie_3", "Bank Job Blues", models.TypeMovie, 1998, "PG-13", "A comedy heist where nothing goes to plan."),
		movie("movie_4", "Starfall", models.TypeMovie, 1993, "PG", "Astronauts stranded in deep space."),
		movie("movie_5", "Lost Reel", models.TypeMovie, models.MissingReleaseYear, models.MissingRating, "A crime heist caught on film."),
		movie("movie_6", "Night Shift", models.TypeMovie, 2019, "TV-MA", "A crime drama on the late shift."),
	)
}
