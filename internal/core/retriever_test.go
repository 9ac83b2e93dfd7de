// ABOUTME: Tests for the retriever
// ABOUTME: Covers ranking, truncation, empty results, and error typing
package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

func TestRetriever_RanksAndTruncates(t *testing.T) {
	store := sampleCatalog()
	r := NewRetriever(&keywordEmbedder{vocab: testVocab}, store, 5, nil)

	for _, k := range []int{1, 3, 10} {
		res, err := r.Retrieve(context.Background(), "a clever heist", nil, k)
		if err != nil {
			t.Fatalf("Retrieve(k=%d) error: %v", k, err)
		}
		if res.Len() > k {
			t.Errorf("k=%d: got %d results", k, res.Len())
		}
		for i := 1; i < res.Len(); i++ {
			if res.Items[i].Similarity > res.Items[i-1].Similarity {
				t.Errorf("k=%d: results not sorted at %d: %v", k, i, res.Titles())
			}
		}
	}
}

func TestRetriever_TiesKeepStoreOrder(t *testing.T) {
	store := catalog(
		movie("movie_0", "First", models.TypeMovie, 2000, "R", "heist"),
		movie("movie_1", "Second", models.TypeMovie, 2000, "R", "heist"),
		movie("movie_2", "Third", models.TypeMovie, 2000, "R", "heist"),
	)
	r := NewRetriever(&keywordEmbedder{vocab: testVocab}, store, 5, nil)

	res, err := r.Retrieve(context.Background(), "heist", nil, 2)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if res.Len() != 2 || res.Items[0].Movie.Title != "First" || res.Items[1].Movie.Title != "Second" {
		t.Errorf("ties reordered: %v", res.Titles())
	}
}

func TestRetriever_DefaultTopK(t *testing.T) {
	r := NewRetriever(&keywordEmbedder{vocab: testVocab}, sampleCatalog(), 2, nil)

	res, err := r.Retrieve(context.Background(), "crime", nil, 0)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if res.Len() != 2 {
		t.Errorf("expected default top_k 2, got %d", res.Len())
	}
}

func TestRetriever_OverRestrictiveFilterIsEmpty(t *testing.T) {
	r := NewRetriever(&keywordEmbedder{vocab: testVocab}, sampleCatalog(), 5, nil)
	filter := append(models.Filter{models.Eq(models.FieldRating, "NC-17")}, models.YearBetween(2050, 2060)...)

	res, err := r.Retrieve(context.Background(), "anything", filter, 5)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !res.Empty() {
		t.Errorf("expected no results, got %v", res.Titles())
	}
}

func TestRetriever_RejectsBadInputBeforeCalls(t *testing.T) {
	emb := &keywordEmbedder{vocab: testVocab}
	store := sampleCatalog()
	r := NewRetriever(emb, store, 5, nil)

	if _, err := r.Retrieve(context.Background(), "  ", nil, 5); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("blank query: expected ErrInvalidInput, got %v", err)
	}
	bad := models.Filter{{Field: models.FieldYear, Op: models.OpGt, Value: "nineties"}}
	if _, err := r.Retrieve(context.Background(), "heist", bad, 5); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("bad filter: expected ErrInvalidInput, got %v", err)
	}
	if len(emb.texts) != 0 || store.queries != 0 {
		t.Errorf("external calls made for invalid input: embeds=%d queries=%d", len(emb.texts), store.queries)
	}
}

func TestRetriever_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		embedErr error
		storeErr error
		want     error
	}{
		{"untyped embed failure", errors.New("boom"), nil, models.ErrEmbedding},
		{"typed embed timeout", models.NewOpError("embed", models.ErrEmbedding, context.DeadlineExceeded), nil, models.ErrTimeout},
		{"untyped store failure", nil, errors.New("disk gone"), models.ErrStoreUnavailable},
		{"typed store failure", nil, models.NewOpError("sqlite.query", models.ErrStoreUnavailable, errors.New("locked")), models.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := sampleCatalog()
			store.err = tt.storeErr
			r := NewRetriever(&keywordEmbedder{vocab: testVocab, err: tt.embedErr}, store, 5, nil)

			_, err := r.Retrieve(context.Background(), "heist", nil, 5)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// flakyAPI fails the first embedding call with a 503 and then succeeds
type flakyAPI struct {
	calls int
}

func (f *flakyAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.calls == 1 {
		return openai.EmbeddingResponse{}, &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "try again"}
	}
	emb := &keywordEmbedder{vocab: testVocab}
	input, _ := conv.Convert().Input.([]string)
	resp := openai.EmbeddingResponse{}
	for i, s := range input {
		v, _ := emb.Embed(ctx, s)
		f32 := make([]float32, len(v))
		for j, x := range v {
			f32[j] = float32(x)
		}
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: f32})
	}
	return resp, nil
}

func (f *flakyAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, errors.New("not used")
}

func TestRetriever_EmbeddingRetryIsTransparent(t *testing.T) {
	api := &flakyAPI{}
	cfg := llm.DefaultConfig("test")
	cfg.RetryDelay = time.Millisecond
	client := llm.NewOpenAIClientWithAPI(api, cfg, nil)
	r := NewRetriever(client, sampleCatalog(), 5, nil)

	res, err := r.Retrieve(context.Background(), "a heist", nil, 3)
	if err != nil {
		t.Fatalf("Retrieve() error after transient failure: %v", err)
	}
	if api.calls != 2 {
		t.Errorf("expected one retry, got %d calls", api.calls)
	}
	if res.Empty() || res.Items[0].Similarity <= 0 {
		t.Errorf("unexpected results %v", res.Items)
	}
}
