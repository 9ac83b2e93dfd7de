package ragas

import (
	"strings"
	"testing"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
)

func scored(title, typ string, year int) models.ScoredMovie {
	return models.ScoredMovie{
		Movie: models.MovieRecord{ID: strings.ToLower(title), Title: title, Type: typ, ReleaseYear: year, Rating: "PG"},
	}
}

func TestCalculateContextRecall(t *testing.T) {
	m := NewMetricsCalculator()

	tests := []struct {
		name      string
		retrieved []string
		expected  []string
		want      float64
	}{
		{"nothing expected", []string{"Heat"}, nil, 1.0},
		{"all found, case-insensitive", []string{"heat", "Ronin"}, []string{"Heat", "RONIN"}, 1.0},
		{"half found", []string{"Heat"}, []string{"Heat", "Ronin"}, 0.5},
		{"none found", nil, []string{"Heat"}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateContextRecall(tt.retrieved, tt.expected)
			if got != tt.want {
				t.Errorf("recall = %v, want %v (%s)", got, tt.want, detail)
			}
		})
	}
}

func TestCalculateFaithfulness(t *testing.T) {
	m := NewMetricsCalculator()
	catalog := []string{"The Vault Job", "Orbit Station", "Up", "Kitchen Wars"}
	retrieved := []string{"The Vault Job"}

	tests := []struct {
		name        string
		explanation string
		forbidden   []string
		want        float64
	}{
		{"only retrieved titles", "The Vault Job is a tight heist film.", nil, 1.0},
		{"short titles are ignored", "It will cheer you up.", nil, 1.0},
		{"unretrieved title", "Try The Vault Job or Orbit Station.", nil, 0.5},
		{"forbidden term", "The Vault Job, rated NC-17.", []string{"NC-17"}, 0.5},
		{"both", "Kitchen Wars is NC-17.", []string{"nc-17"}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateFaithfulness(tt.explanation, retrieved, catalog, tt.forbidden)
			if got != tt.want {
				t.Errorf("faithfulness = %v, want %v (%s)", got, tt.want, detail)
			}
		})
	}
}

func TestCalculateFilterPrecision(t *testing.T) {
	m := NewMetricsCalculator()
	filter := GetNinetiesComedy().Filter()

	res := models.RetrievalResult{Items: []models.ScoredMovie{
		scored("In Range", models.TypeMovie, 1995),
		scored("Too New", models.TypeMovie, 2005),
	}}
	got, detail := m.CalculateFilterPrecision(res, filter)
	if got != 0.5 {
		t.Errorf("precision = %v, want 0.5", got)
	}
	if !strings.Contains(detail, "Too New") {
		t.Errorf("detail %q does not name the violating title", detail)
	}

	got, _ = m.CalculateFilterPrecision(models.RetrievalResult{}, filter)
	if got != 1.0 {
		t.Errorf("empty precision = %v, want 1.0", got)
	}
}

func TestEvaluateTest(t *testing.T) {
	m := NewMetricsCalculator()

	t.Run("pass", func(t *testing.T) {
		s := GetNinetiesComedy()
		s.GroundTruth.ExpectedTitles = []string{"Clerks Again"}
		ans := models.Answer{
			RewrittenQuery: "funny movie from the 90s",
			Results:        models.RetrievalResult{Items: []models.ScoredMovie{scored("Clerks Again", models.TypeMovie, 1994)}},
			Explanation:    "Clerks Again is a low-budget comedy.",
		}
		res := m.EvaluateTest(s, ans, []string{"Clerks Again"})
		if res.Status != "PASS" {
			t.Errorf("Status = %s, details %v", res.Status, res.Details)
		}
		if res.OverallScore != 1.0 {
			t.Errorf("OverallScore = %v, want 1.0", res.OverallScore)
		}
	})

	t.Run("expected empty but got results", func(t *testing.T) {
		s := GetImpossibleFilter()
		ans := models.Answer{
			Results:     models.RetrievalResult{Items: []models.ScoredMovie{scored("Stray", models.TypeMovie, 2001)}},
			Explanation: "Stray.",
		}
		res := m.EvaluateTest(s, ans, nil)
		if res.ContextRecallScore != 0 {
			t.Errorf("ContextRecallScore = %v, want 0", res.ContextRecallScore)
		}
		if res.Status != "FAIL" {
			t.Errorf("Status = %s, want FAIL", res.Status)
		}
	})

	t.Run("blank explanation fails", func(t *testing.T) {
		res := m.EvaluateTest(GetImpossibleFilter(), models.Answer{}, nil)
		if res.Status != "FAIL" {
			t.Errorf("Status = %s, want FAIL", res.Status)
		}
	})
}
