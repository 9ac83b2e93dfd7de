// ABOUTME: Benchmark scenario definitions for the movie recommender
// ABOUTME: Built-in scenarios plus loading extra ones from a JSON file
package ragas

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
)

// TestScenario is one conversation to run against the pipeline
type TestScenario struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Turns       []string        `json:"turns"`
	Criteria    models.Criteria `json:"criteria"`
	TopK        int             `json:"top_k,omitempty"`
	Purpose     core.Purpose    `json:"purpose,omitempty"`
	GroundTruth GroundTruth     `json:"ground_truth"`
}

// GroundTruth defines what the final turn should produce
type GroundTruth struct {
	// Titles that should appear among the retrieved results
	ExpectedTitles []string `json:"expected_titles,omitempty"`

	// Terms the explanation must not contain
	ForbiddenInExplanation []string `json:"forbidden_in_explanation,omitempty"`

	// The final turn should retrieve nothing
	ExpectEmpty bool `json:"expect_empty,omitempty"`
}

// Filter returns the scenario's metadata filter
func (s TestScenario) Filter() models.Filter {
	return s.Criteria.Filter()
}

// GetNinetiesComedy is a single-turn filtered request: every result must be
// a Movie released in the 1990s
func GetNinetiesComedy() TestScenario {
	return TestScenario{
		ID:          "1",
		Name:        "Funny movie from the 90s",
		Description: "Filtered retrieval on type and a year range with an empty history",
		Turns:       []string{"funny movie from the 90s"},
		Criteria:    models.Criteria{Type: models.TypeMovie, YearMin: 1990, YearMax: 1999},
		Purpose:     core.PurposeRecommendation,
	}
}

// GetImpossibleFilter asks for titles no collection contains; the pipeline
// must still answer with an explanation rather than fail
func GetImpossibleFilter() TestScenario {
	return TestScenario{
		ID:          "2",
		Name:        "No matching titles",
		Description: "NC-17 titles from 2050-2060 do not exist; expect an empty result and an apology",
		Turns:       []string{"a thriller"},
		Criteria:    models.Criteria{Rating: "NC-17", YearMin: 2050, YearMax: 2060},
		GroundTruth: GroundTruth{ExpectEmpty: true},
	}
}

// GetFollowUp checks that a follow-up is rewritten with the earlier turn so
// the filter on the second turn still yields relevant titles
func GetFollowUp() TestScenario {
	return TestScenario{
		ID:          "3",
		Name:        "Follow-up question",
		Description: "A vague second turn that only makes sense with the first",
		Turns: []string{
			"movies about a bank heist",
			"any older ones from the 80s?",
		},
		Criteria: models.Criteria{Type: models.TypeMovie, YearMin: 1980, YearMax: 1989},
	}
}

// BuiltinScenarios returns every built-in scenario in ID order
func BuiltinScenarios() []TestScenario {
	return []TestScenario{
		GetNinetiesComedy(),
		GetImpossibleFilter(),
		GetFollowUp(),
	}
}

// LoadScenarios reads a JSON array of scenarios
func LoadScenarios(path string) ([]TestScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	var scenarios []TestScenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	for i, s := range scenarios {
		if s.ID == "" || len(s.Turns) == 0 {
			return nil, fmt.Errorf("scenario %d needs an id and at least one turn", i)
		}
	}
	return scenarios, nil
}
