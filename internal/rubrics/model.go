package rubrics

import "time"

// Evaluation kinds supported by rubric items.
const (
	KindYesNo        = "yes_no"
	KindRange        = "range"
	KindComments     = "comments"
	KindCodeExamples = "code_examples"
	KindOptions      = "options"
)

// Rubric is a named, ordered set of evaluation criteria.
type Rubric struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsTemplate  bool      `json:"isTemplate"`
	Items       []Item    `json:"items,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Item is one scored criterion with a fixed evaluation kind.
type Item struct {
	ID             string     `json:"id"`
	RubricID       string     `json:"rubricId"`
	Position       int        `json:"position"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	EvaluationKind string     `json:"evaluationKind"`
	Config         ItemConfig `json:"config"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ItemConfig holds kind-specific scoring configuration. Only the fields
// relevant to the item's evaluation kind are populated.
type ItemConfig struct {
	// yes_no
	RequireJustification bool `json:"requireJustification,omitempty"`
	// range
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Guidance string   `json:"guidance,omitempty"`
	// code_examples
	MaxExamples *int `json:"maxExamples,omitempty"`
	// options
	Options       []string `json:"options,omitempty"`
	AllowMultiple bool     `json:"allowMultiple,omitempty"`
	MaxSelections *int     `json:"maxSelections,omitempty"`
}

// RangeBounds returns the configured min/max with the 0/100 defaults applied.
func (c ItemConfig) RangeBounds() (float64, float64) {
	min, max := 0.0, 100.0
	if c.Min != nil {
		min = *c.Min
	}
	if c.Max != nil {
		max = *c.Max
	}
	return min, max
}
