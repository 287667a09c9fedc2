package categorization

// DefaultPatternGroups is the built-in rule table. Group order and pattern
// order within a group decide which pattern wins when several match.
func DefaultPatternGroups() []PatternGroup {
	return []PatternGroup{
		{
			CategoryName: "groceries",
			Confidence:   0.9,
			Patterns: []string{
				"walmart", "superstore", "loblaws", "metro",
				"sobeys", "whole foods", "costco", "no frills",
			},
		},
		{
			CategoryName: "dining out",
			Confidence:   0.85,
			Patterns: []string{
				"mcdonalds", "starbucks", "tim hortons", "subway",
				"pizza", "restaurant", "bistro", "cafe",
			},
		},
		{
			CategoryName: "transportation",
			Confidence:   0.8,
			Patterns: []string{
				"shell", "esso", "petro", "gas", "uber",
				"lyft", "taxi", "ttc", "go transit",
			},
		},
		{
			CategoryName: "entertainment",
			Confidence:   0.85,
			Patterns: []string{
				"netflix", "spotify", "amazon prime", "disney",
				"cinema", "movie", "theatre",
			},
		},
		{
			CategoryName: "utilities",
			Confidence:   0.9,
			Patterns: []string{
				"hydro", "rogers", "bell", "telus", "enbridge", "toronto hydro",
			},
		},
		{
			CategoryName: "healthcare",
			Confidence:   0.8,
			Patterns: []string{
				"pharmacy", "shoppers", "medical", "dental", "clinic", "hospital",
			},
		},
	}
}

// Thresholds are the published confidence cut-offs.
type Thresholds struct {
	High   float64 `json:"high"`   // assign automatically
	Medium float64 `json:"medium"` // suggest
	Low    float64 `json:"low"`    // flag for review
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Medium: 0.6, Low: 0.3}
}

// Action is what the caller should do with a categorization verdict.
type Action string

const (
	ActionAutoAssign Action = "auto"
	ActionSuggest    Action = "suggest"
	ActionReview     Action = "review"
)

// Policy maps a confidence onto an action using t.
func (t Thresholds) Policy(confidence float64) Action {
	switch {
	case confidence >= t.High:
		return ActionAutoAssign
	case confidence >= t.Medium:
		return ActionSuggest
	default:
		return ActionReview
	}
}

// Policy maps a confidence onto an action using the default thresholds.
func Policy(confidence float64) Action {
	return DefaultThresholds().Policy(confidence)
}
