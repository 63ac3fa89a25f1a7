package query

// Load classifies how much attention a full-context response demands,
// letting the client decide whether to render everything at once or stage
// the disclosure.
type Load string

// Cognitive load levels.
const (
	LoadLow    Load = "low"
	LoadMedium Load = "medium"
	LoadHigh   Load = "high"
)

// Thresholds feeding the classification. Text lengths are rune-agnostic
// byte counts; hop spread is the maximum undirected distance across the
// reachable network (directed distance carries no extra weight — see
// DESIGN.md).
const (
	loadRelsMedium = 2
	loadRelsHigh   = 5
	loadTextMedium = 600
	loadTextHigh   = 2000
	loadHopsMedium = 2
	loadHopsHigh   = 3
)

// Classify derives a load level from the direct relationship count, the
// combined text length of the decision, and the hop-distance spread of
// its network.
func Classify(relationships, textLen, hopSpread int) Load {
	score := 0
	switch {
	case relationships >= loadRelsHigh:
		score += 2
	case relationships >= loadRelsMedium:
		score++
	}
	switch {
	case textLen >= loadTextHigh:
		score += 2
	case textLen >= loadTextMedium:
		score++
	}
	switch {
	case hopSpread >= loadHopsHigh:
		score += 2
	case hopSpread >= loadHopsMedium:
		score++
	}

	switch {
	case score >= 4:
		return LoadHigh
	case score >= 2:
		return LoadMedium
	}
	return LoadLow
}
