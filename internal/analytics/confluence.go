package analytics

import "math"

// Confluence weights for the Level/Trend/Patience composite. Methodology
// constants — do not tune without domain sign-off.
const (
	weightLevel    = 0.35
	weightTrend    = 0.40
	weightPatience = 0.25
)

// Confluence combines the three sub-scores (each 0–100) into the 0–100
// composite grade. Pure and deterministic: identical inputs always yield
// the identical score and grade — downstream coaching gates on this.
func Confluence(levelScore, trendScore, patienceScore float64) (score int, grade string) {
	raw := weightLevel*clampScore(levelScore) +
		weightTrend*clampScore(trendScore) +
		weightPatience*clampScore(patienceScore)
	score = int(math.Round(raw))
	return score, GradeFor(score)
}

// GradeFor maps a confluence score to its letter grade.
// Boundaries are exact: 90 ⇒ A+, 89 ⇒ A, 50 ⇒ D, 49 ⇒ F.
func GradeFor(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// SetupQuality is the human label for a grade.
func SetupQuality(grade string) string {
	switch grade {
	case "A+":
		return "exceptional"
	case "A":
		return "excellent"
	case "B":
		return "good"
	case "C":
		return "average"
	case "D":
		return "below average"
	default:
		return "poor"
	}
}

// Recommendation renders the action line for a grade and trend bias.
func Recommendation(grade, bias string) string {
	switch grade {
	case "A+", "A":
		if bias == "neutral" {
			return "Strong confluence but no directional bias — wait for a clear trend."
		}
		return "High-quality setup — size appropriately and honor your stop."
	case "B":
		return "Decent setup — acceptable with reduced size."
	case "C":
		return "Marginal setup — only take with additional confirmation."
	default:
		return "Setup does not meet the playbook — stand aside."
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
