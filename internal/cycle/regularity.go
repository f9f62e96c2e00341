package cycle

import (
	"math"

	"github.com/samber/mo"
	"github.com/tazhate/familyreminders/internal/domain"
)

// regularitySpread is the standard deviation (days) at which the score
// reaches zero.
const regularitySpread = 7.0

// CalculateCycleRegularity scores how consistent the recorded cycle lengths
// are, 0..100. It needs at least two records with a cycle length.
func CalculateCycleRegularity(records []domain.CycleRecord) mo.Option[int] {
	lengths := make([]float64, 0, len(records))
	for _, r := range records {
		if r.CycleLength != nil {
			lengths = append(lengths, float64(*r.CycleLength))
		}
	}
	if len(lengths) < 2 {
		return mo.None[int]()
	}

	sigma := populationStdDev(lengths)
	score := int(math.Round(100 * (1 - sigma/regularitySpread)))
	return mo.Some(clamp(score, 0, 100))
}

// RegularityLabel returns Russian description for a score
func RegularityLabel(score int) string {
	switch {
	case score >= 85:
		return "очень регулярный"
	case score >= 70:
		return "регулярный"
	case score >= 50:
		return "умеренно нерегулярный"
	default:
		return "нерегулярный"
	}
}

func populationStdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
