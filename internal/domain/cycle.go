package domain

const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5

	// Bounds for a value to be stored on a record.
	MinStoredCycleLength = 21
	MaxStoredCycleLength = 45
	MinPeriodLength      = 3
	MaxPeriodLength      = 10

	// Bounds for a cycle length to count towards the running average.
	// Tighter than the storage bounds on purpose: long cycles are kept on
	// record but do not move the prediction.
	MinAveragedCycleLength = 21
	MaxAveragedCycleLength = 35
)

// CycleRecord is one period start. CycleLength is filled in retroactively
// once the next period is logged.
type CycleRecord struct {
	ID           string `json:"id"`
	StartDate    Date   `json:"startDate"`
	PeriodLength *int   `json:"periodLength"`
	CycleLength  *int   `json:"cycleLength"`
}

// CycleHistory is the menstrual tracking state. Records are ordered by
// StartDate.
type CycleHistory struct {
	Records             []CycleRecord `json:"records"`
	AverageCycleLength  int           `json:"averageCycleLength"`
	AveragePeriodLength int           `json:"averagePeriodLength"`
}

// NewCycleHistory returns an empty history with default averages.
func NewCycleHistory() *CycleHistory {
	return &CycleHistory{
		AverageCycleLength:  DefaultCycleLength,
		AveragePeriodLength: DefaultPeriodLength,
	}
}

// LastPeriodStart is derived from the latest record.
func (h *CycleHistory) LastPeriodStart() (Date, bool) {
	if h == nil || len(h.Records) == 0 {
		return Date{}, false
	}
	return h.Records[len(h.Records)-1].StartDate, true
}

func ValidStoredCycleLength(n int) bool {
	return n >= MinStoredCycleLength && n <= MaxStoredCycleLength
}

func ValidAveragedCycleLength(n int) bool {
	return n >= MinAveragedCycleLength && n <= MaxAveragedCycleLength
}

func ValidPeriodLength(n int) bool {
	return n >= MinPeriodLength && n <= MaxPeriodLength
}

type PhaseKind string

const (
	PhaseNone         PhaseKind = "none"
	PhaseFuture       PhaseKind = "future"
	PhaseMenstruation PhaseKind = "menstruation"
	PhaseFollicular   PhaseKind = "follicular"
	PhaseOvulation    PhaseKind = "ovulation"
	PhaseLuteal       PhaseKind = "luteal"
	PhaseLate         PhaseKind = "late"
	PhaseVeryLate     PhaseKind = "very_late"
)

// Phase is the position of a day inside the predicted cycle.
// DayOfCycle is set for every kind except None and Future;
// DaysLate only for Late.
type Phase struct {
	Kind       PhaseKind `json:"kind"`
	DayOfCycle int       `json:"dayOfCycle,omitempty"`
	DaysLate   int       `json:"daysLate,omitempty"`
}

// PhaseName returns Russian name for the phase
func PhaseName(k PhaseKind) string {
	switch k {
	case PhaseFuture:
		return "ещё не началась"
	case PhaseMenstruation:
		return "менструация"
	case PhaseFollicular:
		return "фолликулярная фаза"
	case PhaseOvulation:
		return "овуляция"
	case PhaseLuteal:
		return "лютеиновая фаза"
	case PhaseLate:
		return "задержка"
	case PhaseVeryLate:
		return "большая задержка"
	default:
		return "нет данных"
	}
}
