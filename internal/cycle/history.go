package cycle

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/mo"
	"github.com/tazhate/familyreminders/internal/domain"
)

// AddPeriodStart inserts a new record, fills in the retroactive cycle
// length of its predecessor and recomputes the averages.
// periodLength may be nil when not known yet.
func AddPeriodStart(h *domain.CycleHistory, id string, start domain.Date, periodLength *int) (*domain.CycleRecord, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("period start date is required")
	}
	for _, r := range h.Records {
		if r.StartDate.Equal(start) {
			return nil, fmt.Errorf("period starting %s already recorded", start)
		}
	}
	if periodLength != nil && !domain.ValidPeriodLength(*periodLength) {
		return nil, fmt.Errorf("period length must be between %d and %d days", domain.MinPeriodLength, domain.MaxPeriodLength)
	}

	h.Records = append(h.Records, domain.CycleRecord{
		ID:           id,
		StartDate:    start,
		PeriodLength: periodLength,
	})
	Recompute(h)

	for i := range h.Records {
		if h.Records[i].ID == id {
			return &h.Records[i], nil
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

// SetPeriodLength updates the bleeding length of a record.
func SetPeriodLength(h *domain.CycleHistory, id string, days int) error {
	if !domain.ValidPeriodLength(days) {
		return fmt.Errorf("period length must be between %d and %d days", domain.MinPeriodLength, domain.MaxPeriodLength)
	}
	for i := range h.Records {
		if h.Records[i].ID == id {
			n := days
			h.Records[i].PeriodLength = &n
			Recompute(h)
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

// RemoveRecord deletes a record and recomputes derived fields.
func RemoveRecord(h *domain.CycleHistory, id string) error {
	for i := range h.Records {
		if h.Records[i].ID == id {
			h.Records = append(h.Records[:i], h.Records[i+1:]...)
			Recompute(h)
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

// Recompute sorts the records, derives every cycle length from consecutive
// starts and refreshes both averages.
//
// A cycle length is stored when it lies in [21,45] and counts towards the
// average only in [21,35]. Period lengths count in [3,10]. When nothing
// qualifies the defaults (28 and 5) are used.
func Recompute(h *domain.CycleHistory) {
	sort.SliceStable(h.Records, func(i, j int) bool {
		return h.Records[i].StartDate.Before(h.Records[j].StartDate)
	})

	for i := range h.Records {
		h.Records[i].CycleLength = nil
		if i+1 >= len(h.Records) {
			continue
		}
		n := h.Records[i+1].StartDate.DaysSince(h.Records[i].StartDate)
		if domain.ValidStoredCycleLength(n) {
			h.Records[i].CycleLength = &n
		}
	}

	var cycles, periods []int
	for _, r := range h.Records {
		if r.CycleLength != nil && domain.ValidAveragedCycleLength(*r.CycleLength) {
			cycles = append(cycles, *r.CycleLength)
		}
		if r.PeriodLength != nil && domain.ValidPeriodLength(*r.PeriodLength) {
			periods = append(periods, *r.PeriodLength)
		}
	}

	h.AverageCycleLength = roundedMean(cycles).OrElse(domain.DefaultCycleLength)
	h.AveragePeriodLength = roundedMean(periods).OrElse(domain.DefaultPeriodLength)
}

func roundedMean(values []int) mo.Option[int] {
	if len(values) == 0 {
		return mo.None[int]()
	}
	var total int
	for _, v := range values {
		total += v
	}
	return mo.Some(int(math.Round(float64(total) / float64(len(values)))))
}

// Summary is everything the tracking screen shows for one day.
type Summary struct {
	Today               domain.Date    `json:"today"`
	HasData             bool           `json:"hasData"`
	LastPeriodStart     domain.Date    `json:"lastPeriodStart"`
	NextPeriod          domain.Date    `json:"nextPeriod"`
	DaysUntilNextPeriod int            `json:"daysUntilNextPeriod"`
	FertileWindow       FertileWindow  `json:"fertileWindow"`
	Phase               domain.Phase   `json:"phase"`
	AverageCycleLength  int            `json:"averageCycleLength"`
	AveragePeriodLength int            `json:"averagePeriodLength"`
	Regularity          mo.Option[int] `json:"regularity"`
}

// Summarize builds the Summary for today. With no records the phase is None.
func Summarize(h *domain.CycleHistory, today domain.Date) Summary {
	s := Summary{
		Today:               today,
		Phase:               domain.Phase{Kind: domain.PhaseNone},
		AverageCycleLength:  h.AverageCycleLength,
		AveragePeriodLength: h.AveragePeriodLength,
		Regularity:          CalculateCycleRegularity(h.Records),
	}
	if s.AverageCycleLength <= 0 {
		s.AverageCycleLength = domain.DefaultCycleLength
	}
	if s.AveragePeriodLength <= 0 {
		s.AveragePeriodLength = domain.DefaultPeriodLength
	}

	last, ok := h.LastPeriodStart()
	if !ok {
		return s
	}

	s.HasData = true
	s.LastPeriodStart = last
	s.NextPeriod = PredictNextPeriod(last, s.AverageCycleLength)
	s.DaysUntilNextPeriod = s.NextPeriod.DaysSince(today)
	s.FertileWindow = CalculateFertileWindow(s.NextPeriod)
	s.Phase = GetCurrentPhase(last, s.AverageCycleLength, s.AveragePeriodLength, today)
	return s
}
