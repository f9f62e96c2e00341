// Package cycle predicts menstrual cycle dates and classifies days into
// cycle phases from the recorded history.
package cycle

import "github.com/tazhate/familyreminders/internal/domain"

// LutealPhaseDays is the assumed distance from ovulation to the next period.
const LutealPhaseDays = 14

// FertileWindow is the predicted ovulation day with the surrounding
// fertile days, both ends inclusive.
type FertileWindow struct {
	Ovulation domain.Date `json:"ovulation"`
	Start     domain.Date `json:"start"`
	End       domain.Date `json:"end"`
}

// Contains reports whether d falls inside the window.
func (w FertileWindow) Contains(d domain.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// PredictNextPeriod returns lastStart + avgCycle days.
func PredictNextPeriod(lastStart domain.Date, avgCycle int) domain.Date {
	return lastStart.AddDays(avgCycle)
}

// CalculateFertileWindow returns ovulation at nextPeriod-14 and the window
// [ovulation-5, ovulation+1].
//
// The window is deliberately wider than the ±2 day ovulation band used by
// GetCurrentPhase; the two answer different questions and are kept apart.
func CalculateFertileWindow(nextPeriod domain.Date) FertileWindow {
	ovulation := nextPeriod.AddDays(-LutealPhaseDays)
	return FertileWindow{
		Ovulation: ovulation,
		Start:     ovulation.AddDays(-5),
		End:       ovulation.AddDays(1),
	}
}

// GetCurrentPhase classifies today relative to the cycle starting at
// lastStart. Day 1 is the first day of bleeding. Bands are checked in order
// and their boundaries are exact:
//
//	day < 1                         Future
//	1 <= day <= avgPeriod           Menstruation
//	avgPeriod < day < ov-2          Follicular
//	ov-2 <= day <= ov+2             Ovulation
//	ov+2 < day <= avgCycle          Luteal
//	avgCycle < day <= avgCycle+7    Late
//	day > avgCycle+7                VeryLate
//
// where ov = avgCycle - 14.
func GetCurrentPhase(lastStart domain.Date, avgCycle, avgPeriod int, today domain.Date) domain.Phase {
	day := today.DaysSince(lastStart) + 1
	ovulationDay := avgCycle - LutealPhaseDays

	switch {
	case day < 1:
		return domain.Phase{Kind: domain.PhaseFuture}
	case day <= avgPeriod:
		return domain.Phase{Kind: domain.PhaseMenstruation, DayOfCycle: day}
	case day < ovulationDay-2:
		return domain.Phase{Kind: domain.PhaseFollicular, DayOfCycle: day}
	case day <= ovulationDay+2:
		return domain.Phase{Kind: domain.PhaseOvulation, DayOfCycle: day}
	case day <= avgCycle:
		return domain.Phase{Kind: domain.PhaseLuteal, DayOfCycle: day}
	case day <= avgCycle+7:
		return domain.Phase{Kind: domain.PhaseLate, DayOfCycle: day, DaysLate: day - avgCycle}
	default:
		return domain.Phase{Kind: domain.PhaseVeryLate, DayOfCycle: day}
	}
}
