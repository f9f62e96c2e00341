package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/internal/domain"
)

// BirthdayTimes are the wall-clock times of the three birthday triggers.
type BirthdayTimes struct {
	Advance      domain.TimeOfDay `yaml:"advance"`      // N days before
	Midnight     domain.TimeOfDay `yaml:"midnight"`     // on the day, right after midnight
	Congratulate domain.TimeOfDay `yaml:"congratulate"` // on the day, morning
}

var DefaultBirthdayTimes = BirthdayTimes{
	Advance:      domain.TimeOfDay{Hour: 9, Minute: 0},
	Midnight:     domain.TimeOfDay{Hour: 0, Minute: 1},
	Congratulate: domain.TimeOfDay{Hour: 9, Minute: 0},
}

// PlanBirthday returns the three one-shot triggers for the next occurrence
// of b: the advance notice NotifyDaysBefore days earlier, the midnight
// "today" notice and the morning "congratulate" notice. Instants at or
// before now are left out.
//
// The occurrence rolls to next year only once the birthday date itself has
// passed, so the plan goes stale after each birthday and has to be rebuilt.
func (p *Planner) PlanBirthday(b *domain.Birthday, now time.Time) []PlannedTrigger {
	loc := p.location()
	today := p.enum.Today(now)
	occ := b.NextOccurrence(today)
	payload := map[string]string{"type": "birthday", "id": b.ID, "date": occ.String()}

	candidates := []PlannedTrigger{
		{
			Notification: Notification{
				Title:   "🎂 Скоро день рождения",
				Body:    fmt.Sprintf("До дня рождения %s осталось %d дн.", b.Name, b.NotifyDaysBefore),
				Payload: payload,
			},
			OneShot: true,
			At:      occ.AddDays(-b.NotifyDaysBefore).At(p.birthday.Advance, loc),
		},
		{
			Notification: Notification{
				Title:   "🎉 День рождения",
				Body:    fmt.Sprintf("Сегодня день рождения %s!", b.Name),
				Payload: payload,
			},
			OneShot: true,
			At:      occ.At(p.birthday.Midnight, loc),
		},
		{
			Notification: Notification{
				Title:   "🎁 Не забудь поздравить",
				Body:    fmt.Sprintf("Не забудь поздравить %s!", b.Name),
				Payload: payload,
			},
			OneShot: true,
			At:      occ.At(p.birthday.Congratulate, loc),
		},
	}

	out := make([]PlannedTrigger, 0, len(candidates))
	for _, c := range candidates {
		if c.At.After(now) {
			out = append(out, c)
		}
	}
	return out
}

// ScheduleBirthday cancels the stored triggers of b and schedules the
// current plan, storing the new handles on b.
func (p *Planner) ScheduleBirthday(ctx context.Context, b *domain.Birthday, now time.Time) (Report, error) {
	if err := b.Validate(); err != nil {
		return Report{}, err
	}
	if err := p.Cancel(ctx, b.TriggerIDs); err != nil {
		return Report{}, fmt.Errorf("cancel previous triggers: %w", err)
	}
	b.TriggerIDs = nil

	ids, report := p.submit(ctx, p.PlanBirthday(b, now))
	b.TriggerIDs = ids

	p.log.WithFields(logrus.Fields{
		"birthday":  b.ID,
		"scheduled": report.Scheduled,
		"failed":    report.Failed,
	}).Debug("birthday scheduled")

	return report, report.Err()
}
