package domain

import (
	"fmt"
	"strings"
	"time"
)

// MonthDay is a yearly recurring calendar day.
type MonthDay struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

func (md MonthDay) Valid() bool {
	if md.Month < time.January || md.Month > time.December || md.Day < 1 {
		return false
	}
	// 2000 is a leap year, so Feb 29 is accepted.
	return md.Day <= time.Date(2000, md.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// In returns the date of md in the given year. Feb 29 in a non-leap year
// becomes Mar 1.
func (md MonthDay) In(year int) Date {
	return NewDate(year, md.Month, md.Day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d.%02d", md.Day, int(md.Month))
}

// Birthday represents a person's birthday with its notification settings.
type Birthday struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Date             MonthDay  `json:"date"`
	BirthYear        int       `json:"birthYear,omitempty"` // 0 if unknown
	NotifyDaysBefore int       `json:"notificationDaysBefore"`
	Notes            string    `json:"notes,omitempty"`
	TriggerIDs       []string  `json:"triggerIds,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (b *Birthday) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("имя не может быть пустым")
	}
	if !b.Date.Valid() {
		return fmt.Errorf("invalid birthday date: %s", b.Date)
	}
	if b.NotifyDaysBefore < 0 {
		return fmt.Errorf("notification days before cannot be negative")
	}
	return nil
}

// NextOccurrence returns this year's birthday, or next year's if it has
// already passed. A birthday falling on today is not rolled forward.
func (b *Birthday) NextOccurrence(today Date) Date {
	occ := b.Date.In(today.Year())
	if occ.Before(today) {
		occ = b.Date.In(today.Year() + 1)
	}
	return occ
}

// DaysUntil returns days until next birthday
func (b *Birthday) DaysUntil(today Date) int {
	return b.NextOccurrence(today).DaysSince(today)
}

// AgeAt returns the age the person turns at the next occurrence,
// or 0 if the birth year is unknown.
func (b *Birthday) AgeAt(today Date) int {
	if b.BirthYear <= 0 {
		return 0
	}
	return b.NextOccurrence(today).Year() - b.BirthYear
}
