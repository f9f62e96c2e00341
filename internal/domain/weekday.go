package domain

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a day of the week with Monday = 0 ... Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Valid reports whether the weekday index is within 0..6.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// TimeWeekday converts to time.Weekday (Sunday = 0).
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayFromTime converts from time.Weekday (Sunday = 0).
func WeekdayFromTime(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

func (d Weekday) String() string {
	return WeekdayNameShort(d)
}

// WeekdayName returns Russian name for the weekday
func WeekdayName(d Weekday) string {
	names := []string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}
	if d.Valid() {
		return names[d]
	}
	return ""
}

// WeekdayNameShort returns short Russian name for the weekday
func WeekdayNameShort(d Weekday) string {
	names := []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}
	if d.Valid() {
		return names[d]
	}
	return ""
}

// ParseWeekday parses Russian weekday name
func ParseWeekday(s string) (Weekday, error) {
	mapping := map[string]Weekday{
		"пн": Monday, "понедельник": Monday,
		"вт": Tuesday, "вторник": Tuesday,
		"ср": Wednesday, "среда": Wednesday,
		"чт": Thursday, "четверг": Thursday,
		"пт": Friday, "пятница": Friday,
		"сб": Saturday, "суббота": Saturday,
		"вс": Sunday, "воскресенье": Sunday,
	}

	if d, ok := mapping[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday: %s", s)
}
