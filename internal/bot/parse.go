package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/service"
)

var intervalToken = regexp.MustCompile(`^(\d+)д$`)

const userDateLayout = "02.01.2006"

// parseReminderArgs reads "[rule] HH:MM[,HH:MM] title" where rule is one of
//
//	3д                    every 3 days starting today
//	пн,ср,пт              weekly
//	08.03.2025,09.05.2025 specific dates
//
// and is daily when omitted.
func parseReminderArgs(kind domain.ReminderKind, args string) (service.ReminderInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return service.ReminderInput{}, fmt.Errorf("нужно время и текст")
	}

	var rule domain.Rule = domain.DailyRule{}
	if _, err := parseTimes(fields[0]); err != nil {
		r, err := parseRule(fields[0])
		if err != nil {
			return service.ReminderInput{}, err
		}
		rule = r
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return service.ReminderInput{}, fmt.Errorf("нужно время и текст")
	}

	times, err := parseTimes(fields[0])
	if err != nil {
		return service.ReminderInput{}, err
	}

	return service.ReminderInput{
		Kind:  kind,
		Title: strings.Join(fields[1:], " "),
		Times: times,
		Rule:  rule,
	}, nil
}

func parseTimes(s string) ([]domain.TimeOfDay, error) {
	var out []domain.TimeOfDay
	for _, part := range strings.Split(s, ",") {
		if !strings.Contains(part, ":") {
			return nil, fmt.Errorf("неверное время: %s", part)
		}
		tod, err := domain.ParseTimeOfDay(part)
		if err != nil {
			return nil, err
		}
		out = append(out, tod)
	}
	return out, nil
}

func parseRule(token string) (domain.Rule, error) {
	token = strings.ToLower(token)

	if m := intervalToken.FindStringSubmatch(token); m != nil {
		every, _ := strconv.Atoi(m[1])
		// The service anchors the rule at today's date.
		return domain.NewIntervalRule(every, domain.Date{})
	}

	parts := strings.Split(token, ",")
	if strings.Contains(parts[0], ".") {
		dates := make([]domain.Date, 0, len(parts))
		for _, p := range parts {
			t, err := time.Parse(userDateLayout, p)
			if err != nil {
				return nil, fmt.Errorf("неверная дата: %s", p)
			}
			dates = append(dates, domain.DateOf(t))
		}
		return domain.NewSpecificDatesRule(dates...)
	}

	days := make([]domain.Weekday, 0, len(parts))
	for _, p := range parts {
		d, err := domain.ParseWeekday(p)
		if err != nil {
			return nil, fmt.Errorf("неизвестное правило: %s", token)
		}
		days = append(days, d)
	}
	return domain.NewWeeklyRule(days...)
}

// parsePeriodArgs reads "[ДД.ММ.ГГГГ] [дней]". The date defaults to today.
func parsePeriodArgs(args string, today domain.Date) (domain.Date, *int, error) {
	start := today
	var length *int
	for _, f := range strings.Fields(args) {
		if strings.Contains(f, ".") {
			t, err := time.Parse(userDateLayout, f)
			if err != nil {
				return domain.Date{}, nil, fmt.Errorf("неверная дата: %s", f)
			}
			start = domain.DateOf(t)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return domain.Date{}, nil, fmt.Errorf("неверная длительность: %s", f)
		}
		length = &n
	}
	return start, length, nil
}
