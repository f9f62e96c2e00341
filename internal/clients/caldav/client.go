// Package caldav publishes reminder and birthday events to a CalDAV
// calendar (iCloud by default).
package caldav

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"

	ProductID = "-//FamilyReminders//CalDAV//RU"

	dateTimeLayout = "20060102T150405Z"
	dateLayout     = "20060102"
)

type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	httpClient   *http.Client
	client       *caldav.Client
}

func NewClient(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Transport: &basicAuthTransport{username: username, password: password},
			Timeout:   30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c != nil && c.username != "" && c.password != ""
}

func (c *Client) SetCalendarPath(path string) {
	c.calendarPath = path
}

func (c *Client) CalendarPath() string {
	return c.calendarPath
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	client, err := caldav.NewClient(c.httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}
	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// DiscoverCalendars lists the calendars in the user's home set.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
			Description: cal.Description,
		})
	}
	return result, nil
}

func (c *Client) eventPath(uid string) (string, error) {
	if c.calendarPath == "" {
		return "", fmt.Errorf("calendar path not specified")
	}
	p := c.calendarPath
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p + uid + ".ics", nil
}

// PutEvent creates or replaces the event with the same UID.
func (c *Client) PutEvent(ctx context.Context, event *Event) error {
	if event.UID == "" {
		return fmt.Errorf("event UID is required")
	}
	path, err := c.eventPath(event.UID)
	if err != nil {
		return err
	}
	client, err := c.connect()
	if err != nil {
		return err
	}
	if _, err := client.PutCalendarObject(ctx, path, BuildCalendar(event, time.Now())); err != nil {
		return fmt.Errorf("put event %s: %w", event.UID, err)
	}
	return nil
}

// DeleteEvent removes an event by UID.
func (c *Client) DeleteEvent(ctx context.Context, uid string) error {
	path, err := c.eventPath(uid)
	if err != nil {
		return err
	}
	client, err := c.connect()
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("delete event %s: %w", uid, err)
	}
	return nil
}

// ListEventUIDs returns the UIDs of the events in the calendar whose UID
// has the given suffix, so foreign events are left alone.
func (c *Client) ListEventUIDs(ctx context.Context, suffix string) ([]string, error) {
	if c.calendarPath == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:  ical.CompEvent,
				Props: []string{ical.PropUID},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}
	objects, err := client.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var uids []string
	for _, obj := range objects {
		if uid := eventUID(obj.Data); uid != "" && strings.HasSuffix(uid, suffix) {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func eventUID(cal *ical.Calendar) string {
	if cal == nil {
		return ""
	}
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			return prop.Value
		}
	}
	return ""
}

// BuildCalendar renders event as a VCALENDAR with one VEVENT.
func BuildCalendar(event *Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if len(event.Categories) > 0 {
		vevent.Props.SetText(ical.PropCategories, strings.Join(event.Categories, ","))
	}

	if event.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, event.Start)
		if event.Duration > 0 {
			vevent.Props.SetDate(ical.PropDateTimeEnd, event.Start.Add(event.Duration))
		}
	} else {
		// UTC with the Z suffix, no VTIMEZONE needed
		vevent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
		if event.Duration > 0 {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.Start.Add(event.Duration).UTC())
		}
	}

	// RRULE and RDATE values are structured; SetText would escape ; and ,
	if event.RRule != "" {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = event.RRule
		vevent.Props.Set(prop)
	}
	if len(event.RDates) > 0 {
		vevent.Props.Add(rdateProp(event.RDates, event.AllDay))
	}

	for _, before := range event.Alarms {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, event.Summary)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = formatTrigger(before)
		alarm.Props.Set(trigger)
		vevent.Children = append(vevent.Children, alarm)
	}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

func rdateProp(dates []time.Time, allDay bool) *ical.Prop {
	prop := ical.NewProp(ical.PropRecurrenceDates)
	values := make([]string, 0, len(dates))
	for _, d := range dates {
		if allDay {
			values = append(values, d.Format(dateLayout))
		} else {
			values = append(values, d.UTC().Format(dateTimeLayout))
		}
	}
	if allDay {
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
	}
	prop.Value = strings.Join(values, ",")
	return prop
}

// formatTrigger renders a VALARM offset before the event, e.g. -PT15M.
func formatTrigger(before time.Duration) string {
	if before <= 0 {
		return "PT0S"
	}
	minutes := int(before / time.Minute)
	if minutes%(24*60) == 0 {
		return fmt.Sprintf("-P%dD", minutes/(24*60))
	}
	return fmt.Sprintf("-PT%dM", minutes)
}

// Encode serializes a calendar to its text form.
func Encode(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", err
	}
	return buf.String(), nil
}
