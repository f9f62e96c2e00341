// Package repository keeps the reminder, birthday and cycle collections in
// memory and writes them through to a key/value store.
//
// All reads and writes go through one mutex, so there is a single writer per
// process. A failed write is reported as domain.ErrPersistence while the
// in-memory state keeps the change; nothing retries it automatically, the
// next successful mutation of the same collection persists it.
package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/storage"
)

// Store is the persistence backend. *storage.Storage implements it.
type Store interface {
	Get(key string) (mo.Option[[]byte], error)
	Set(key string, value []byte) error
}

type Repository struct {
	mu    sync.Mutex
	store Store
	log   *logrus.Entry

	reminders map[domain.ReminderKind][]domain.Reminder
	birthdays []domain.Birthday
	cycle     *domain.CycleHistory
	loaded    map[string]bool

	// unreadable holds stored items that failed to decode. They are written
	// back unchanged so a newer or damaged record is never lost.
	unreadable map[domain.ReminderKind][]json.RawMessage
}

func New(store Store, logger *logrus.Logger) *Repository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Repository{
		store:      store,
		log:        logger.WithField("component", "repository"),
		reminders:  map[domain.ReminderKind][]domain.Reminder{},
		unreadable: map[domain.ReminderKind][]json.RawMessage{},
		loaded:     map[string]bool{},
	}
}

// ReminderKey returns the storage key of a reminder collection.
func ReminderKey(kind domain.ReminderKind) (string, error) {
	switch kind {
	case domain.KindReminder:
		return storage.KeyReminders, nil
	case domain.KindMedication:
		return storage.KeyMedications, nil
	case domain.KindCustom:
		return storage.KeyCustomReminders, nil
	}
	return "", fmt.Errorf("unknown reminder kind %q", kind)
}

func (r *Repository) read(key string) (mo.Option[[]byte], error) {
	v, err := r.store.Get(key)
	if err != nil {
		return mo.None[[]byte](), fmt.Errorf("load %s: %w: %v", key, domain.ErrPersistence, err)
	}
	return v, nil
}

func (r *Repository) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(key, data); err != nil {
		r.log.WithError(err).WithField("key", key).Error("write failed, keeping in-memory state")
		return fmt.Errorf("save %s: %w: %v", key, domain.ErrPersistence, err)
	}
	return nil
}

// === Reminders ===

func (r *Repository) loadReminders(kind domain.ReminderKind) (string, error) {
	key, err := ReminderKey(kind)
	if err != nil {
		return "", err
	}
	if r.loaded[key] {
		return key, nil
	}
	raw, err := r.read(key)
	if err != nil {
		return "", err
	}

	var (
		list    []domain.Reminder
		skipped []json.RawMessage
	)
	if data, ok := raw.Get(); ok {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return "", fmt.Errorf("decode %s: %w: %v", key, domain.ErrPersistence, err)
		}
		for _, item := range items {
			var rem domain.Reminder
			if err := json.Unmarshal(item, &rem); err != nil {
				r.log.WithError(err).WithField("key", key).Warn("skipping unreadable reminder")
				skipped = append(skipped, item)
				continue
			}
			if rem.Kind == "" {
				rem.Kind = kind
			}
			list = append(list, rem)
		}
	}
	r.reminders[kind] = list
	r.unreadable[kind] = skipped
	r.loaded[key] = true
	return key, nil
}

// writeReminders flushes a collection, unreadable items included.
func (r *Repository) writeReminders(kind domain.ReminderKind, key string) error {
	items := make([]json.RawMessage, 0, len(r.reminders[kind])+len(r.unreadable[kind]))
	for _, rem := range r.reminders[kind] {
		data, err := json.Marshal(rem)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		items = append(items, data)
	}
	items = append(items, r.unreadable[kind]...)
	return r.write(key, items)
}

// Reminders returns a copy of the collection for kind.
func (r *Repository) Reminders(kind domain.ReminderKind) ([]domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.loadReminders(kind); err != nil {
		return nil, err
	}
	out := make([]domain.Reminder, 0, len(r.reminders[kind]))
	for _, rem := range r.reminders[kind] {
		out = append(out, cloneReminder(rem))
	}
	return out, nil
}

// AllReminders returns every reminder of every kind.
func (r *Repository) AllReminders() ([]domain.Reminder, error) {
	var all []domain.Reminder
	for _, kind := range []domain.ReminderKind{domain.KindReminder, domain.KindMedication, domain.KindCustom} {
		list, err := r.Reminders(kind)
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	return all, nil
}

// Reminder looks a reminder up by id.
func (r *Repository) Reminder(kind domain.ReminderKind, id string) (mo.Option[domain.Reminder], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.loadReminders(kind); err != nil {
		return mo.None[domain.Reminder](), err
	}
	for _, rem := range r.reminders[kind] {
		if rem.ID == id {
			return mo.Some(cloneReminder(rem)), nil
		}
	}
	return mo.None[domain.Reminder](), nil
}

// SaveReminder inserts or replaces rem in its kind's collection. limit caps
// the collection size for inserts; 0 means unlimited.
func (r *Repository) SaveReminder(rem domain.Reminder, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.loadReminders(rem.Kind)
	if err != nil {
		return err
	}
	list := r.reminders[rem.Kind]
	replaced := false
	for i := range list {
		if list[i].ID == rem.ID {
			list[i] = cloneReminder(rem)
			replaced = true
			break
		}
	}
	if !replaced {
		if limit > 0 && len(list) >= limit {
			return fmt.Errorf("%s: at most %d items: %w", key, limit, domain.ErrLimitExceeded)
		}
		list = append(list, cloneReminder(rem))
	}
	r.reminders[rem.Kind] = list
	return r.writeReminders(rem.Kind, key)
}

// UpdateReminder applies fn to a copy of the stored reminder and writes the
// result, all under the lock. Nothing is written when fn fails. A reminder
// that no longer exists yields domain.ErrNotFound.
func (r *Repository) UpdateReminder(kind domain.ReminderKind, id string, fn func(rem *domain.Reminder) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.loadReminders(kind)
	if err != nil {
		return err
	}
	list := r.reminders[kind]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		cur := cloneReminder(list[i])
		if err := fn(&cur); err != nil {
			return err
		}
		cur.ID, cur.Kind = id, kind
		list[i] = cloneReminder(cur)
		return r.writeReminders(kind, key)
	}
	return fmt.Errorf("reminder %s: %w", id, domain.ErrNotFound)
}

// DeleteReminder removes a reminder and returns it.
func (r *Repository) DeleteReminder(kind domain.ReminderKind, id string) (domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.loadReminders(kind)
	if err != nil {
		return domain.Reminder{}, err
	}
	list := r.reminders[kind]
	for i := range list {
		if list[i].ID == id {
			removed := list[i]
			r.reminders[kind] = append(list[:i:i], list[i+1:]...)
			return removed, r.writeReminders(kind, key)
		}
	}
	return domain.Reminder{}, fmt.Errorf("reminder %s: %w", id, domain.ErrNotFound)
}

// === Birthdays ===

func (r *Repository) loadBirthdays() error {
	if r.loaded[storage.KeyBirthdays] {
		return nil
	}
	raw, err := r.read(storage.KeyBirthdays)
	if err != nil {
		return err
	}
	var list []domain.Birthday
	if data, ok := raw.Get(); ok {
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode %s: %w: %v", storage.KeyBirthdays, domain.ErrPersistence, err)
		}
	}
	r.birthdays = list
	r.loaded[storage.KeyBirthdays] = true
	return nil
}

// Birthdays returns birthdays ordered by month and day.
func (r *Repository) Birthdays() ([]domain.Birthday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadBirthdays(); err != nil {
		return nil, err
	}
	out := make([]domain.Birthday, 0, len(r.birthdays))
	for _, b := range r.birthdays {
		out = append(out, cloneBirthday(b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Month != out[j].Date.Month {
			return out[i].Date.Month < out[j].Date.Month
		}
		return out[i].Date.Day < out[j].Date.Day
	})
	return out, nil
}

func (r *Repository) Birthday(id string) (mo.Option[domain.Birthday], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadBirthdays(); err != nil {
		return mo.None[domain.Birthday](), err
	}
	for _, b := range r.birthdays {
		if b.ID == id {
			return mo.Some(cloneBirthday(b)), nil
		}
	}
	return mo.None[domain.Birthday](), nil
}

func (r *Repository) SaveBirthday(b domain.Birthday) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadBirthdays(); err != nil {
		return err
	}
	replaced := false
	for i := range r.birthdays {
		if r.birthdays[i].ID == b.ID {
			r.birthdays[i] = cloneBirthday(b)
			replaced = true
			break
		}
	}
	if !replaced {
		r.birthdays = append(r.birthdays, cloneBirthday(b))
	}
	return r.write(storage.KeyBirthdays, r.birthdays)
}

// UpdateBirthday is the birthday counterpart of UpdateReminder.
func (r *Repository) UpdateBirthday(id string, fn func(b *domain.Birthday) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadBirthdays(); err != nil {
		return err
	}
	for i := range r.birthdays {
		if r.birthdays[i].ID != id {
			continue
		}
		cur := cloneBirthday(r.birthdays[i])
		if err := fn(&cur); err != nil {
			return err
		}
		cur.ID = id
		r.birthdays[i] = cloneBirthday(cur)
		return r.write(storage.KeyBirthdays, r.birthdays)
	}
	return fmt.Errorf("birthday %s: %w", id, domain.ErrNotFound)
}

func (r *Repository) DeleteBirthday(id string) (domain.Birthday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadBirthdays(); err != nil {
		return domain.Birthday{}, err
	}
	for i := range r.birthdays {
		if r.birthdays[i].ID == id {
			removed := r.birthdays[i]
			r.birthdays = append(r.birthdays[:i:i], r.birthdays[i+1:]...)
			return removed, r.write(storage.KeyBirthdays, r.birthdays)
		}
	}
	return domain.Birthday{}, fmt.Errorf("birthday %s: %w", id, domain.ErrNotFound)
}

// === Cycle ===

func (r *Repository) loadCycle() error {
	if r.loaded[storage.KeyMenstrualData] {
		return nil
	}
	raw, err := r.read(storage.KeyMenstrualData)
	if err != nil {
		return err
	}
	h := domain.NewCycleHistory()
	if data, ok := raw.Get(); ok {
		if err := json.Unmarshal(data, h); err != nil {
			return fmt.Errorf("decode %s: %w: %v", storage.KeyMenstrualData, domain.ErrPersistence, err)
		}
	}
	r.cycle = h
	r.loaded[storage.KeyMenstrualData] = true
	return nil
}

// CycleHistory returns a copy of the tracking state.
func (r *Repository) CycleHistory() (*domain.CycleHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadCycle(); err != nil {
		return nil, err
	}
	return cloneCycle(r.cycle), nil
}

// UpdateCycle applies fn to a copy of the history and, if fn succeeds,
// replaces the cached state and writes it through.
func (r *Repository) UpdateCycle(fn func(h *domain.CycleHistory) error) (*domain.CycleHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadCycle(); err != nil {
		return nil, err
	}
	h := cloneCycle(r.cycle)
	if err := fn(h); err != nil {
		return nil, err
	}
	r.cycle = h
	return cloneCycle(h), r.write(storage.KeyMenstrualData, h)
}

func cloneReminder(r domain.Reminder) domain.Reminder {
	r.Times = append([]domain.TimeOfDay(nil), r.Times...)
	r.TriggerIDs = append([]string(nil), r.TriggerIDs...)
	if r.Payload != nil {
		p := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			p[k] = v
		}
		r.Payload = p
	}
	return r
}

func cloneBirthday(b domain.Birthday) domain.Birthday {
	b.TriggerIDs = append([]string(nil), b.TriggerIDs...)
	return b
}

func cloneCycle(h *domain.CycleHistory) *domain.CycleHistory {
	out := *h
	out.Records = make([]domain.CycleRecord, len(h.Records))
	for i, rec := range h.Records {
		if rec.PeriodLength != nil {
			n := *rec.PeriodLength
			rec.PeriodLength = &n
		}
		if rec.CycleLength != nil {
			n := *rec.CycleLength
			rec.CycleLength = &n
		}
		out.Records[i] = rec
	}
	return &out
}
