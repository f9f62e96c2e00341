package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/familyreminders/internal/cycle"
	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/recurrence"
	"github.com/tazhate/familyreminders/internal/repository"
)

// CycleService is the menstrual tracking screen's backend.
type CycleService struct {
	repo *repository.Repository
	enum *recurrence.Enumerator
	log  *logrus.Entry
}

func NewCycleService(repo *repository.Repository, enum *recurrence.Enumerator, logger *logrus.Logger) *CycleService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CycleService{repo: repo, enum: enum, log: logger.WithField("component", "cycle")}
}

// LogPeriodStart records a new period start. periodLength may be nil.
func (s *CycleService) LogPeriodStart(start domain.Date, periodLength *int) (domain.CycleRecord, error) {
	var rec domain.CycleRecord
	_, err := s.repo.UpdateCycle(func(h *domain.CycleHistory) error {
		added, err := cycle.AddPeriodStart(h, uuid.NewString(), start, periodLength)
		if err != nil {
			return err
		}
		rec = *added
		return nil
	})
	if err != nil && rec.ID == "" {
		return domain.CycleRecord{}, err
	}
	s.log.WithField("start", start.String()).Info("period start logged")
	return rec, err
}

func (s *CycleService) SetPeriodLength(id string, days int) error {
	_, err := s.repo.UpdateCycle(func(h *domain.CycleHistory) error {
		return cycle.SetPeriodLength(h, id, days)
	})
	return err
}

func (s *CycleService) DeleteRecord(id string) error {
	_, err := s.repo.UpdateCycle(func(h *domain.CycleHistory) error {
		return cycle.RemoveRecord(h, id)
	})
	return err
}

func (s *CycleService) History() (*domain.CycleHistory, error) {
	return s.repo.CycleHistory()
}

// Summary computes the tracking summary for the calendar day of now.
func (s *CycleService) Summary(now time.Time) (cycle.Summary, error) {
	h, err := s.repo.CycleHistory()
	if err != nil {
		return cycle.Summary{}, err
	}
	return cycle.Summarize(h, s.enum.Today(now)), nil
}

// FormatSummary renders a summary as HTML.
func FormatSummary(sum cycle.Summary) string {
	if !sum.HasData {
		return "🌸 Нет данных о цикле. Отметьте начало месячных."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌸 <b>%s</b>", domain.PhaseName(sum.Phase.Kind)))
	if sum.Phase.DayOfCycle > 0 {
		sb.WriteString(fmt.Sprintf(", день %d", sum.Phase.DayOfCycle))
	}
	if sum.Phase.Kind == domain.PhaseLate {
		sb.WriteString(fmt.Sprintf(" (+%d дн.)", sum.Phase.DaysLate))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("📅 Следующие: %s", sum.NextPeriod.Time().Format("02.01")))
	if sum.DaysUntilNextPeriod > 0 {
		sb.WriteString(fmt.Sprintf(" (через %d дн.)", sum.DaysUntilNextPeriod))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("🥚 Фертильное окно: %s – %s\n",
		sum.FertileWindow.Start.Time().Format("02.01"), sum.FertileWindow.End.Time().Format("02.01")))
	sb.WriteString(fmt.Sprintf("🔁 Цикл %d дн., месячные %d дн.\n", sum.AverageCycleLength, sum.AveragePeriodLength))

	if score, ok := sum.Regularity.Get(); ok {
		sb.WriteString(fmt.Sprintf("📈 Регулярность: %d%% (%s)\n", score, cycle.RegularityLabel(score)))
	}
	return sb.String()
}
