package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
)

type reminderRepository struct {
	db *DB
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *DB) *reminderRepository {
	return &reminderRepository{db: db}
}

// Configurations

func (repo *reminderRepository) CreateConfiguration(_ context.Context, c reminder.Configuration, _ ...core.DBExecutor) (reminder.Configuration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = newID()
	repo.db.configurations[c.ID] = c
	return c, nil
}

func (repo *reminderRepository) GetConfiguration(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (reminder.Configuration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.configurations[id]; ok && c.SchoolID == schoolID {
		return c, nil
	}
	return reminder.Configuration{}, reminder.ErrConfigurationNotFound
}

func (repo *reminderRepository) queryConfigurations(pred func(reminder.Configuration) bool) []reminder.Configuration {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	configs := make([]reminder.Configuration, 0)
	for _, c := range repo.db.configurations {
		if pred(c) {
			configs = append(configs, c)
		}
	}
	sortRows(configs, nil, map[string]comparer[reminder.Configuration]{
		"trigger_days": func(a, b reminder.Configuration) int { return a.TriggerDays - b.TriggerDays },
		"name":         func(a, b reminder.Configuration) int { return strings.Compare(a.Name, b.Name) },
	}, asc("trigger_days"), asc("name"))
	return configs
}

func (repo *reminderRepository) QueryConfigurations(_ context.Context, schoolID string, filter *reminder.ConfigurationFilter, _ ...core.DBExecutor) ([]reminder.Configuration, error) {
	return repo.queryConfigurations(func(c reminder.Configuration) bool {
		if c.SchoolID != schoolID {
			return false
		}
		return filter == nil || filter.IsActive == nil || c.IsActive == *filter.IsActive
	}), nil
}

func (repo *reminderRepository) ActiveConfigurations(_ context.Context, _ ...core.DBExecutor) ([]reminder.Configuration, error) {
	return repo.queryConfigurations(func(c reminder.Configuration) bool { return c.IsActive }), nil
}

func (repo *reminderRepository) UpdateConfiguration(_ context.Context, c reminder.Configuration, _ ...core.DBExecutor) (reminder.Configuration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.configurations[c.ID]; !ok || orig.SchoolID != c.SchoolID {
		return reminder.Configuration{}, reminder.ErrConfigurationNotFound
	}
	repo.db.configurations[c.ID] = c
	return c, nil
}

// DeleteConfiguration keeps the reminders it produced, detached from it.
func (repo *reminderRepository) DeleteConfiguration(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.configurations[id]; !ok || c.SchoolID != schoolID {
		return reminder.ErrConfigurationNotFound
	}
	delete(repo.db.configurations, id)
	for rid, r := range repo.db.scheduled {
		if r.ConfigurationID == id {
			r.ConfigurationID = ""
			repo.db.scheduled[rid] = r
		}
	}
	return nil
}

// Scheduled reminders

func (repo *reminderRepository) withStudent(r reminder.Scheduled) reminder.Scheduled {
	r.StudentName = ""
	if s, ok := repo.db.students[r.StudentID]; ok {
		r.StudentName = s.FullName()
	}
	return r
}

func sameAutomatic(a, b reminder.Scheduled) bool {
	if a.Source != reminder.SourceAutomatic || b.Source != reminder.SourceAutomatic {
		return false
	}
	ay, am, ad := a.ScheduledAt.UTC().Date()
	by, bm, bd := b.ScheduledAt.UTC().Date()
	return a.ConfigurationID == b.ConfigurationID && a.StudentID == b.StudentID && a.Channel == b.Channel &&
		ay == by && am == bm && ad == bd
}

func (repo *reminderRepository) CreateScheduled(_ context.Context, r reminder.Scheduled, _ ...core.DBExecutor) (reminder.Scheduled, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.scheduled {
		if sameAutomatic(other, r) {
			return reminder.Scheduled{}, reminder.ErrAlreadyScheduled
		}
	}
	r.ID = newID()
	repo.db.scheduled[r.ID] = r
	return repo.withStudent(r), nil
}

func (repo *reminderRepository) GetScheduled(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (reminder.Scheduled, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.scheduled[id]; ok && r.SchoolID == schoolID {
		return repo.withStudent(r), nil
	}
	return reminder.Scheduled{}, reminder.ErrNotFound
}

var scheduledFields = map[string]comparer[reminder.Scheduled]{
	"scheduled_at": func(a, b reminder.Scheduled) int { return a.ScheduledAt.Compare(b.ScheduledAt) },
	"status":       func(a, b reminder.Scheduled) int { return strings.Compare(a.Status, b.Status) },
	"channel":      func(a, b reminder.Scheduled) int { return strings.Compare(a.Channel, b.Channel) },
	"created_at":   func(a, b reminder.Scheduled) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *reminderRepository) QueryScheduled(_ context.Context, schoolID string, filter *reminder.ScheduledFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]reminder.Scheduled, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reminders := make([]reminder.Scheduled, 0)
	for _, r := range repo.db.scheduled {
		if r.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			switch {
			case filter.StudentID != "" && r.StudentID != filter.StudentID:
				continue
			case len(filter.Statuses) > 0 && !contains(filter.Statuses, r.Status):
				continue
			case filter.Channel != "" && r.Channel != filter.Channel:
				continue
			case filter.Source != "" && r.Source != filter.Source:
				continue
			}
		}
		reminders = append(reminders, repo.withStudent(r))
	}
	sortRows(reminders, ordering, scheduledFields, desc("scheduled_at"))
	return reminders, nil
}

func (repo *reminderRepository) DueScheduled(_ context.Context, t time.Time, limit int, _ ...core.DBExecutor) ([]reminder.Scheduled, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	due := make([]reminder.Scheduled, 0)
	for _, r := range repo.db.scheduled {
		if r.Status == reminder.StatusPending && !r.ScheduledAt.After(t) {
			due = append(due, repo.withStudent(r))
		}
	}
	sortRows(due, nil, scheduledFields, asc("scheduled_at"))
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (repo *reminderRepository) TransitionScheduled(_ context.Context, r reminder.Scheduled, from string, _ ...core.DBExecutor) (reminder.Scheduled, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.scheduled[r.ID]
	if !ok || orig.SchoolID != r.SchoolID {
		return reminder.Scheduled{}, reminder.ErrNotFound
	}
	if orig.Status != from {
		return reminder.Scheduled{}, core.NewStateError("reminder", orig.Status, r.Status)
	}
	orig.Status = r.Status
	orig.SentAt = r.SentAt
	orig.ErrorMessage = r.ErrorMessage
	repo.db.scheduled[r.ID] = orig
	return repo.withStudent(orig), nil
}

func (repo *reminderRepository) DeleteScheduled(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r, ok := repo.db.scheduled[id]; !ok || r.SchoolID != schoolID {
		return reminder.ErrNotFound
	}
	delete(repo.db.scheduled, id)
	return nil
}
