package reminder

import (
	"context"
	"time"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/student"
)

var (
	// errors
	ErrConfigurationNotFound = core.NewNotFoundError("reminder configuration not found")
	ErrNotFound              = core.NewNotFoundError("scheduled reminder not found")
	ErrAlreadyScheduled      = core.NewConflictError("scheduled_at", "this automatic reminder was already recorded today")
)

type (
	Repository interface {
		CreateConfiguration(ctx context.Context, c Configuration, exec ...core.DBExecutor) (Configuration, error)
		GetConfiguration(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Configuration, error)
		QueryConfigurations(ctx context.Context, schoolID string, filter *ConfigurationFilter, exec ...core.DBExecutor) ([]Configuration, error)
		// ActiveConfigurations returns the active configurations of all schools.
		ActiveConfigurations(ctx context.Context, exec ...core.DBExecutor) ([]Configuration, error)
		UpdateConfiguration(ctx context.Context, c Configuration, exec ...core.DBExecutor) (Configuration, error)
		DeleteConfiguration(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error

		// CreateScheduled fails with ErrAlreadyScheduled for a second automatic reminder of the same
		// configuration, student and channel on the same day.
		CreateScheduled(ctx context.Context, r Scheduled, exec ...core.DBExecutor) (Scheduled, error)
		GetScheduled(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Scheduled, error)
		QueryScheduled(ctx context.Context, schoolID string, filter *ScheduledFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Scheduled, error)
		// DueScheduled returns the pending reminders of all schools scheduled at or before t.
		DueScheduled(ctx context.Context, t time.Time, limit int, exec ...core.DBExecutor) ([]Scheduled, error)
		// TransitionScheduled saves r's status fields only if the stored status is still from,
		// failing with a core.StateError otherwise.
		TransitionScheduled(ctx context.Context, r Scheduled, from string, exec ...core.DBExecutor) (Scheduled, error)
		DeleteScheduled(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
	}

	StudentStore interface {
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (student.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentStore
	}
)

func NewService(repo Repository, students StudentStore) *Service {
	return &Service{repo: repo, students: students}
}

// Configurations

func (svc *Service) CreateConfiguration(ctx context.Context, schoolID string, nc NewConfiguration) (Configuration, error) {
	now := core.NowFunc().UTC()
	c := Configuration{
		SchoolID:        schoolID,
		Name:            nc.Name,
		TriggerDays:     nc.TriggerDays,
		Channels:        nc.Channels,
		MessageTemplate: nc.MessageTemplate,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nc.IsActive != nil {
		c.IsActive = *nc.IsActive
	}
	return svc.repo.CreateConfiguration(ctx, c)
}

func (svc *Service) GetConfiguration(ctx context.Context, schoolID, id string) (Configuration, error) {
	return svc.repo.GetConfiguration(ctx, schoolID, id)
}

func (svc *Service) QueryConfigurations(ctx context.Context, schoolID string, filter *ConfigurationFilter) ([]Configuration, error) {
	return svc.repo.QueryConfigurations(ctx, schoolID, filter)
}

func (svc *Service) UpdateConfiguration(ctx context.Context, c Configuration, uc UpdateConfiguration) (Configuration, error) {
	uc.apply(&c)
	c.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateConfiguration(ctx, c)
}

// ToggleConfiguration flips the configuration's active flag.
func (svc *Service) ToggleConfiguration(ctx context.Context, c Configuration) (Configuration, error) {
	return svc.SetConfigurationActive(ctx, c, !c.IsActive)
}

func (svc *Service) SetConfigurationActive(ctx context.Context, c Configuration, active bool) (Configuration, error) {
	c.IsActive = active
	c.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateConfiguration(ctx, c)
}

func (svc *Service) DeleteConfiguration(ctx context.Context, c Configuration) error {
	return svc.repo.DeleteConfiguration(ctx, c.SchoolID, c.ID)
}

// Scheduled reminders

// Schedule records a manual reminder for one of the school's students.
func (svc *Service) Schedule(ctx context.Context, schoolID string, ns NewScheduled, createdBy string) (Scheduled, error) {
	stud, err := svc.students.GetStudent(ctx, schoolID, ns.StudentID)
	if err != nil {
		return Scheduled{}, err
	}
	return svc.repo.CreateScheduled(ctx, Scheduled{
		SchoolID:    schoolID,
		StudentID:   stud.ID,
		StudentName: stud.FullName(),
		Channel:     ns.Channel,
		Message:     ns.Message,
		ScheduledAt: ns.ScheduledAt.UTC(),
		Status:      StatusPending,
		Source:      SourceManual,
		CreatedBy:   createdBy,
		CreatedAt:   core.NowFunc().UTC(),
	})
}

func (svc *Service) GetScheduled(ctx context.Context, schoolID, id string) (Scheduled, error) {
	return svc.repo.GetScheduled(ctx, schoolID, id)
}

func (svc *Service) QueryScheduled(ctx context.Context, schoolID string, filter *ScheduledFilter, ordering []core.DBOrdering) ([]Scheduled, error) {
	return svc.repo.QueryScheduled(ctx, schoolID, filter, ordering)
}

func (svc *Service) Cancel(ctx context.Context, r Scheduled) (Scheduled, error) {
	return svc.transition(ctx, r, StatusCancelled, "")
}

func (svc *Service) MarkSent(ctx context.Context, r Scheduled) (Scheduled, error) {
	return svc.transition(ctx, r, StatusSent, "")
}

func (svc *Service) MarkFailed(ctx context.Context, r Scheduled, reason string) (Scheduled, error) {
	return svc.transition(ctx, r, StatusFailed, reason)
}

func (svc *Service) transition(ctx context.Context, r Scheduled, to, reason string) (Scheduled, error) {
	if !CanTransition(r.Status, to) {
		return Scheduled{}, core.NewStateError("reminder", r.Status, to)
	}
	from := r.Status
	r.Status = to
	r.ErrorMessage = reason
	if to == StatusSent {
		r.SentAt = core.NowFunc().UTC()
	}
	return svc.repo.TransitionScheduled(ctx, r, from)
}

// DeleteScheduled only drops reminders that were never sent.
func (svc *Service) DeleteScheduled(ctx context.Context, r Scheduled) error {
	if r.Status == StatusSent {
		return core.NewRuleError("a sent reminder cannot be deleted")
	}
	return svc.repo.DeleteScheduled(ctx, r.SchoolID, r.ID)
}
