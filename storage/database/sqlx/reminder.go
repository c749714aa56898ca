package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
)

var (
	configurationColumns = []string{
		"id", "school_id", "name", "trigger_days", "channels", "message_template", "is_active", "created_at", "updated_at",
	}
	scheduledColumns = []string{
		"id", "school_id", "student_id", "configuration_id", "channel", "message", "scheduled_at", "status",
		"sent_at", "error_message", "source", "created_by", "created_at",
	}
)

type configurationRow struct {
	ID              string         `db:"id"`
	SchoolID        string         `db:"school_id"`
	Name            string         `db:"name"`
	TriggerDays     int            `db:"trigger_days"`
	Channels        pq.StringArray `db:"channels"`
	MessageTemplate string         `db:"message_template"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r configurationRow) toConfiguration() reminder.Configuration {
	return reminder.Configuration{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		Name:            r.Name,
		TriggerDays:     r.TriggerDays,
		Channels:        []string(r.Channels),
		MessageTemplate: r.MessageTemplate,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type scheduledRow struct {
	ID              string      `db:"id"`
	SchoolID        string      `db:"school_id"`
	StudentID       string      `db:"student_id"`
	StudentName     null.String `db:"student_name"`
	ConfigurationID null.String `db:"configuration_id"`
	Channel         string      `db:"channel"`
	Message         string      `db:"message"`
	ScheduledAt     time.Time   `db:"scheduled_at"`
	Status          string      `db:"status"`
	SentAt          null.Time   `db:"sent_at"`
	ErrorMessage    string      `db:"error_message"`
	Source          string      `db:"source"`
	CreatedBy       null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r scheduledRow) toScheduled() reminder.Scheduled {
	return reminder.Scheduled{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		StudentID:       r.StudentID,
		StudentName:     r.StudentName.String,
		ConfigurationID: r.ConfigurationID.String,
		Channel:         r.Channel,
		Message:         r.Message,
		ScheduledAt:     r.ScheduledAt,
		Status:          r.Status,
		SentAt:          r.SentAt.Time,
		ErrorMessage:    r.ErrorMessage,
		Source:          r.Source,
		CreatedBy:       r.CreatedBy.String,
		CreatedAt:       r.CreatedAt,
	}
}

type reminderRepository struct {
	repository
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(exec core.DBExecutor) *reminderRepository {
	return &reminderRepository{repository{exec: exec}}
}

// Configurations

func (repo reminderRepository) CreateConfiguration(ctx context.Context, c reminder.Configuration, exec ...core.DBExecutor) (reminder.Configuration, error) {
	c.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("reminder_configurations").Columns(configurationColumns...).Values(
		c.ID, c.SchoolID, c.Name, c.TriggerDays, pq.StringArray(c.Channels), c.MessageTemplate, c.IsActive, c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		return reminder.Configuration{}, translateErr(err, "inserting reminder configuration")
	}
	return c, nil
}

func (repo reminderRepository) GetConfiguration(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (reminder.Configuration, error) {
	if !validUUID(id) {
		return reminder.Configuration{}, reminder.ErrConfigurationNotFound
	}
	var row configurationRow
	q := psql.Select(configurationColumns...).From("reminder_configurations").Where(sq.Eq{"school_id": schoolID, "id": id})
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return reminder.Configuration{}, trapNoRowsErr(err, reminder.ErrConfigurationNotFound, "getting reminder configuration")
	}
	return row.toConfiguration(), nil
}

func (repo reminderRepository) queryConfigurations(ctx context.Context, exec []core.DBExecutor, q sq.SelectBuilder) ([]reminder.Configuration, error) {
	var rows []configurationRow
	if err := repo.selectAll(ctx, exec, &rows, q.OrderBy("trigger_days", "name")); err != nil {
		return nil, errors.Wrap(err, "querying reminder configurations")
	}
	configs := make([]reminder.Configuration, 0, len(rows))
	for _, r := range rows {
		configs = append(configs, r.toConfiguration())
	}
	return configs, nil
}

func (repo reminderRepository) QueryConfigurations(ctx context.Context, schoolID string, filter *reminder.ConfigurationFilter, exec ...core.DBExecutor) ([]reminder.Configuration, error) {
	q := psql.Select(configurationColumns...).From("reminder_configurations").Where(sq.Eq{"school_id": schoolID})
	if filter != nil && filter.IsActive != nil {
		q = q.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	return repo.queryConfigurations(ctx, exec, q)
}

func (repo reminderRepository) ActiveConfigurations(ctx context.Context, exec ...core.DBExecutor) ([]reminder.Configuration, error) {
	q := psql.Select(configurationColumns...).From("reminder_configurations").Where(sq.Eq{"is_active": true})
	return repo.queryConfigurations(ctx, exec, q)
}

func (repo reminderRepository) UpdateConfiguration(ctx context.Context, c reminder.Configuration, exec ...core.DBExecutor) (reminder.Configuration, error) {
	n, err := repo.execute(ctx, exec, psql.Update("reminder_configurations").SetMap(map[string]interface{}{
		"name":             c.Name,
		"trigger_days":     c.TriggerDays,
		"channels":         pq.StringArray(c.Channels),
		"message_template": c.MessageTemplate,
		"is_active":        c.IsActive,
		"updated_at":       c.UpdatedAt,
	}).Where(sq.Eq{"school_id": c.SchoolID, "id": c.ID}))
	if err != nil {
		return reminder.Configuration{}, translateErr(err, "updating reminder configuration")
	}
	if n == 0 {
		return reminder.Configuration{}, reminder.ErrConfigurationNotFound
	}
	return c, nil
}

func (repo reminderRepository) DeleteConfiguration(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("reminder_configurations").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting reminder configuration")
	}
	if n == 0 {
		return reminder.ErrConfigurationNotFound
	}
	return nil
}

// Scheduled reminders

func scheduledSelect() sq.SelectBuilder {
	cols := make([]string, 0, len(scheduledColumns)+1)
	for _, c := range scheduledColumns {
		cols = append(cols, "r."+c)
	}
	cols = append(cols, "coalesce(s.first_name || ' ' || s.last_name, '') AS student_name")
	return psql.Select(cols...).From("scheduled_reminders r").LeftJoin("students s ON s.id = r.student_id")
}

func (repo reminderRepository) CreateScheduled(ctx context.Context, r reminder.Scheduled, exec ...core.DBExecutor) (reminder.Scheduled, error) {
	r.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("scheduled_reminders").Columns(scheduledColumns...).Values(
		r.ID, r.SchoolID, r.StudentID, nullString(r.ConfigurationID), r.Channel, r.Message, r.ScheduledAt, r.Status,
		null.NewTime(r.SentAt, !r.SentAt.IsZero()), r.ErrorMessage, r.Source, nullString(r.CreatedBy), r.CreatedAt,
	))
	if err != nil {
		return reminder.Scheduled{}, translateErr(err, "inserting scheduled reminder")
	}
	return r, nil
}

func (repo reminderRepository) GetScheduled(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (reminder.Scheduled, error) {
	if !validUUID(id) {
		return reminder.Scheduled{}, reminder.ErrNotFound
	}
	var row scheduledRow
	q := scheduledSelect().Where(sq.Eq{"r.school_id": schoolID, "r.id": id})
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return reminder.Scheduled{}, trapNoRowsErr(err, reminder.ErrNotFound, "getting scheduled reminder")
	}
	return row.toScheduled(), nil
}

func (repo reminderRepository) selectScheduled(ctx context.Context, exec []core.DBExecutor, q sq.SelectBuilder) ([]reminder.Scheduled, error) {
	var rows []scheduledRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying scheduled reminders")
	}
	reminders := make([]reminder.Scheduled, 0, len(rows))
	for _, r := range rows {
		reminders = append(reminders, r.toScheduled())
	}
	return reminders, nil
}

func (repo reminderRepository) QueryScheduled(ctx context.Context, schoolID string, filter *reminder.ScheduledFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]reminder.Scheduled, error) {
	q := scheduledSelect().Where(sq.Eq{"r.school_id": schoolID})
	if filter != nil {
		if filter.StudentID != "" {
			if !validUUID(filter.StudentID) {
				return []reminder.Scheduled{}, nil
			}
			q = q.Where(sq.Eq{"r.student_id": filter.StudentID})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"r.status": lowerAll(filter.Statuses)})
		}
		if filter.Channel != "" {
			q = q.Where(sq.Eq{"r.channel": filter.Channel})
		}
		if filter.Source != "" {
			q = q.Where(sq.Eq{"r.source": filter.Source})
		}
	}
	q = orderBy(q, prefixOrdering(ordering, "r."), "r.scheduled_at DESC",
		"r.scheduled_at", "r.status", "r.channel", "r.created_at")
	return repo.selectScheduled(ctx, exec, q)
}

func (repo reminderRepository) DueScheduled(ctx context.Context, t time.Time, limit int, exec ...core.DBExecutor) ([]reminder.Scheduled, error) {
	q := scheduledSelect().
		Where(sq.Eq{"r.status": reminder.StatusPending}).
		Where(sq.LtOrEq{"r.scheduled_at": t}).
		OrderBy("r.scheduled_at")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return repo.selectScheduled(ctx, exec, q)
}

func (repo reminderRepository) TransitionScheduled(ctx context.Context, r reminder.Scheduled, from string, exec ...core.DBExecutor) (reminder.Scheduled, error) {
	n, err := repo.execute(ctx, exec, psql.Update("scheduled_reminders").SetMap(map[string]interface{}{
		"status":        r.Status,
		"sent_at":       null.NewTime(r.SentAt, !r.SentAt.IsZero()),
		"error_message": r.ErrorMessage,
	}).Where(sq.Eq{"school_id": r.SchoolID, "id": r.ID, "status": from}))
	if err != nil {
		return reminder.Scheduled{}, translateErr(err, "updating scheduled reminder")
	}
	if n == 0 {
		current, err := repo.GetScheduled(ctx, r.SchoolID, r.ID, exec...)
		if err != nil {
			return reminder.Scheduled{}, err
		}
		return reminder.Scheduled{}, core.NewStateError("reminder", current.Status, r.Status)
	}
	return r, nil
}

func (repo reminderRepository) DeleteScheduled(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("scheduled_reminders").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting scheduled reminder")
	}
	if n == 0 {
		return reminder.ErrNotFound
	}
	return nil
}
