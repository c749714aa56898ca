package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/settings"
)

var errPreferencesNotFound = core.NewNotFoundError("preferences not found")

type preferencesRow struct {
	UserID             string    `db:"user_id"`
	Language           string    `db:"language"`
	Theme              string    `db:"theme"`
	EmailNotifications bool      `db:"email_notifications"`
	UpdatedAt          time.Time `db:"updated_at"`
}

type settingsRepository struct {
	repository
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(exec core.DBExecutor) *settingsRepository {
	return &settingsRepository{repository{exec: exec}}
}

func (repo settingsRepository) GetPreferences(ctx context.Context, userID string, exec ...core.DBExecutor) (settings.Preferences, error) {
	if !validUUID(userID) {
		return settings.Preferences{}, errPreferencesNotFound
	}
	var row preferencesRow
	q := psql.Select("user_id", "language", "theme", "email_notifications", "updated_at").
		From("user_preferences").
		Where(sq.Eq{"user_id": userID})
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return settings.Preferences{}, trapNoRowsErr(err, errPreferencesNotFound, "getting preferences")
	}
	return settings.Preferences(row), nil
}

func (repo settingsRepository) SavePreferences(ctx context.Context, p settings.Preferences, exec ...core.DBExecutor) (settings.Preferences, error) {
	_, err := repo.execute(ctx, exec, psql.Insert("user_preferences").
		Columns("user_id", "language", "theme", "email_notifications", "updated_at").
		Values(p.UserID, p.Language, p.Theme, p.EmailNotifications, p.UpdatedAt).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET language = EXCLUDED.language, theme = EXCLUDED.theme, " +
			"email_notifications = EXCLUDED.email_notifications, updated_at = EXCLUDED.updated_at"))
	if err != nil {
		return settings.Preferences{}, translateErr(err, "saving preferences")
	}
	return p, nil
}

func (repo settingsRepository) GetSystemSettings(ctx context.Context, exec ...core.DBExecutor) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := repo.selectAll(ctx, exec, &rows, psql.Select("key", "value").From("system_settings")); err != nil {
		return nil, errors.Wrap(err, "querying system settings")
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return values, nil
}

func (repo settingsRepository) SaveSystemSettings(ctx context.Context, values map[string]string, updatedBy string, exec ...core.DBExecutor) error {
	if len(values) == 0 {
		return nil
	}
	now := core.NowFunc().UTC()
	q := psql.Insert("system_settings").Columns("key", "value", "updated_by", "updated_at")
	for k, v := range values {
		q = q.Values(k, v, nullString(updatedBy), now)
	}
	q = q.Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at")
	_, err := repo.execute(ctx, exec, q)
	return translateErr(err, "saving system settings")
}
