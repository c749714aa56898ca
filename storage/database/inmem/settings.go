package inmemdb

import (
	"context"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/settings"
)

var errPreferencesNotFound = core.NewNotFoundError("preferences not found")

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetPreferences(_ context.Context, userID string, _ ...core.DBExecutor) (settings.Preferences, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.preferences[userID]; ok {
		return p, nil
	}
	return settings.Preferences{}, errPreferencesNotFound
}

func (repo *settingsRepository) SavePreferences(_ context.Context, p settings.Preferences, _ ...core.DBExecutor) (settings.Preferences, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.preferences[p.UserID] = p
	return p, nil
}

func (repo *settingsRepository) GetSystemSettings(_ context.Context, _ ...core.DBExecutor) (map[string]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	values := make(map[string]string, len(repo.db.system))
	for k, v := range repo.db.system {
		values[k] = v
	}
	return values, nil
}

func (repo *settingsRepository) SaveSystemSettings(_ context.Context, values map[string]string, _ string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for k, v := range values {
		repo.db.system[k] = v
	}
	return nil
}
