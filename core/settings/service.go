package settings

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
)

type (
	Repository interface {
		GetPreferences(ctx context.Context, userID string, exec ...core.DBExecutor) (Preferences, error)
		SavePreferences(ctx context.Context, p Preferences, exec ...core.DBExecutor) (Preferences, error)
		GetSystemSettings(ctx context.Context, exec ...core.DBExecutor) (map[string]string, error)
		SaveSystemSettings(ctx context.Context, values map[string]string, updatedBy string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// Preferences returns the user's preferences, the defaults when none were saved.
func (svc *Service) Preferences(ctx context.Context, userID string) (Preferences, error) {
	p, err := svc.repo.GetPreferences(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return DefaultPreferences(userID), nil
		}
		return Preferences{}, err
	}
	return p, nil
}

func (svc *Service) UpdatePreferences(ctx context.Context, userID string, up UpdatePreferences) (Preferences, error) {
	p, err := svc.Preferences(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	up.apply(&p)
	p.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.SavePreferences(ctx, p)
}

func (svc *Service) defaultSystem() System {
	return System{
		PlatformName:       svc.conf.AppName,
		DefaultCurrency:    svc.conf.Payments.Currency,
		DefaultMaxStudents: -1,
		SupportEmail:       svc.conf.DefaultFromEmail.Address,
	}
}

// System returns the persisted system settings over the configured defaults.
func (svc *Service) System(ctx context.Context) (System, error) {
	values, err := svc.repo.GetSystemSettings(ctx)
	if err != nil {
		return System{}, errors.Wrap(err, "getting system settings")
	}
	s := svc.defaultSystem()
	s.merge(values)
	return s, nil
}

func (svc *Service) UpdateSystem(ctx context.Context, us UpdateSystem, updatedBy string) (System, error) {
	s, err := svc.System(ctx)
	if err != nil {
		return System{}, err
	}
	us.apply(&s)
	if err = svc.repo.SaveSystemSettings(ctx, s.values(), updatedBy); err != nil {
		return System{}, errors.Wrap(err, "saving system settings")
	}
	return s, nil
}

// SchoolDefaults returns the currency and student cap given to new schools.
func (svc *Service) SchoolDefaults(ctx context.Context) (string, int, error) {
	s, err := svc.System(ctx)
	if err != nil {
		return "", 0, err
	}
	return s.DefaultCurrency, s.DefaultMaxStudents, nil
}

// MaintenanceMode reports whether writes are currently refused to non super admins.
func (svc *Service) MaintenanceMode(ctx context.Context) (bool, error) {
	s, err := svc.System(ctx)
	if err != nil {
		return false, err
	}
	return s.MaintenanceMode, nil
}
