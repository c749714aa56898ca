package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("school not found")
	ErrCodeExists = core.NewConflictError("code", "a school with this code already exists")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]School, error)
		UpdateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// Members links profiles to schools.
	Members interface {
		LinkSchoolAdmin(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) error
	}

	// Defaults provides the platform-wide values given to new schools.
	Defaults interface {
		SchoolDefaults(ctx context.Context) (currency string, maxStudents int, err error)
	}

	Service struct {
		repo     Repository
		members  Members
		defaults Defaults
		tx       core.TxRunner
		conf     *core.Config
	}
)

func NewService(repo Repository, members Members, defaults Defaults, tx core.TxRunner, conf *core.Config) *Service {
	return &Service{repo: repo, members: members, defaults: defaults, tx: tx, conf: conf}
}

func (svc *Service) schoolDefaults(ctx context.Context) (string, int, error) {
	if svc.defaults == nil {
		return svc.conf.Payments.Currency, UnlimitedStudents, nil
	}
	return svc.defaults.SchoolDefaults(ctx)
}

// Create creates a school; when ownerID is set, that profile is linked to it as school_admin
// in the same transaction.
func (svc *Service) Create(ctx context.Context, ns NewSchool, ownerID string) (School, error) {
	now := core.NowFunc().UTC()
	s := School{
		Name:        ns.Name,
		Code:        ns.Code,
		Address:     ns.Address,
		Phone:       ns.Phone,
		Email:       ns.Email,
		LogoPath:    ns.LogoPath,
		Currency:    ns.Currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	currency, maxStudents, err := svc.schoolDefaults(ctx)
	if err != nil {
		return School{}, errors.Wrap(err, "getting school defaults")
	}
	if s.Currency == "" {
		s.Currency = currency
	}
	s.MaxStudents = maxStudents
	if ns.MaxStudents != nil {
		s.MaxStudents = *ns.MaxStudents
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.CreateSchool(ctx, s, exec); err != nil {
			return err
		}
		if ownerID != "" {
			return svc.members.LinkSchoolAdmin(ctx, ownerID, s.ID, exec)
		}
		return nil
	})
	if err != nil {
		return School{}, errors.Wrap(err, "creating school")
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, s School, us UpdateSchool) (School, error) {
	us.apply(&s)
	s.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateSchool(ctx, s)
}

// SetActive toggles the school; users of an inactive school are refused access.
func (svc *Service) SetActive(ctx context.Context, s School, active bool) (School, error) {
	s.IsActive = active
	s.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateSchool(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSchool(ctx, id)
}
