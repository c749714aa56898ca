package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("user not found")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrRoleNeedsSchool   = errors.New("this role must be granted within a school")
	ErrSuperAdminNoScope = errors.New("super_admin is a global role and cannot be scoped to a school")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetUserSchool(ctx context.Context, id, schoolID string, exec ...core.DBExecutor) error
		AddUserRole(ctx context.Context, id string, role UserRole, exec ...core.DBExecutor) error
		RemoveUserRole(ctx context.Context, id string, role UserRole, exec ...core.DBExecutor) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		AssignRole(ctx context.Context, usr User, ar AssignRole) (User, error)
		RevokeRole(ctx context.Context, usr User, role, schoolID string) (User, error)
		LinkSchoolAdmin(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) error
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func checkRoleScope(role, schoolID string) error {
	if role == RoleSuperAdmin && schoolID != "" {
		return core.NewValidationError(ErrSuperAdminNoScope, core.FieldError{Field: "school_id", Error: ErrSuperAdminNoScope.Error()})
	}
	if role != RoleSuperAdmin && schoolID == "" {
		return core.NewValidationError(ErrRoleNeedsSchool, core.FieldError{Field: "school_id", Error: ErrRoleNeedsSchool.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc().UTC()
	usr := User{
		FullName:  nu.FullName,
		Email:     nu.Email,
		Phone:     nu.Phone,
		SchoolID:  nu.SchoolID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Role != "" {
		schoolID := nu.SchoolID
		if nu.Role == RoleSuperAdmin {
			schoolID = ""
		}
		if err := checkRoleScope(nu.Role, schoolID); err != nil {
			return User{}, err
		}
		usr.Roles = []UserRole{{Role: nu.Role, SchoolID: schoolID}}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.FullName = uu.FullName
	usr.Email = uu.Email
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AssignRole grants a role to usr; school roles also attach usr to the school when it has none.
func (svc *Service) AssignRole(ctx context.Context, usr User, ar AssignRole) (User, error) {
	if ar.Role == RoleSuperAdmin {
		ar.SchoolID = ""
	}
	if err := checkRoleScope(ar.Role, ar.SchoolID); err != nil {
		return User{}, err
	}
	if err := svc.repo.AddUserRole(ctx, usr.ID, UserRole(ar)); err != nil {
		return User{}, errors.Wrap(err, "adding role")
	}
	if ar.SchoolID != "" && usr.SchoolID == "" {
		if err := svc.repo.SetUserSchool(ctx, usr.ID, ar.SchoolID); err != nil {
			return User{}, errors.Wrap(err, "setting school")
		}
	}
	return svc.GetByID(ctx, usr.ID)
}

func (svc *Service) RevokeRole(ctx context.Context, usr User, role, schoolID string) (User, error) {
	if role == RoleSuperAdmin {
		schoolID = ""
	} else if schoolID == "" {
		schoolID = usr.SchoolID
	}
	if err := svc.repo.RemoveUserRole(ctx, usr.ID, UserRole{Role: role, SchoolID: schoolID}); err != nil {
		return User{}, errors.Wrap(err, "removing role")
	}
	return svc.GetByID(ctx, usr.ID)
}

// LinkSchoolAdmin attaches the user to a freshly created school and makes them its admin.
func (svc *Service) LinkSchoolAdmin(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) error {
	if err := svc.repo.SetUserSchool(ctx, userID, schoolID, exec...); err != nil {
		return errors.Wrap(err, "setting school")
	}
	role := UserRole{Role: RoleSchoolAdmin, SchoolID: schoolID}
	return errors.Wrap(svc.repo.AddUserRole(ctx, userID, role, exec...), "adding school_admin role")
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalidErr := core.NewValidationError(errors.New("invalid token or uid"))

	uid, err := decodeUID(rp.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, rp.Token, svc.conf); err != nil {
		return invalidErr
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *Service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		return
	}
	resetURL := fmt.Sprintf("%s/auth/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": usr.FullName, "URL": resetURL},
	})
}
