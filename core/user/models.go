package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/edugest/core"
)

// Roles
const (
	RoleSuperAdmin  = "super_admin" // global, school-less
	RoleSchoolAdmin = "school_admin"
	RoleAccountant  = "accountant"
	RoleTeacher     = "teacher"
)

var (
	AllRoles    = []string{RoleSuperAdmin, RoleSchoolAdmin, RoleAccountant, RoleTeacher}
	SchoolRoles = []string{RoleSchoolAdmin, RoleAccountant, RoleTeacher}

	rolePriorities = map[string]int{
		RoleSuperAdmin:  40,
		RoleSchoolAdmin: 30,
		RoleAccountant:  20,
		RoleTeacher:     10,
	}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "School Admin", Value: RoleSchoolAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

func IsSchoolRole(role string) bool {
	for _, r := range SchoolRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UserRole grants Role to a user, within SchoolID unless Role is RoleSuperAdmin.
type UserRole struct {
	Role     string `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
}

// User is the profile of an authenticated account.
type User struct {
	ID           string     `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	SchoolID     string     `json:"school_id"`
	IsActive     bool       `json:"is_active"`
	Roles        []UserRole `json:"roles"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    time.Time  `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// RoleNames returns the user's role names, without duplicates.
func (u *User) RoleNames() []string {
	seen := make(map[string]struct{}, len(u.Roles))
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if _, ok := seen[r.Role]; !ok {
			seen[r.Role] = struct{}{}
			names = append(names, r.Role)
		}
	}
	return names
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r.Role == role {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

func (u *User) IsSuperAdmin() bool {
	return u.HasRole(RoleSuperAdmin)
}

// NewUser contains information needed to create a new User (the `create-user` server function).
type NewUser struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        string `json:"school_id" validate:"omitempty,uuid"`
	Role            string `json:"role" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	FullName        string  `json:"full_name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Phone           *string `json:"phone"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	if name := core.CleanString(uu.FullName); name != "" {
		uu.FullName = name
	} else {
		uu.FullName = origUsr.FullName
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Phone != nil {
		phone := core.CleanString(*uu.Phone)
		uu.Phone = &phone
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// AssignRole is the payload used to grant a role to a user.
type AssignRole struct {
	Role     string `json:"role" validate:"required,allroles"`
	SchoolID string `json:"school_id" validate:"omitempty,uuid"`
}

func (ar *AssignRole) Validate(validate *validator.Validate) error {
	ar.Role = core.CleanString(ar.Role, true /* lower */)
	ar.SchoolID = core.CleanString(ar.SchoolID, true /* lower */)
	return validate.Struct(ar)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	SchoolID    string    `query:"school_id"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.SchoolID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SchoolID = core.CleanString(qf.SchoolID, true /* lower */)
}

// GetFilter selects exactly one User.
type GetFilter struct {
	ID    string
	Email string
}
