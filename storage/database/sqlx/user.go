package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/user"
)

var profileColumns = []string{
	"id", "full_name", "email", "phone", "password_hash", "school_id", "is_active", "created_at",
	"updated_at", "last_login",
}

type profileRow struct {
	ID           string      `db:"id"`
	FullName     string      `db:"full_name"`
	Email        string      `db:"email"`
	Phone        string      `db:"phone"`
	PasswordHash null.Bytes  `db:"password_hash"`
	SchoolID     null.String `db:"school_id"`
	IsActive     bool        `db:"is_active"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRoleRow struct {
	UserID   string      `db:"user_id"`
	Role     string      `db:"role"`
	SchoolID null.String `db:"school_id"`
}

func (r profileRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		FullName:     r.FullName,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash.Bytes,
		SchoolID:     r.SchoolID.String,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

// withRoles loads the roles of users.
func (repo userRepository) withRoles(ctx context.Context, exec []core.DBExecutor, users []user.User) ([]user.User, error) {
	if len(users) == 0 {
		return users, nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var rows []userRoleRow
	q := psql.Select("user_id", "role", "school_id").From("user_roles").
		Where("user_id = ANY(?)", pq.Array(ids)).
		OrderBy("created_at")
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying user roles")
	}

	roles := make(map[string][]user.UserRole, len(users))
	for _, r := range rows {
		roles[r.UserID] = append(roles[r.UserID], user.UserRole{Role: r.Role, SchoolID: r.SchoolID.String})
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = []user.UserRole{}
		}
	}
	return users, nil
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	cond := sq.And{sq.Eq{"email": email}}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		cond = append(cond, sq.NotEq{"id": ids})
	}

	var exists bool
	q := psql.Select().Column(sq.Expr("EXISTS (?)", psql.Select("1").From("profiles").Where(cond)))
	if err := repo.get(ctx, exec, &exists, q); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("profiles").Columns(profileColumns...).Values(
		usr.ID, usr.FullName, usr.Email, usr.Phone, null.BytesFrom(usr.PasswordHash), nullString(usr.SchoolID),
		usr.IsActive, usr.CreatedAt, usr.UpdatedAt, null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	))
	if err != nil {
		return user.User{}, translateErr(err, "inserting user")
	}
	for _, role := range usr.Roles {
		if err = repo.AddUserRole(ctx, usr.ID, role, exec...); err != nil {
			return user.User{}, err
		}
	}
	if usr.Roles == nil {
		usr.Roles = []user.UserRole{}
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := psql.Select(profileColumns...).From("profiles")
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "full_name", "email", "phone"))
		}
		if len(filter.Roles) > 0 {
			q = q.Where("id IN (SELECT user_id FROM user_roles WHERE role = ANY(?))", pq.Array(lowerAll(filter.Roles)))
		}
		if filter.SchoolID != "" {
			if !validUUID(filter.SchoolID) {
				return []user.User{}, nil
			}
			q = q.Where(sq.Or{
				sq.Eq{"school_id": filter.SchoolID},
				sq.Expr("id IN (SELECT user_id FROM user_roles WHERE school_id = ?)", filter.SchoolID),
			})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	q = orderBy(q, ordering, "created_at DESC", "full_name", "email", "created_at", "last_login")

	var rows []profileRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return repo.withRoles(ctx, exec, users)
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Select(profileColumns...).From("profiles")
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row profileRow
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	users, err := repo.withRoles(ctx, exec, []user.User{row.toUser()})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	n, err := repo.execute(ctx, exec, psql.Update("profiles").SetMap(map[string]interface{}{
		"full_name":     usr.FullName,
		"email":         usr.Email,
		"phone":         usr.Phone,
		"password_hash": null.BytesFrom(usr.PasswordHash),
		"school_id":     nullString(usr.SchoolID),
		"is_active":     usr.IsActive,
		"updated_at":    usr.UpdatedAt,
		"last_login":    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, translateErr(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetUserSchool(ctx context.Context, id, schoolID string, exec ...core.DBExecutor) error {
	_, err := repo.execute(ctx, exec, psql.Update("profiles").
		Set("school_id", nullString(schoolID)).
		Set("updated_at", core.NowFunc().UTC()).
		Where(sq.Eq{"id": id}))
	return translateErr(err, "setting user school")
}

func (repo userRepository) AddUserRole(ctx context.Context, id string, role user.UserRole, exec ...core.DBExecutor) error {
	_, err := repo.execute(ctx, exec, psql.Insert("user_roles").
		Columns("id", "user_id", "role", "school_id", "created_at").
		Values(newID(), id, role.Role, nullString(role.SchoolID), core.NowFunc().UTC()).
		Suffix("ON CONFLICT DO NOTHING"))
	return translateErr(err, "adding user role")
}

func (repo userRepository) RemoveUserRole(ctx context.Context, id string, role user.UserRole, exec ...core.DBExecutor) error {
	_, err := repo.execute(ctx, exec, psql.Delete("user_roles").
		Where(sq.Eq{"user_id": id, "role": role.Role}).
		Where("school_id IS NOT DISTINCT FROM ?", nullString(role.SchoolID)))
	return translateErr(err, "removing user role")
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	_, err := repo.execute(ctx, nil, psql.Delete("profiles").Where(sq.Eq{"id": valid}))
	return translateErr(err, "deleting users")
}
