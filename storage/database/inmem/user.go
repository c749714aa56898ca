package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/user"
)

var errEmailTaken = core.NewConflictError("email", "a user with this email already exists")

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email string, excludedIDs ...string) bool {
	for _, u := range repo.db.users {
		if strings.EqualFold(u.Email, email) && !contains(excludedIDs, u.ID) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	if repo.emailTaken(email, ids...) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(usr.Email) {
		return user.User{}, errEmailTaken
	}
	usr.ID = newID()
	if usr.Roles == nil {
		usr.Roles = []user.UserRole{}
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

var userFields = map[string]comparer[user.User]{
	"full_name":  func(a, b user.User) int { return strings.Compare(a.FullName, b.FullName) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"last_login": func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil && !userMatches(u, filter) {
			continue
		}
		users = append(users, u)
	}
	sortRows(users, ordering, userFields, desc("created_at"))
	return users, nil
}

func userMatches(u user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" && !matches(filter.Search, u.FullName, u.Email, u.Phone) {
		return false
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, r := range u.Roles {
			if contains(filter.Roles, r.Role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SchoolID != "" && u.SchoolID != filter.SchoolID {
		found := false
		for _, r := range u.Roles {
			if r.SchoolID == filter.SchoolID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if u, ok := repo.db.users[filter.ID]; ok {
			return u, nil
		}
	case filter.Email != "":
		for _, u := range repo.db.users {
			if u.Email == filter.Email {
				return u, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

// UpdateUser saves the profile; roles are only changed through AddUserRole and RemoveUserRole.
func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, errEmailTaken
	}
	usr.Roles = orig.Roles
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SetUserSchool(_ context.Context, id, schoolID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if u, ok := repo.db.users[id]; ok {
		u.SchoolID = schoolID
		u.UpdatedAt = utcNow()
		repo.db.users[id] = u
	}
	return nil
}

func (repo *userRepository) AddUserRole(_ context.Context, id string, role user.UserRole, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	u, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	for _, r := range u.Roles {
		if r == role {
			return nil
		}
	}
	roles := make([]user.UserRole, 0, len(u.Roles)+1)
	u.Roles = append(append(roles, u.Roles...), role)
	repo.db.users[id] = u
	return nil
}

func (repo *userRepository) RemoveUserRole(_ context.Context, id string, role user.UserRole, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	u, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	roles := make([]user.UserRole, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
	repo.db.users[id] = u
	return nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
		delete(repo.db.preferences, id)
	}
	return nil
}
