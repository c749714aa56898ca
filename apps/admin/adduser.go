package main

import (
	"context"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/user"
)

// addUser updates or creates an active user.User, optionally super admin.
func (cli *commandLine) addUser(name, email, pwd string, superAdmin bool) (user.User, error) {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	if err := user.CheckPasswordPolicy(pwd, name, email); err != nil {
		return user.User{}, err
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil && !core.IsNotFound(err) {
		return user.User{}, err
	}
	now := core.NowFunc().UTC()
	usr.FullName = name
	usr.Email = email
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if usr.ID == "" {
		usr.CreatedAt = now
		if superAdmin {
			usr.Roles = []user.UserRole{{Role: user.RoleSuperAdmin}}
		}
		return cli.usrRepo.CreateUser(ctx, usr)
	}

	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return user.User{}, err
	}
	if superAdmin && !usr.IsSuperAdmin() {
		if err = cli.usrRepo.AddUserRole(ctx, usr.ID, user.UserRole{Role: user.RoleSuperAdmin}); err != nil {
			return user.User{}, err
		}
		return cli.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	}
	return usr, nil
}
