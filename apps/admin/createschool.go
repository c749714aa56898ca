package main

import (
	"context"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/user"
)

// createSchool creates a school; ownerEmail, when given, becomes its school admin.
func (cli *commandLine) createSchool(name, code, ownerEmail string) (school.School, error) {
	ctx := context.Background()
	ns := school.NewSchool{Name: name, Code: code}
	if err := ns.Validate(cli.validate); err != nil {
		return school.School{}, err
	}

	var ownerID string
	if ownerEmail != "" {
		owner, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(ownerEmail, true /* lower */)})
		if err != nil {
			return school.School{}, err
		}
		ownerID = owner.ID
	}
	return cli.schools.Create(ctx, ns, ownerID)
}
