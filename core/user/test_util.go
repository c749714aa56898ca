package user

import (
	"context"

	"github.com/trezcool/edugest/core"
)

// ServiceMock is a Service that sends password reset emails synchronously.
type ServiceMock struct {
	*Service
}

var _ ServiceInterface = (*ServiceMock)(nil)

func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) *ServiceMock {
	return &ServiceMock{Service: NewService(repo, mailSvc, conf)}
}

func (svc *ServiceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
