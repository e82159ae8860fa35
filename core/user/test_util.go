package user

import (
	"github.com/trezcool/mafunzo/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a ServiceInterface whose emails are sent synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	_ = NewService(db, repo, mailSvc, conf) // set package config
	return &serviceMock{
		service: service{
			db:      db,
			repo:    repo,
			mailSvc: mailSvc,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
