// Package testutil provides the fixtures shared by the packages tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	emailsvc "github.com/Cherif0104/EcosystIA-sub000/services/email"
	logsvc "github.com/Cherif0104/EcosystIA-sub000/services/logger"
)

var templatesOnce sync.Once

// NewLogger returns a Logger writing to the test output, with Rollbar disabled.
func NewLogger(t testing.TB) core.Logger {
	l := logsvc.NewRollbarLogger(zaptest.NewLogger(t), core.NewTestConfig())
	l.Enable(false)
	return l
}

// NewMailService returns a synchronous email service that records the sent messages.
// Email templates are parsed in strict mode: a missing key fails the rendering.
func NewMailService(t testing.TB, conf *core.Config) *emailsvc.ConsoleServiceMock {
	logger := NewLogger(t)
	templatesOnce.Do(func() { core.ParseEmailTemplates(logger, true /* strict */) })
	return emailsvc.NewConsoleServiceMock(conf, logger)
}

func CreateUser(
	t testing.TB,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateUserWithRole creates an active user named after its role, eg. "admin" <admin@test.test>.
func CreateUserWithRole(t testing.TB, repo user.Repository, uname string, roles ...string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.test", "", roles, true)
}
