package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	inmemdb "github.com/Cherif0104/EcosystIA-sub000/storage/database/inmem"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		usrRepo: usrRepo,
		out:     &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "up-by-one", "up-to 2", "down", "down-to 1", "redo", "reset", "status", "version", "fix"}, ran)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awa", "awa@test.sn", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", " AWA@test.sn"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd), "failed to update the password")
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, "Awa Diop", "awa", "awa@test.sn", "mdr", []string{user.RoleStaff}, false)

	t.Run("usage", func(t *testing.T) {
		mockPassword("lol")
		cliTest{wantErr: errHelp}.check(t, cli.run([]string{"admin", "adduser", "--username", "root"}))
		mockPassword("")
		cliTest{wantErr: errHelp}.check(t, cli.run([]string{"admin", "adduser", "--username", "root", "--email", "root@test.sn"}))
	})

	t.Run("creates an admin", func(t *testing.T) {
		mockPassword("s3cr3t!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "--username", "Root", "--email", "root@test.sn", "--admin"}))

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "root"})
		require.NoError(t, err)
		assert.Equal(t, "root@test.sn", usr.Email)
		assert.Equal(t, []string{user.RoleAdminSuper}, usr.Roles)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("s3cr3t!"))
		assert.False(t, usr.CreatedAt.IsZero())
	})

	t.Run("updates an existing user", func(t *testing.T) {
		mockPassword("n3w-pwd")
		require.NoError(t, cli.run([]string{"admin", "adduser", "--username", "awa", "--email", "awa@test.sn"}))

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleStaff}, usr.Roles, "roles are kept")
		assert.True(t, usr.Active(), "the user is reactivated")
		assert.NoError(t, usr.CheckPassword("n3w-pwd"))

		users, err := usrRepo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, "Old name", "awa", "awa@test.sn", "mdr", []string{user.RoleStudent}, true)

	dir := t.TempDir()
	writeFixture := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	valid := writeFixture("users.yaml", `
users:
  - name: Awa Diop
    username: AWA
    email: awa@test.sn
    roles: ["staff:"]
    password: "LolC@t123"
  - name: Moussa Fall
    username: moussa
    email: moussa@test.sn
    roles: ["trainer:", "partner:"]
  - username: gone
    email: gone@test.sn
    is_active: false
`)
	badRole := writeFixture("bad_role.yaml", `
users:
  - username: lol
    email: lol@test.sn
    roles: ["king:"]
`)
	missingEmail := writeFixture("missing_email.yaml", `
users:
  - username: lol
`)
	invalid := writeFixture("invalid.yaml", "users: [")

	tests := []cliTest{
		{name: "no file", args: []string{"seed"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"seed", badRole}, wantErrStr: `users[0]: unknown role "king:"`},
		{name: "missing email", args: []string{"seed", missingEmail}, wantErrStr: "users[0]: username & email are required"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("invalid yaml", func(t *testing.T) {
		err := cli.run([]string{"admin", "seed", invalid})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing fixture")
	})
	t.Run("missing file", func(t *testing.T) {
		err := cli.run([]string{"admin", "seed", filepath.Join(dir, "lol.yaml")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading fixture")
	})

	t.Run("seeds users", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "seed", valid}))

		awa, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, "Awa Diop", awa.Name)
		assert.Equal(t, []string{user.RoleStaff}, awa.Roles)
		assert.NoError(t, awa.CheckPassword("LolC@t123"))

		moussa, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "moussa"})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleTrainer, user.RolePartner}, moussa.Roles)
		assert.True(t, moussa.Active())

		gone, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "gone"})
		require.NoError(t, err)
		assert.Equal(t, "gone", gone.Name)
		assert.False(t, gone.Active())

		// generated passwords are printed
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "3 users seeded", lines[2])
		for i, usr := range []user.User{moussa, gone} {
			prefix := usr.Username + ": "
			require.True(t, strings.HasPrefix(lines[i], prefix), lines[i])
			assert.NoError(t, usr.CheckPassword(strings.TrimPrefix(lines[i], prefix)))
		}
	})
}
