package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

const generatedPasswordBytes = 12

type seedUser struct {
	Name     string   `yaml:"name"`
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Roles    []string `yaml:"roles"`
	Password string   `yaml:"password"`
	IsActive *bool    `yaml:"is_active"` // defaults to true
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

func (su seedUser) validate(i int) error {
	if su.Username == "" || su.Email == "" {
		return errors.Errorf("users[%d]: username & email are required", i)
	}
	for _, r := range su.Roles {
		if !core.StringInSlice(r, user.AllRoles) {
			return errors.Errorf("users[%d]: unknown role %q", i, r)
		}
	}
	return nil
}

// seed upserts the users of a YAML fixture, matched by username or email.
func (cli *commandLine) seed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading fixture")
	}
	var fixture seedFile
	if err = yaml.Unmarshal(data, &fixture); err != nil {
		return errors.Wrap(err, "parsing fixture")
	}
	for i := range fixture.Users {
		su := &fixture.Users[i]
		su.Username = core.CleanString(su.Username, true /* lower */)
		su.Email = core.CleanString(su.Email, true /* lower */)
		su.Name = core.CleanString(su.Name)
		su.Roles = core.CleanStrings(su.Roles, true /* lower */)
		if err = su.validate(i); err != nil {
			return err
		}
	}

	ctx := context.Background()
	for _, su := range fixture.Users {
		if err = cli.seedUser(ctx, su); err != nil {
			return errors.Wrapf(err, "seeding %s", su.Username)
		}
	}
	fmt.Fprintf(cli.out, "%d users seeded\n", len(fixture.Users))
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, su seedUser) error {
	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{su.Username, su.Email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{CreatedAt: now}
	}
	usr.UpdatedAt = now

	usr.Name = su.Name
	if usr.Name == "" {
		usr.Name = su.Username
	}
	usr.Username = su.Username
	usr.Email = su.Email
	usr.Roles = su.Roles
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(su.IsActive == nil || *su.IsActive)

	pwd := su.Password
	if pwd == "" {
		if pwd, err = generatePassword(); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s: %s\n", su.Username, pwd)
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}

func generatePassword() (string, error) {
	b := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating password")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
