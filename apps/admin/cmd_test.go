package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
	emailsvc "github.com/trezcool/soka/services/email"
	logsvc "github.com/trezcool/soka/services/logger"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

const strongPwd = "Kx9#mQ2$vL7p"

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	return &commandLine{
		db:         db,
		logger:     logsvc.NewRollbarLogger(io.Discard, conf),
		validate:   validate,
		translator: translator,
		usrSvc:     user.NewService(db, usrRepo, emailsvc.NewConsoleServiceMock(conf), conf),
		sessSvc:    session.NewService(db, sqlxrepos.NewSessionRepository(db)),
		out:        io.Discard,
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)
	var out bytes.Buffer
	cli.out = &out

	assert.Equal(t, errHelp, cli.run([]string{"admin"}))
	assert.Contains(t, out.String(), "resetpassword")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "lol"}))
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCmd string
	var gotArgs []string
	migrateFunc = func(db *sqlx.DB, logger core.Logger, command string, args ...string) error {
		gotCmd, gotArgs = command, args
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
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "3"}))
	assert.Equal(t, "up-to", gotCmd)
	assert.Equal(t, []string{"3"}, gotArgs)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Taken", "taken", "taken@soka.test", "", user.RoleCoach, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing email", args: []string{"adduser", "-name", "Boss", "-username", "boss"}, wantErr: errHelp},
		{name: "empty password", args: []string{"adduser", "-name", "Boss", "-username", "boss", "-email", "boss@soka.test"}, wantErr: errEmptyPassword},
		{
			name:       "unknown role",
			args:       []string{"adduser", "-name", "Boss", "-username", "boss", "-email", "boss@soka.test", "-role", "owner"},
			pwd:        strongPwd,
			wantErrStr: "role",
		},
		{
			name:       "weak password",
			args:       []string{"adduser", "-name", "Boss", "-username", "boss", "-email", "boss@soka.test"},
			pwd:        "password",
			wantErrStr: "invalid user",
		},
		{
			name:       "username taken",
			args:       []string{"adduser", "-name", "Boss", "-username", "Taken", "-email", "boss@soka.test"},
			pwd:        strongPwd,
			wantErrStr: "creating user",
		},
		{
			name: "admin by default",
			args: []string{"adduser", "-name", "Boss", "-username", "Boss", "-email", "Boss@Soka.test"},
			pwd:  strongPwd,
		},
		{
			name: "coach",
			args: []string{"adduser", "-name", "Zizou", "-username", "zidane", "-email", "zidane@soka.test", "-role", "coach"},
			pwd:  strongPwd,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	boss, err := usrRepo.Get(context.Background(), user.GetFilter{Username: "boss", Scope: core.Unrestricted})
	require.NoError(t, err)
	assert.Equal(t, "boss@soka.test", boss.Email)
	assert.Equal(t, user.RoleAdmin, boss.Role)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(strongPwd))

	zidane, err := usrRepo.Get(context.Background(), user.GetFilter{Username: "zidane", Scope: core.Unrestricted})
	require.NoError(t, err)
	assert.Equal(t, user.RoleCoach, zidane.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@soka.test", "", user.RoleCoach, true)
	sess, err := cli.sessSvc.Open(context.Background(), usr.ID, testutil.NewConfig().Server.JWTExpiration)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errEmptyPassword},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: strongPwd, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", "awe"}, pwd: "awe", wantErrStr: "invalid password"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: strongPwd},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@soka.test"}, pwd: "Vq4!zR8#nT2w"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	refreshed, err := usrRepo.Get(context.Background(), user.GetFilter{ID: usr.ID, Scope: core.Unrestricted})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("Vq4!zR8#nT2w"))

	_, err = cli.sessSvc.Check(context.Background(), sess.ID)
	assert.Error(t, err, "sessions are closed after a reset")
}
