package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/trezcool/goose"
	"golang.org/x/term"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/access"
	"github.com/trezcool/dossier/core/user"
	"github.com/trezcool/dossier/fs"
	"github.com/trezcool/dossier/storage/database"
	sqlxrepos "github.com/trezcool/dossier/storage/database/sqlx"
)

var (
	// mockables
	readPasswordFunc = term.ReadPassword
	gooseRunFunc     = goose.RunFS
	createDBFunc     = database.CreateIfNotExist

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	usrSvc *user.Service
	out    io.Writer
	stdin  int
}

// connect opens the database and builds the services on first use.
func (cli *commandLine) connect() error {
	if cli.db == nil {
		db, err := database.Open(cli.conf)
		if err != nil {
			return err
		}
		cli.db = db
	}
	if cli.usrSvc == nil {
		translator := core.NewTranslator()
		validate := validator.New()
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(cli.db), database.NewTransactor(cli.db), validate, translator)
	}
	return nil
}

func (cli *commandLine) close() {
	if cli.db != nil {
		_ = cli.db.Close()
	}
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(cli.stdin)
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// run executes the command named by args[1:]. args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Dossier administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.createDBCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
	)
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS...]",
		Short:              "Run a goose command (up, down, status, ...) against the database",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			if err := cli.connect(); err != nil {
				return err
			}
			engine := cli.conf.Database.Engine
			if err := database.SetDialect(engine); err != nil {
				return err
			}
			return gooseRunFunc(args[0], cli.db.DB, appfs.FS, appfs.MigrationsDir(engine), args[1:]...)
		},
	}
}

func (cli *commandLine) createDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "createdb",
		Short: "Create the postgres app user and database when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := createDBFunc(cli.conf); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cli.out, "database ready")
			return nil
		},
	}
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		nu   user.NewUser
		role string
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an account with its profile. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nu.Username == "" || nu.Email == "" {
				_ = cmd.Help()
				return errHelp
			}
			r, err := access.ParseRole(role)
			if err != nil {
				return err
			}
			nu.Role = r

			if nu.Password, err = cli.readPassword("Enter password:"); err != nil {
				return err
			}
			if nu.PasswordConfirm, err = cli.readPassword("Confirm password:"); err != nil {
				return err
			}
			if err = cli.connect(); err != nil {
				return err
			}

			usr, prof, err := cli.usrSvc.Create(context.Background(), nu)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "%s %q created\n", prof.Role.Label(), usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Username, "username", "", "the account's username")
	cmd.Flags().StringVar(&nu.Email, "email", "", "the account's email")
	cmd.Flags().StringVar(&role, "role", user.RoleStudent.String(), "student or teacher")
	cmd.Flags().StringVar(&nu.RollNumber, "roll-number", "", "the student's roll number")
	cmd.Flags().BoolVar(&nu.IsSuperuser, "superuser", false, "grant superuser status")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if login == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.readPassword("Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			confirm, err := cli.readPassword("Confirm password:")
			if err != nil {
				return err
			}
			if err = cli.connect(); err != nil {
				return err
			}

			ctx := context.Background()
			usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, login)
			if err != nil {
				return err
			}
			if err = cli.usrSvc.SetPassword(ctx, usr, pwd, confirm); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "password of %q updated\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "username", "", "the user's username or email")
	return cmd
}

// describe formats err for the terminal, listing field errors one per line.
func describe(err error) string {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || len(vErr.Fields) == 0 {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(vErr.Error())
	for _, fld := range vErr.Fields {
		_, _ = fmt.Fprintf(&b, "\n  %s: %s", fld.Field, fld.Error)
	}
	return b.String()
}
