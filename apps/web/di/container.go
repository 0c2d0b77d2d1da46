// Package di wires the web application with a dig container.
package di

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/trezcool/dossier/apps/web/echo"
	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/submission"
	"github.com/trezcool/dossier/core/user"
	logsvc "github.com/trezcool/dossier/services/logger"
	"github.com/trezcool/dossier/storage/blob"
	"github.com/trezcool/dossier/storage/database"
	sqlxrepos "github.com/trezcool/dossier/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	DB            *sqlx.DB
	UserSvc       *user.Service
	CategorySvc   *category.Service
	SubmissionSvc *submission.Service
}

func newLogger(name string) func(conf *core.Config) (core.Logger, error) {
	return func(conf *core.Config) (core.Logger, error) {
		zl, err := logsvc.NewZapLogger(conf, name)
		if err != nil {
			return nil, errors.Wrap(err, "building zap logger")
		}
		logger := logsvc.NewRollbarLogger(zl, conf)
		logger.Enable(!conf.Debug && conf.RollbarToken != "")
		return logger, nil
	}
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newBlobStore(conf *core.Config) (core.BlobStore, error) {
	return blob.New(context.Background(), conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newServer(p ServerParam) (*echoweb.Server, error) {
	return echoweb.NewServer(&echoweb.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		DB:            p.DB,
		UserSvc:       p.UserSvc,
		CategorySvc:   p.CategorySvc,
		SubmissionSvc: p.SubmissionSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger("web")))
	must(c.Provide(newLogger("db"), dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(func(db *sqlx.DB) core.DBExecutor { return db }))
	must(c.Provide(func(db *sqlx.DB) core.Transactor { return database.NewTransactor(db) }))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCategoryRepository, dig.As(new(category.Repository))))
	must(c.Provide(sqlxrepos.NewSubmissionRepository, dig.As(new(submission.Repository))))
	must(c.Provide(newBlobStore))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(category.NewService))
	must(c.Provide(func(svc *category.Service) submission.Categories { return svc }))
	must(c.Provide(submission.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
