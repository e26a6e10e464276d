package dig_container

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/Cherif0104/EcosystIA-sub000/apps/api/echo"
	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/dashboard"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	emailsvc "github.com/Cherif0104/EcosystIA-sub000/services/email"
	logsvc "github.com/Cherif0104/EcosystIA-sub000/services/logger"
	"github.com/Cherif0104/EcosystIA-sub000/services/tracing"
	"github.com/Cherif0104/EcosystIA-sub000/storage/database"
	inmemdb "github.com/Cherif0104/EcosystIA-sub000/storage/database/inmem"
	sqlxrepos "github.com/Cherif0104/EcosystIA-sub000/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Store is the app database: PostgreSQL, or an in-memory one when conf.Database.Engine is "memory".
type Store struct {
	SQL    *sqlx.DB // nil in memory
	Memory *inmemdb.DB
}

func (s *Store) Close() error {
	if s.SQL == nil {
		return nil
	}
	return s.SQL.Close()
}

type Repositories struct {
	dig.Out
	Users    user.Repository
	Projects project.Repository
	Courses  course.Repository
	TimeLogs timelog.Repository
	Meetings meeting.Repository
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Tracing    *tracing.Provider

	UserSvc      user.Service
	ProjectSvc   project.Service
	CourseSvc    course.Service
	TimeLogSvc   timelog.Service
	MeetingSvc   meeting.Service
	DashboardSvc dashboard.Service
}

func newZapLogger(conf *core.Config) *zap.Logger {
	return logsvc.NewZapLogger(conf)
}

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) *Store {
	if conf.Database.InMemory() {
		loggerParam.Logger.Warn("using the in-memory database: data will be lost on shutdown")
		return &Store{Memory: inmemdb.Open()}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return &Store{SQL: db}
}

func newRepositories(s *Store) Repositories {
	if s.SQL == nil {
		return Repositories{
			Users:    inmemdb.NewUserRepository(s.Memory),
			Projects: inmemdb.NewProjectRepository(s.Memory),
			Courses:  inmemdb.NewCourseRepository(s.Memory),
			TimeLogs: inmemdb.NewTimeLogRepository(s.Memory),
			Meetings: inmemdb.NewMeetingRepository(s.Memory),
		}
	}
	return Repositories{
		Users:    sqlxrepos.NewUserRepository(s.SQL),
		Projects: sqlxrepos.NewProjectRepository(s.SQL),
		Courses:  sqlxrepos.NewCourseRepository(s.SQL),
		TimeLogs: sqlxrepos.NewTimeLogRepository(s.SQL),
		Meetings: sqlxrepos.NewMeetingRepository(s.SQL),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTracing(conf *core.Config) (*tracing.Provider, error) {
	return tracing.NewProvider(context.Background(), conf)
}

func newProjectService(repo project.Repository, users user.Service, mailSvc core.EmailService) project.Service {
	return project.NewService(repo, users, mailSvc)
}

func newMeetingService(repo meeting.Repository, users user.Service, mailSvc core.EmailService) meeting.Service {
	return meeting.NewService(repo, users, mailSvc)
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Tracing:      p.Tracing,
		UserSvc:      p.UserSvc,
		ProjectSvc:   p.ProjectSvc,
		CourseSvc:    p.CourseSvc,
		TimeLogSvc:   p.TimeLogSvc,
		MeetingSvc:   p.MeetingSvc,
		DashboardSvc: p.DashboardSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newTracing))
	must(c.Provide(user.NewService))
	must(c.Provide(newProjectService))
	must(c.Provide(course.NewService))
	must(c.Provide(timelog.NewEntityResolver))
	must(c.Provide(timelog.NewService))
	must(c.Provide(newMeetingService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
