package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	cachesvc "github.com/trezcool/shule/services/cache"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/reminder"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
	mongorepos "github.com/trezcool/shule/storage/docstore/mongo"
)

const setupTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases a resource opened by the container.
type Closer func(context.Context) error

type StorageResult struct {
	dig.Out
	Students student.Repository
	Fees     fee.Repository
	Exams    exam.Repository
	Closer   Closer `name:"storageCloser"`
}

type CacheResult struct {
	dig.Out
	Cache  core.Cache
	Closer Closer `name:"cacheCloser"`
}

type ClosersParam struct {
	dig.In
	Storage Closer `name:"storageCloser"`
	Cache   Closer `name:"cacheCloser"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) StorageResult {
	logger := loggerParam.Logger
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	switch conf.Storage.Backend {
	case core.StorageMemory:
		logger.Info("using in-memory storage")
		db := inmemdb.Open()
		return StorageResult{
			Students: inmemdb.NewStudentRepository(db),
			Fees:     inmemdb.NewFeeRepository(db),
			Exams:    inmemdb.NewExamRepository(db),
			Closer:   func(context.Context) error { return nil },
		}

	case core.StorageMongo:
		setUp := func() (*mongo.Database, error) {
			db, err := mongorepos.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			return db, mongorepos.EnsureIndexes(ctx, db)
		}
		db, err := setUp()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up mongo: %v", err), err)
		}
		return StorageResult{
			Students: mongorepos.NewStudentRepository(db),
			Fees:     mongorepos.NewFeeRepository(db),
			Exams:    mongorepos.NewExamRepository(db),
			Closer:   db.Client().Disconnect,
		}

	default: // postgres
		if conf.Database.AdminUser != "" {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
			}
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = database.Migrate(ctx, db, "up"); err != nil {
			logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		return StorageResult{
			Students: sqlxrepos.NewStudentRepository(db),
			Fees:     sqlxrepos.NewFeeRepository(db),
			Exams:    sqlxrepos.NewExamRepository(db),
			Closer:   func(context.Context) error { return db.Close() },
		}
	}
}

// newCache returns a redis cache when configured and reachable, an in-memory one otherwise.
func newCache(conf *core.Config, logger core.Logger) CacheResult {
	if conf.Redis.Addr != "" {
		cache := cachesvc.NewRedisCache(cachesvc.NewRedisClient(conf), conf)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := cache.Ping(ctx)
		if err == nil {
			return CacheResult{Cache: cache, Closer: func(context.Context) error { return cache.Close() }}
		}
		logger.Warn(fmt.Sprintf("redis unavailable, falling back to in-memory cache: %v", err), err)
		_ = cache.Close()
	}
	return CacheResult{
		Cache:  cachesvc.NewMemoryCache(conf.Redis.TTL),
		Closer: func(context.Context) error { return nil },
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	exam.InitValidators(validate, translator)
	return validate
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(student.NewService))
	must(c.Provide(fee.NewService))
	must(c.Provide(exam.NewService))
	must(c.Provide(reminder.New))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
