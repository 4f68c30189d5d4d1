package database

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cenk/backoff"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/soka/core"
	appfs "github.com/trezcool/soka/fs"
)

const (
	EngineSQLite   = "sqlite3"
	EnginePostgres = "postgres"

	migrationsDir = "migrations"
)

var errUnknownEngine = errors.New("unknown database engine")

// dsn returns the data source name of the configured database.
func dsn(conf *core.Config) (string, error) {
	switch conf.Database.Engine {
	case EngineSQLite:
		q := make(url.Values)
		q.Set("_foreign_keys", "on")
		q.Set("_busy_timeout", "5000")
		return "file:" + conf.Database.Name + "?" + q.Encode(), nil
	case EnginePostgres:
		sslMode := "require"
		if conf.Database.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   conf.Database.Engine,
			User:     url.UserPassword(conf.Database.User, conf.Database.Password),
			Host:     conf.Database.Address(),
			Path:     conf.Database.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	default:
		return "", errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
}

// Open opens the configured database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	src, err := dsn(conf)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(conf.Database.Engine, src)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if conf.Database.Engine == EngineSQLite && isMemory(conf.Database.Name) {
		// every connection to an in-memory database gets its own database
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
		db.SetMaxIdleConns(conf.Database.MaxIdleConns)
		db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	}

	if err = ping(db, conf); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func isMemory(name string) bool {
	return name == ":memory:" || strings.HasPrefix(name, ":memory:?") || strings.Contains(name, "mode=memory")
}

// ping waits for the database to be ready, backing off exponentially between attempts.
func ping(db *sqlx.DB, conf *core.Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = conf.Database.ConnectTimeout

	if err := backoff.Retry(db.Ping, bo); err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies the embedded migrations of the db's engine.
func Migrate(db *sqlx.DB, logger core.Logger) error {
	return RunMigrations(db, logger, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo...) against the embedded migrations.
func RunMigrations(db *sqlx.DB, logger core.Logger, command string, args ...string) error {
	engine := db.DriverName()
	if err := setupGoose(engine, logger); err != nil {
		return err
	}
	dir := path.Join(migrationsDir, engine)
	if err := goose.Run(command, db.DB, dir, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("running migrations (%s)", command))
	}
	return nil
}

func setupGoose(engine string, logger core.Logger) error {
	goose.SetBaseFS(appfs.FS)
	goose.SetLogger(gooseLogger{logger: logger})
	return errors.Wrap(goose.SetDialect(engine), "setting goose dialect")
}

// gooseLogger sends goose's output to the app logger.
type gooseLogger struct {
	logger core.Logger
}

func (l gooseLogger) Fatal(v ...interface{}) {
	if l.logger != nil {
		l.logger.Fatal(fmt.Sprint(v...))
	}
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Fatal(fmt.Sprintf(format, v...))
	}
}

func (l gooseLogger) Print(v ...interface{}) {
	if l.logger != nil {
		l.logger.Info(strings.TrimSpace(fmt.Sprint(v...)))
	}
}

func (l gooseLogger) Println(v ...interface{}) {
	if l.logger != nil {
		l.logger.Info(strings.TrimSpace(fmt.Sprintln(v...)))
	}
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
	}
}
