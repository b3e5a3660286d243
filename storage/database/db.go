package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/storage/database/migrations"
)

const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
)

var errUnknownEngine = errors.New("unknown database engine")

func dsn(dbName string, admin bool, conf *core.Config) (string, error) {
	usr, pwd := conf.Database.User, conf.Database.Password
	if admin && conf.Database.AdminUser != "" {
		usr, pwd = conf.Database.AdminUser, conf.Database.AdminPassword
	}

	switch conf.Database.Engine {
	case EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.User = usr
		cfg.Passwd = pwd
		cfg.Net = "tcp"
		cfg.Addr = conf.Database.Address()
		cfg.DBName = dbName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.ClientFoundRows = true // RowsAffected counts matched rows, not changed ones
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		if !conf.Database.DisableTLS {
			cfg.TLSConfig = "true"
		}
		return cfg.FormatDSN(), nil

	case EnginePostgres:
		sslMode := "require"
		if conf.Database.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(usr, pwd),
			Host:     conf.Database.Address(),
			Path:     dbName,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	default:
		return "", errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	dataSource, err := dsn(dbName, admin, conf)
	if err != nil {
		return nil, err
	}
	return sqlx.Open(conf.Database.Engine, dataSource)
}

// Open opens the application's connection pool. The caller owns the pool and must close it.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)

	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func createPostgresAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	var exists bool
	err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !exists {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createPostgresDB(db *sqlx.DB, conf *core.Config) error {
	var exists bool
	err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the application database (and, on postgres, the application role).
func CreateIfNotExist(conf *core.Config) error {
	switch conf.Database.Engine {
	case EngineMySQL:
		db, err := open("", true, conf)
		if err != nil {
			return errors.Wrap(err, "opening database")
		}
		defer func() { _ = db.Close() }()

		if err = ping(db); err != nil {
			return errors.Wrap(err, "pinging database")
		}
		q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4", conf.Database.Name)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating database")
		}
		return nil

	case EnginePostgres:
		// connect as admin
		adminDB, err := open("postgres", true, conf)
		if err != nil {
			return errors.Wrap(err, "opening database")
		}
		defer func() { _ = adminDB.Close() }()

		if err = ping(adminDB); err != nil {
			return errors.Wrap(err, "pinging database")
		}
		if err = createPostgresAppUser(adminDB, conf); err != nil {
			return errors.Wrap(err, "creating app user")
		}

		// create DB as app user
		db, err := open("postgres", false, conf)
		if err != nil {
			return errors.Wrap(err, "opening database")
		}
		defer func() { _ = db.Close() }()
		return createPostgresDB(db, conf)

	default:
		return errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
}

// RunMigrations runs a goose command against the embedded migrations of the DB's dialect.
func RunMigrations(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := goose.RunContext(ctx, command, db.DB, db.DriverName(), args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	return RunMigrations(ctx, db, "up")
}

// Setup creates the database if needed, opens the pool and applies pending migrations.
func Setup(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := Open(conf)
	if err != nil {
		return nil, err
	}

	if err = Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
