package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/repositories/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

//Keys persisted by the session
const (
	TokenKey = "auth_token"
	UserKey  = "auth_user"
)

//Store is an interface that is used to inject the persisted client state into the session to improve testability
type Store interface {
	Get(name string) (string, bool, error)
	Set(name, value string) error
	Delete(names ...string) error
}

type myDB struct {
	impl *gorm.DB
}

//ConnectorFunc is used to inject a database connection method into NewDatabaseConnection
type ConnectorFunc func() (*gorm.DB, error)

//NewPostgreSQLConnector opens a connection to a postgresql database, retrying with exponential backoff
func NewPostgreSQLConnector(dsn string, log logging.Logger) ConnectorFunc {
	return func() (*gorm.DB, error) {
		var db *gorm.DB

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 30 * time.Second

		err := backoff.Retry(func() error {
			log.Infof("Connecting to state database ...")

			var err error
			db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				log.Warnf("Failed to connect to state database: %s", err.Error())
			}
			return err
		}, backoff.WithMaxRetries(bo, 4))

		if err != nil {
			return nil, fmt.Errorf("could not connect to state database: %w", err)
		}

		return db, nil
	}
}

//NewSQLiteConnector opens (and creates if needed) a sqlite database file at path
func NewSQLiteConnector(path string) ConnectorFunc {
	return func() (*gorm.DB, error) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("unable to create state directory: %w", err)
			}
		}

		return gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	}
}

//NewInMemorySQLiteConnector opens a private in-memory sqlite database, mostly used by tests
func NewInMemorySQLiteConnector() ConnectorFunc {
	return func() (*gorm.DB, error) {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}

		// the database lives as long as one connection stays open
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)

		return db, nil
	}
}

//NewConnector picks a connector from the configured driver name
func NewConnector(driver, sqlitePath, postgresDSN string, log logging.Logger) (ConnectorFunc, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteConnector(sqlitePath), nil
	case "memory":
		return NewInMemorySQLiteConnector(), nil
	case "postgres":
		if postgresDSN == "" {
			return nil, errors.New("postgres state driver requires FARMDASH_POSTGRES_DSN")
		}
		return NewPostgreSQLConnector(postgresDSN, log), nil
	}

	return nil, fmt.Errorf("unknown state driver %q", driver)
}

//NewDatabaseConnection initializes a new connection to the database and wraps it in a Store
func NewDatabaseConnection(connect ConnectorFunc, log logging.Logger) (Store, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	if err = impl.AutoMigrate(&models.StoredValue{}); err != nil {
		log.Errorf("Failed to migrate state database: %s", err.Error())
		return nil, err
	}

	return &myDB{impl: impl}, nil
}

func (db *myDB) Get(name string) (string, bool, error) {
	value := models.StoredValue{}

	result := db.impl.Where("name = ?", name).Limit(1).Find(&value)
	if result.Error != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", name, result.Error)
	}

	if result.RowsAffected == 0 {
		return "", false, nil
	}

	return value.Value, true, nil
}

func (db *myDB) Set(name, value string) error {
	result := db.impl.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.StoredValue{Name: name, Value: value})

	if result.Error != nil {
		return fmt.Errorf("failed to store %s: %w", name, result.Error)
	}

	return nil
}

func (db *myDB) Delete(names ...string) error {
	if len(names) == 0 {
		return nil
	}

	result := db.impl.Where("name IN ?", names).Delete(&models.StoredValue{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete %v: %w", names, result.Error)
	}

	return nil
}
