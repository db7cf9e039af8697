package database

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestThatMissingKeyIsNotFound(t *testing.T) {
	if db, ok := newDatabaseForTest(t); ok {
		_, found, err := db.Get(TokenKey)
		if err != nil {
			t.Fatal(err.Error())
		}
		if found {
			t.Error("a fresh store should not contain a token")
		}
	}
}

func TestThatSetOverwritesExistingValue(t *testing.T) {
	if db, ok := newDatabaseForTest(t); ok {
		if err := db.Set(TokenKey, "first"); err != nil {
			t.Fatal(err.Error())
		}
		if err := db.Set(TokenKey, "second"); err != nil {
			t.Fatal(err.Error())
		}

		value, found, _ := db.Get(TokenKey)
		if !found || value != "second" {
			t.Errorf("expected the second value, got %q (found=%v)", value, found)
		}
	}
}

func TestThatDeleteRemovesBothKeys(t *testing.T) {
	if db, ok := newDatabaseForTest(t); ok {
		db.Set(TokenKey, "token")
		db.Set(UserKey, `{"id":1}`)

		if err := db.Delete(TokenKey, UserKey); err != nil {
			t.Fatal(err.Error())
		}

		for _, key := range []string{TokenKey, UserKey} {
			if _, found, _ := db.Get(key); found {
				t.Errorf("%s should have been deleted", key)
			}
		}
	}
}

func TestThatInMemoryStoresAreIsolated(t *testing.T) {
	first, ok1 := newDatabaseForTest(t)
	second, ok2 := newDatabaseForTest(t)
	if !ok1 || !ok2 {
		return
	}

	first.Set(TokenKey, "only-here")

	if _, found, _ := second.Get(TokenKey); found {
		t.Error("in-memory stores should not share state")
	}
}

func TestThatSQLiteFileStoreIsPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")

	db, err := NewDatabaseConnection(NewSQLiteConnector(path), log)
	if err != nil {
		t.Fatal(err.Error())
	}
	db.Set(UserKey, `{"id":5}`)

	reopened, err := NewDatabaseConnection(NewSQLiteConnector(path), log)
	if err != nil {
		t.Fatal(err.Error())
	}

	value, found, _ := reopened.Get(UserKey)
	if !found || value != `{"id":5}` {
		t.Errorf("expected the persisted user, got %q", value)
	}
}

func TestThatUnknownDriverIsRejected(t *testing.T) {
	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")

	if _, err := NewConnector("mysql", "", "", log); err == nil {
		t.Error("expected an error for an unknown driver")
	}
	if _, err := NewConnector("postgres", "", "", log); err == nil {
		t.Error("expected an error for postgres without a dsn")
	}
}

func newDatabaseForTest(t *testing.T) (Store, bool) {
	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")
	db, err := NewDatabaseConnection(NewInMemorySQLiteConnector(), log)

	if err != nil {
		t.Error(err.Error())
		return nil, false
	}

	return db, true
}
