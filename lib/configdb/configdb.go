package configdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct is the database section of a json5 config file. Exactly one of
// File (local sqlite) or Url (remote libsql) should be set.
type Struct struct {
	File string `json:"file"`
	Url  string `json:"url"`
	// authentication token for remote libsql databases
	Token string `json:"token"`
}

func (config Struct) open() (*sql.DB, error) {
	if config.Url != "" {
		connector := config.Url
		if config.Token != "" {
			connector = fmt.Sprintf("%s?authToken=%s", config.Url, config.Token)
		}
		return sql.Open("libsql", connector)
	}

	if config.File == "" {
		return nil, fmt.Errorf("neither a database file nor a url was specified")
	}

	err := os.MkdirAll(filepath.Dir(config.File), 0755)
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(config.File)
	if os.IsNotExist(statErr) {
		f, err := os.Create(config.File)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	return db, nil
}

// OpenDB opens the configured database and applies the given schema.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	db, err := config.open()
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, err
	}
	return db, nil
}
