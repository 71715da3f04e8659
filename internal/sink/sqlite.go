package sink

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
)

// SQLiteSink mirrors datasets into a local SQLite file.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at path.
func NewSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to sqlite database %s: %w", path, err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Replace(table string, ds *dataset.Dataset) error {
	if ds.Rows() == 0 {
		return fmt.Errorf("refusing to load empty dataset into table %s", table)
	}

	if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlIdent(table))); err != nil {
		return fmt.Errorf("could not drop table %s: %w", table, err)
	}
	if _, err := s.db.Exec(createTableSQL(table, ds)); err != nil {
		return fmt.Errorf("could not create table %s: %w", table, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertSQL(table, ds))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("could not prepare insert for table %s: %w", table, err)
	}
	for _, row := range ds.DF.Records()[1:] {
		if _, err := stmt.Exec(rowArgs(row)...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("could not insert row into table %s: %w", table, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit load of table %s: %w", table, err)
	}

	if idx := dateIndexSQL(table, ds); idx != "" {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("could not index table %s: %w", table, err)
		}
	}

	log.Infof("loaded %d rows into sqlite table %s", ds.Rows(), sqlIdent(table))
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
