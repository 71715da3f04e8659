package sink

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
)

// PostgresSink mirrors datasets into a PostgreSQL database.
type PostgresSink struct {
	db *gorm.DB
}

// NewPostgres connects to the PostgreSQL database at connectionString.
func NewPostgres(connectionString string) (*PostgresSink, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("could not connect to PostgreSQL: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

func (p *PostgresSink) Replace(table string, ds *dataset.Dataset) error {
	if ds.Rows() == 0 {
		return fmt.Errorf("refusing to load empty dataset into table %s", table)
	}

	if err := p.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlIdent(table))).Error; err != nil {
		return fmt.Errorf("could not drop table %s: %w", table, err)
	}
	if err := p.db.Exec(createTableSQL(table, ds)).Error; err != nil {
		return fmt.Errorf("could not create table %s: %w", table, err)
	}

	stmt := insertSQL(table, ds)
	err := p.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range ds.DF.Records()[1:] {
			if err := tx.Exec(stmt, rowArgs(row)...).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not load table %s: %w", table, err)
	}

	if idx := dateIndexSQL(table, ds); idx != "" {
		if err := p.db.Exec(idx).Error; err != nil {
			return fmt.Errorf("could not index table %s: %w", table, err)
		}
	}

	log.Infof("loaded %d rows into postgres table %s", ds.Rows(), sqlIdent(table))
	return nil
}

func (p *PostgresSink) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
