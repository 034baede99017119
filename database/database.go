package database

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/scanradar/scanradar/config"
)

func Open(cfg config.Config) (db *sql.DB, err error) {
	db, err = sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}
