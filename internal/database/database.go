package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New opens the SQLite user-data store at the given path.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite: a single writer, keep the pool small
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("✅ SQLite database opened at %s", path)

	return &DB{db}, nil
}

// Initialize creates all required tables
func (db *DB) Initialize() error {
	log.Println("🔍 Checking database schema...")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id      TEXT NOT NULL,
			game_version TEXT NOT NULL,
			data         TEXT NOT NULL,
			updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, game_version)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_profiles table: %w", err)
	}

	if err := db.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("✅ Database initialized successfully")
	return nil
}

// runMigrations runs schema migrations for databases created by older builds.
// Uses pragma table_info to check column existence.
func (db *DB) runMigrations() error {
	columnExists := func(tableName, columnName string) (bool, error) {
		rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
		if err != nil {
			return false, err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				cid        int
				name, typ  string
				notNull    int
				defaultVal sql.NullString
				pk         int
			)
			if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
				return false, err
			}
			if name == columnName {
				return true, nil
			}
		}
		return false, rows.Err()
	}

	// Migration: add updated_at to user_profiles (pre-release schemas lack it)
	if exists, _ := columnExists("user_profiles", "updated_at"); !exists {
		log.Println("📦 Running migration: Adding updated_at to user_profiles table")
		if _, err := db.Exec(`ALTER TABLE user_profiles ADD COLUMN updated_at TIMESTAMP`); err != nil {
			return fmt.Errorf("failed to add updated_at to user_profiles: %w", err)
		}
		log.Println("✅ Migration completed: user_profiles.updated_at added")
	}

	log.Println("✅ All migrations completed")
	return nil
}
