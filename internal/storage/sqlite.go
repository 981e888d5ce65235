package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

type SQLiteStorage struct {
	db        *sql.DB
	container *sqlstore.Container
}

func NewSQLite(path string, log zerolog.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	// whatsmeow refuses to run without foreign keys.
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	container := sqlstore.NewWithDB(db, "sqlite3", messaging.NewLogger(log, "store"))
	return &SQLiteStorage{db: db, container: container}, nil
}

// Migrate brings the device store schema up to date.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := s.container.Upgrade(ctx); err != nil {
		return fmt.Errorf("upgrade session store: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetFirstDevice(ctx context.Context) (*store.Device, error) {
	return s.container.GetFirstDevice(ctx)
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ SessionStore = (*SQLiteStorage)(nil)
