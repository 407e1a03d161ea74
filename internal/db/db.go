package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"aqua-rag/internal/config"
	"aqua-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Filename      string    `bun:"filename,notnull"`
	Filepath      string    `bun:"filepath,notnull"`
	UploadedAt    time.Time `bun:"uploaded_at,notnull"`
}

type Message struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ChatID        string    `bun:"chat_id,notnull"`
	Role          string    `bun:"role,notnull"`
	Message       string    `bun:"message,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver. Connections are
// made lazily, on first use.
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	switch dbConfig.Driver {
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case config.DriverPostgres:
		return sql.Open("postgres", dbConfig.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbConfig.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{(*Document)(nil), (*Message)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*Message)(nil)).
		Index("conversations_chat_id_idx").
		Column("chat_id", "id").
		IfNotExists().
		Exec(ctx)
	return err
}

// Store keeps document metadata and chat history in postgres.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordDocument(ctx context.Context, filename, filepath string, uploadedAt time.Time) error {
	doc := &Document{Filename: filename, Filepath: filepath, UploadedAt: uploadedAt}
	_, err := s.db.NewInsert().Model(doc).Exec(ctx)
	return err
}

// Documents lists the recorded documents, oldest first.
func (s *Store) Documents(ctx context.Context) ([]models.DocumentRecord, error) {
	var docs []Document
	if err := s.db.NewSelect().Model(&docs).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]models.DocumentRecord, len(docs))
	for i, d := range docs {
		out[i] = models.DocumentRecord{Filename: d.Filename, Filepath: d.Filepath, UploadedAt: d.UploadedAt}
	}
	return out, nil
}

func (s *Store) SaveMessage(ctx context.Context, chatID, role, message string) error {
	msg := &Message{ChatID: chatID, Role: role, Message: message, CreatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().Model(msg).Exec(ctx)
	return err
}

// GetHistory returns the last limit exchanges (2*limit messages) of a chat.
func (s *Store) GetHistory(ctx context.Context, chatID string, limit int) (string, error) {
	if limit <= 0 {
		return "", nil
	}
	var rows []Message
	if err := historyQuery(s.db, &rows, chatID, limit).Scan(ctx); err != nil {
		return "", err
	}
	return models.FormatHistory(toMessages(rows)), nil
}

func historyQuery(db *bun.DB, rows *[]Message, chatID string, limit int) *bun.SelectQuery {
	return db.NewSelect().
		Model(rows).
		Column("role", "message").
		Where("chat_id = ?", chatID).
		OrderExpr("id DESC").
		Limit(limit * 2)
}

// toMessages reverses newest-first rows into chat order.
func toMessages(rows []Message) []models.Message {
	out := make([]models.Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = models.Message{ChatID: r.ChatID, Role: r.Role, Text: r.Message, CreatedAt: r.CreatedAt}
	}
	return out
}
