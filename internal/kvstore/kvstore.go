// Package kvstore keeps document metadata and chat history in an embedded
// badger database, for deployments without postgres.
package kvstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"aqua-rag/internal/helper"
	"aqua-rag/internal/models"
)

const (
	documentPrefix = "doc:"
	messagePrefix  = "msg:"
	sequenceKey    = "seq"

	sequenceBandwidth = 100
)

// badgerLogger routes badger's log lines into zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.logger.Trace().Msg(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens the database at path, creating the folder when needed.
// With inMemory set, path is ignored and nothing touches the disk.
func Open(path string, inMemory bool) (*Store, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := helper.CreateFolder(path); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{logger: log.Logger.With().Str("component", "badger").Logger()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		log.Warn().Err(err).Msg("Failed to release badger sequence")
	}
	return s.db.Close()
}

// next returns a strictly increasing id, skipping the 0 a fresh sequence starts at.
func (s *Store) next() (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return s.seq.Next()
	}
	return id, nil
}

func documentKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", documentPrefix, id))
}

// chat ids are hex encoded so one chat's prefix never matches another's keys.
func chatPrefix(chatID string) []byte {
	return []byte(messagePrefix + hex.EncodeToString([]byte(chatID)) + ":")
}

func messageKey(chatID string, id uint64) []byte {
	return append(chatPrefix(chatID), []byte(fmt.Sprintf("%020d", id))...)
}

func (s *Store) put(key []byte, v any) error {
	value, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *Store) RecordDocument(ctx context.Context, filename, filepath string, uploadedAt time.Time) error {
	id, err := s.next()
	if err != nil {
		return err
	}
	return s.put(documentKey(id), models.DocumentRecord{
		Filename:   filename,
		Filepath:   filepath,
		UploadedAt: uploadedAt,
	})
}

// Documents lists the recorded documents, oldest first.
func (s *Store) Documents(ctx context.Context) ([]models.DocumentRecord, error) {
	var out []models.DocumentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec models.DocumentRecord
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *Store) SaveMessage(ctx context.Context, chatID, role, message string) error {
	id, err := s.next()
	if err != nil {
		return err
	}
	return s.put(messageKey(chatID, id), models.Message{
		ChatID:    chatID,
		Role:      role,
		Text:      message,
		CreatedAt: time.Now().UTC(),
	})
}

// Messages returns up to n of the newest messages of a chat, oldest first.
// n <= 0 returns them all.
func (s *Store) Messages(ctx context.Context, chatID string, n int) ([]models.Message, error) {
	prefix := chatPrefix(chatID)
	var newest []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte(nil), prefix...), 0xff)); it.Valid(); it.Next() {
			if n > 0 && len(newest) == n {
				break
			}
			var m models.Message
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			newest = append(newest, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// GetHistory returns the last limit exchanges (2*limit messages) of a chat.
func (s *Store) GetHistory(ctx context.Context, chatID string, limit int) (string, error) {
	if limit <= 0 {
		return "", nil
	}
	msgs, err := s.Messages(ctx, chatID, limit*2)
	if err != nil {
		return "", err
	}
	return models.FormatHistory(msgs), nil
}
