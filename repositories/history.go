package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IHistoryRepository interface {
	Append(record HistoryRecord) error
	Recent(sessionID string, limit int) ([]HistoryRecord, error)
}

// HistoryRecord is one persisted relay event. Lang and ContentType are
// enrichment computed at persistence time; the relay core never sees them.
type HistoryRecord struct {
	ID          uuid.UUID `json:"id"`
	SessionID   string    `json:"sessionId"`
	Tag         string    `json:"tag"`
	Actor       string    `json:"actor,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	At          time.Time `json:"at"`
}

type HistoryRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limit *int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limit: limit}
}

// Append persists one record. The key is "evt:{session}:{timestamp_padded}:{uuid}":
// 19-digit zero padding keeps keys chronologically sorted under
// lexicographical order, and the UUID disambiguates two events landing on
// the same nanosecond.
func (r HistoryRepository) Append(record HistoryRecord) error {
	key := fmt.Sprintf("evt:%s:%019d:%s",
		record.SessionID,
		record.At.UnixNano(),
		record.ID,
	)
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns up to limit records of a session, newest first, via a
// reverse prefix scan. The repository-level limit, when set, caps the
// caller's request.
func (r HistoryRepository) Recent(sessionID string, limit int) ([]HistoryRecord, error) {
	if r.limit != nil && limit > *r.limit {
		limit = *r.limit
	}

	var records []HistoryRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("evt:%s:", sessionID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec HistoryRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}
