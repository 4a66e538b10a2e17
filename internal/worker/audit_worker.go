// Package worker consumes ledger events and appends them to a JSONL audit
// archive. The archive is the durable trail external tooling tails; the
// worker fetches each expense row from storage so the stream itself can stay
// lightweight.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finny/internal/amqp"
	"finny/internal/log"
	"finny/internal/storage"
)

// auditRecord is one archived line.
type auditRecord struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id"`
	ExpenseID   int64     `json:"expense_id,omitempty"`
	Category    string    `json:"category,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Description string    `json:"description,omitempty"`
	SpentAt     time.Time `json:"spent_at,omitempty"`
	Level       int       `json:"level,omitempty"`
	EventAt     time.Time `json:"event_at"`
	ArchivedAt  time.Time `json:"archived_at"`
}

type AuditWorker struct {
	storage *storage.SQLiteRepository
	path    string
	logger  *log.Logger

	mu sync.Mutex // serializes archive writes
}

func NewAuditWorker(storage *storage.SQLiteRepository, archivePath string, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &AuditWorker{
		storage: storage,
		path:    archivePath,
		logger:  logger,
	}
}

// HandleEvent processes one ledger event. Errors requeue the delivery, so
// the handler must stay idempotent: re-archiving an expense writes a
// duplicate line, which downstream consumers dedupe on expense_id.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	rec := auditRecord{
		Kind:       msg.Kind,
		UserID:     msg.UserID,
		Level:      msg.Level,
		EventAt:    msg.Timestamp,
		ArchivedAt: time.Now(),
	}

	if msg.Kind == amqp.KindExpenseLogged {
		row, err := w.storage.GetExpense(ctx, msg.ExpenseID)
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		rec.ExpenseID = row.ID
		rec.Category = row.Category
		rec.AmountCents = row.AmountCents
		rec.Description = row.Description
		rec.SpentAt = row.SpentAt
	}

	if err := w.archive(rec); err != nil {
		return fmt.Errorf("archive event: %w", err)
	}

	w.logger.InfoContext(ctx, "Archived ledger event",
		log.FieldEventKind, msg.Kind,
		log.FieldUserID, msg.UserID,
		log.FieldExpenseID, msg.ExpenseID)

	return nil
}

func (w *AuditWorker) archive(rec auditRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write archive line: %w", err)
	}
	return nil
}
