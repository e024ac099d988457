package repos

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// WorkItem is one durable unit of deferred work. Payload is opaque to the
// queue; consumers decode it themselves.
type WorkItem struct {
	ID          string `db:"id"`
	Queue       string `db:"queue"`
	Payload     string `db:"payload"`
	State       string `db:"state"`
	Attempts    int    `db:"attempts"`
	CreatedAt   string `db:"created_at"`
	ProcessedAt string `db:"processed_at"`
}

type QueueRepo struct{ db *sqlx.DB }

func NewQueueRepo(db *sqlx.DB) *QueueRepo { return &QueueRepo{db: db} }

// Enqueue persists a new pending work item and returns its id.
func (r *QueueRepo) Enqueue(queue, payload string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`
		INSERT INTO work_items(id, queue, payload, state) VALUES(?,?,?,'pending')
	`, id, queue, payload)
	return id, err
}

// NextPending returns the oldest pending item of the queue, bumping its
// attempt counter. The boolean reports whether one was found.
func (r *QueueRepo) NextPending(queue string) (WorkItem, bool, error) {
	var item WorkItem
	err := r.db.Get(&item, `
		SELECT id, queue, payload, state, attempts,
		  COALESCE(created_at,'') AS created_at,
		  COALESCE(processed_at,'') AS processed_at
		FROM work_items
		WHERE queue = ? AND state = 'pending'
		ORDER BY rowid
		LIMIT 1
	`, queue)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, false, nil
	}
	if err != nil {
		return WorkItem{}, false, err
	}
	if _, err := r.db.Exec(`UPDATE work_items SET attempts = attempts + 1 WHERE id = ?`, item.ID); err != nil {
		return WorkItem{}, false, err
	}
	item.Attempts++
	return item, true, nil
}

// MarkDone acknowledges the item. Failed items are acknowledged too: the
// workflow logs and swallows processing errors rather than retrying.
func (r *QueueRepo) MarkDone(id string) error {
	_, err := r.db.Exec(`
		UPDATE work_items SET state = 'done', processed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	return err
}

// PendingCount reports how many items of the queue still await processing.
func (r *QueueRepo) PendingCount(queue string) (int, error) {
	var n int
	err := r.db.Get(&n, `
		SELECT COUNT(*) FROM work_items WHERE queue = ? AND state = 'pending'
	`, queue)
	return n, err
}
