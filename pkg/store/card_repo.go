package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCardNotFound is returned when no board card matches the id.
var ErrCardNotFound = errors.New("card not found")

// Card statuses form the CRM board columns.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// ValidStatus reports whether s is a known board column.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Card is a CRM board card tied to a WhatsApp contact.
type Card struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ContactID string    `json:"contactId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CardRepo persists CRM board cards.
type CardRepo struct {
	db *sql.DB
}

// NewCardRepo creates a card repository.
func NewCardRepo(db *sql.DB) *CardRepo {
	return &CardRepo{db: db}
}

// Create inserts a card. An empty status defaults to TODO.
func (r *CardRepo) Create(ctx context.Context, title, contactID, status string) (Card, error) {
	if status == "" {
		status = StatusTodo
	}
	if !ValidStatus(status) {
		return Card{}, fmt.Errorf("invalid card status %q", status)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO crm_cards (title, contact_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title, contactID, status, now, now,
	)
	if err != nil {
		return Card{}, fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Card{}, fmt.Errorf("card id: %w", err)
	}

	return Card{
		ID:        id,
		Title:     title,
		ContactID: contactID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// List returns all cards, newest first.
func (r *CardRepo) List(ctx context.Context) ([]Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, contact_id, status, created_at, updated_at
		 FROM crm_cards ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]Card, 0)
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.Title, &c.ContactID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpdateStatus moves a card to another board column.
func (r *CardRepo) UpdateStatus(ctx context.Context, id int64, status string) (Card, error) {
	if !ValidStatus(status) {
		return Card{}, fmt.Errorf("invalid card status %q", status)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE crm_cards SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return Card{}, fmt.Errorf("update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Card{}, ErrCardNotFound
	}
	return r.find(ctx, id)
}

// Delete removes a card.
func (r *CardRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM crm_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *CardRepo) find(ctx context.Context, id int64) (Card, error) {
	var c Card
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, contact_id, status, created_at, updated_at FROM crm_cards WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.ContactID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrCardNotFound
	}
	if err != nil {
		return Card{}, fmt.Errorf("scan card: %w", err)
	}
	return c, nil
}
