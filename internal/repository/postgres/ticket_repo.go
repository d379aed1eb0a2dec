package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bouncer/internal/domain"
)

const ticketColumns = `id, event_id, name, price, quantity_available, purchase_deadline, created_at`

type ticketRepository struct {
	DB *sql.DB
}

// NewTicketRepository returns a domain.TicketRepository implemented with Postgres.
func NewTicketRepository(db *sql.DB) domain.TicketRepository {
	return &ticketRepository{DB: db}
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	var deadlineNull sql.NullTime
	if err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.QuantityAvailable, &deadlineNull, &t.CreatedAt); err != nil {
		return nil, err
	}
	if deadlineNull.Valid {
		t.PurchaseDeadline = &deadlineNull.Time
	}
	return t, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *ticketRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = $1 ORDER BY price, name`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) DeleteByEventID(ctx context.Context, eventID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM tickets WHERE event_id = $1`, eventID)
	return err
}

// CreateBatch inserts all tickets with one multi-row INSERT and sets their IDs in order.
func (r *ticketRepository) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	values := make([]string, 0, len(tickets))
	args := make([]any, 0, len(tickets)*6)
	for i, t := range tickets {
		base := i * 6
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, t.EventID, t.Name, t.Price, t.QuantityAvailable, t.PurchaseDeadline, t.CreatedAt)
	}
	query := `
		INSERT INTO tickets (event_id, name, price, quantity_available, purchase_deadline, created_at)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id
	`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	i := 0
	for rows.Next() {
		if i >= len(tickets) {
			return fmt.Errorf("insert tickets: more ids returned than rows inserted")
		}
		if err := rows.Scan(&tickets[i].ID); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

// Decrement removes one unit of inventory if any remains. The conditional UPDATE is the
// single point of serialization for concurrent reservations of the same ticket.
func (r *ticketRepository) Decrement(ctx context.Context, ticketID string) (int, error) {
	query := `
		UPDATE tickets
		SET quantity_available = quantity_available - 1
		WHERE id = $1 AND quantity_available > 0
		RETURNING quantity_available
	`
	var remaining int
	err := r.DB.QueryRowContext(ctx, query, ticketID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrTicketUnavailable
		}
		return 0, err
	}
	return remaining, nil
}

func (r *ticketRepository) Increment(ctx context.Context, ticketID string) error {
	query := `UPDATE tickets SET quantity_available = quantity_available + 1 WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, ticketID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
