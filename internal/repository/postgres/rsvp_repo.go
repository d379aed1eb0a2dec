package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"bouncer/internal/domain"
)

const rsvpColumns = `id, event_id, ticket_id, user_id, name, email, approved, payment_proof_ref, status, amount_paid, created_at`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type rsvpRepository struct {
	DB *sql.DB
}

func NewRSVPRepository(db *sql.DB) domain.RSVPRepository {
	return &rsvpRepository{
		DB: db,
	}
}

func scanRSVP(row rowScanner) (*domain.RSVP, error) {
	v := &domain.RSVP{}
	var ticketNull, proofNull sql.NullString
	var amountNull sql.NullFloat64
	if err := row.Scan(
		&v.ID, &v.EventID, &ticketNull, &v.UserID, &v.Name, &v.Email,
		&v.Approved, &proofNull, &v.Status, &amountNull, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	if ticketNull.Valid {
		v.TicketID = &ticketNull.String
	}
	if proofNull.Valid {
		v.PaymentProofRef = &proofNull.String
	}
	if amountNull.Valid {
		v.AmountPaid = &amountNull.Float64
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const insertRSVP = `
	INSERT INTO rsvps (event_id, ticket_id, user_id, name, email, approved, payment_proof_ref, status, amount_paid, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
`

func rsvpInsertArgs(v *domain.RSVP) []any {
	return []any{v.EventID, v.TicketID, v.UserID, v.Name, v.Email, v.Approved, v.PaymentProofRef, v.Status, v.AmountPaid, v.CreatedAt}
}

func (r *rsvpRepository) Create(ctx context.Context, v *domain.RSVP) error {
	err := r.DB.QueryRowContext(ctx, insertRSVP, rsvpInsertArgs(v)...).Scan(&v.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRSVP, err)
		}
		return err
	}
	return nil
}

// ReserveInTx decrements the ticket and inserts the RSVP in one transaction.
// Either both happen or neither does.
func (r *rsvpRepository) ReserveInTx(ctx context.Context, v *domain.RSVP) (int, error) {
	if v.TicketID == nil {
		return 0, fmt.Errorf("%w: ticket is required", domain.ErrInvalidInput)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var remaining int
	err = tx.QueryRowContext(ctx, `
		UPDATE tickets
		SET quantity_available = quantity_available - 1
		WHERE id = $1 AND quantity_available > 0
		RETURNING quantity_available
	`, *v.TicketID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrTicketUnavailable
		}
		return 0, err
	}
	if err := tx.QueryRowContext(ctx, insertRSVP, rsvpInsertArgs(v)...).Scan(&v.ID); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrDuplicateRSVP, err)
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrRSVPCreation, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *rsvpRepository) GetByID(ctx context.Context, id string) (*domain.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE id = $1`
	v, err := scanRSVP(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *rsvpRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE event_id = $1 AND user_id = $2`
	v, err := scanRSVP(r.DB.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *rsvpRepository) list(ctx context.Context, query string, arg any) ([]*domain.RSVP, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*domain.RSVP, 0)
	for rows.Next() {
		v, err := scanRSVP(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *rsvpRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.RSVP, error) {
	return r.list(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE event_id = $1 ORDER BY created_at`, eventID)
}

func (r *rsvpRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.RSVP, error) {
	return r.list(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *rsvpRepository) ListGuestUserIDs(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM rsvps WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *rsvpRepository) FilterGuestEmails(ctx context.Context, eventID string, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return []string{}, nil
	}
	query := `SELECT DISTINCT email FROM rsvps WHERE event_id = $1 AND lower(email) = ANY($2) ORDER BY email`
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}
	rows, err := r.DB.QueryContext(ctx, query, eventID, pq.Array(lowered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make([]string, 0, len(emails))
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		found = append(found, email)
	}
	return found, rows.Err()
}

func (r *rsvpRepository) Update(ctx context.Context, id string, patch domain.RSVPPatch) (*domain.RSVP, error) {
	var setClauses []string
	args := []any{}
	n := 1
	if patch.Approved != nil {
		setClauses = append(setClauses, fmt.Sprintf("approved = $%d", n))
		args = append(args, *patch.Approved)
		n++
	}
	if patch.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", n))
		args = append(args, *patch.Status)
		n++
	}
	if patch.AmountPaid != nil {
		setClauses = append(setClauses, fmt.Sprintf("amount_paid = $%d", n))
		args = append(args, *patch.AmountPaid)
		n++
	}
	if n == 1 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE rsvps SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), n, rsvpColumns)
	v, err := scanRSVP(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *rsvpRepository) DeleteByEventID(ctx context.Context, eventID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM rsvps WHERE event_id = $1`, eventID)
	return err
}

func (r *rsvpRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM rsvps WHERE user_id = $1`, userID)
	return err
}
