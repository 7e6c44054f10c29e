package repository

import (
	"context"
	"encoding/json"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

// ListReservationsForDate reads the booking subsystem's reservations for one
// calendar date.
func (r *Repository) ListReservationsForDate(ctx context.Context, dateKey string) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date_key, phone, email, first_name, last_name, status,
		       marked_noshow_at, client_id, preferred_language, acquisition_source
		FROM reservations
		WHERE date_key = $1
		ORDER BY created_at ASC
	`, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		var (
			res     domain.Reservation
			dateKey time.Time
		)
		if err := rows.Scan(&res.ID, &dateKey, &res.Phone, &res.Email, &res.FirstName,
			&res.LastName, &res.Status, &res.MarkedNoShowAt, &res.ClientID,
			&res.PreferredLanguage, &res.AcquisitionSource); err != nil {
			return nil, err
		}
		res.DateKey = domain.FormatDateKey(dateKey)
		reservations = append(reservations, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return reservations, nil
}

// eventMetadata is the subset of the booking subsystem's event metadata the
// CRM consumes.
type eventMetadata struct {
	IsLateCancellation bool `json:"isLateCancellation"`
}

// ListReservationEvents reads a reservation's status-change audit trail in
// chronological order.
func (r *Repository) ListReservationEvents(ctx context.Context, reservationID uuid.UUID) ([]domain.ReservationEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reservation_id, event_type, from_status, to_status, metadata, created_at
		FROM reservation_events
		WHERE reservation_id = $1
		ORDER BY created_at ASC
	`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.ReservationEvent, 0)
	for rows.Next() {
		var (
			event domain.ReservationEvent
			raw   []byte
		)
		if err := rows.Scan(&event.ID, &event.ReservationID, &event.EventType,
			&event.FromStatus, &event.ToStatus, &raw, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			var meta eventMetadata
			// Unknown metadata shapes are ignored, not fatal.
			if err := json.Unmarshal(raw, &meta); err == nil {
				event.IsLateCancellation = meta.IsLateCancellation
			}
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// ActiveRestaurant returns the single active restaurant, or nil when none is
// configured. Absence is a skip condition for the caller, not an error.
func (r *Repository) ActiveRestaurant(ctx context.Context) (*domain.Restaurant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, timezone, is_active
		FROM restaurants
		WHERE is_active = true
		ORDER BY created_at ASC
		LIMIT 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var restaurant domain.Restaurant
	if err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.Timezone, &restaurant.IsActive); err != nil {
		return nil, err
	}
	return &restaurant, nil
}
