package reservation

import "time"

const (
	EventReservationHeld      = "ReservationHeld"
	EventReservationConfirmed = "ReservationConfirmed"
	EventReservationCancelled = "ReservationCancelled"
	EventReservationExpired   = "ReservationExpired"
)

type ReservationHeld struct {
	ReservationID string    `json:"reservation_id"`
	CustomerID    string    `json:"customer_id"`
	Lines         []Line    `json:"lines"`
	ExpiresAt     time.Time `json:"expires_at"`
	HeldAt        time.Time `json:"held_at"`
}

type ReservationConfirmed struct {
	ReservationID string    `json:"reservation_id"`
	OrderID       string    `json:"order_id,omitempty"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type ReservationCancelled struct {
	ReservationID string    `json:"reservation_id"`
	OrderID       string    `json:"order_id,omitempty"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type ReservationExpired struct {
	ReservationID string    `json:"reservation_id"`
	CustomerID    string    `json:"customer_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}
