package model

// Metrics is the global operational rollup across every event.
type Metrics struct {
	TotalEvents       int `json:"total_events" db:"total_events"`
	TotalHolds        int `json:"total_holds" db:"total_holds"`
	ActiveHolds       int `json:"active_holds" db:"active_holds"`
	ExpiredHolds      int `json:"expired_holds" db:"expired_holds"`
	TotalBookings     int `json:"total_bookings" db:"total_bookings"`
	TotalSeatsBooked  int `json:"total_seats_booked" db:"total_seats_booked"`
	TotalSeatsHeld    int `json:"total_seats_held" db:"total_seats_held"`
	HoldsExpiringSoon int `json:"holds_expiring_soon" db:"holds_expiring_soon"`
}
