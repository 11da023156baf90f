package domain

import "time"

type Route struct {
	ID          int64
	Origin      string
	Destination string
	DistanceKM  int
}

type Bus struct {
	ID          int64
	PlateNumber string
	SeatCount   int
}

type Trip struct {
	ID             int64
	RouteID        int64
	BusID          int64
	Origin         string
	Destination    string
	PlateNumber    string
	DepartureTime  time.Time
	TotalSeats     int
	AvailableSeats int
	PriceCents     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
