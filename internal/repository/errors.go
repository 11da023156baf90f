package repository

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrSeatTaken = errors.New("seat already taken for this trip")
	ErrNoSeats   = errors.New("no available seats")
)
