package model

import "time"

// Member is one musician of the roster.
type Member struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	FechaIngreso *time.Time `json:"fecha_ingreso,omitempty"`
}
