package models

import "time"

// Client is the identity anchor for an advertiser.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientListFilter for filtering clients
type ClientListFilter struct {
	Search string
	Limit  int
	Offset int
}
