package models

import "time"

// User is the slice of the account record the reservation core needs;
// account CRUD lives in another service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
