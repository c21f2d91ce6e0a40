package models

import (
	"time"
)

// Team represents an NFL franchise. ID is the feed abbreviation (e.g. "KC").
type Team struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Abbreviation string    `db:"abbreviation"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// TeamInput is a team as it appears on the upstream feed
type TeamInput struct {
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
}

// ToTeam converts TeamInput (from the feed) to Team model
func (ti *TeamInput) ToTeam() *Team {
	name := ti.DisplayName
	if name == "" {
		name = ti.Abbreviation
	}
	return &Team{
		ID:           ti.Abbreviation,
		Name:         name,
		Abbreviation: ti.Abbreviation,
	}
}
