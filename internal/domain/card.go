package domain

import "time"

// CardStatus represents the lifecycle status of a stored card.
type CardStatus string

const (
	CardStatusActive CardStatus = "ACTIVE"
)

// Card is a vaulted payment card. Name, Number, ExpMonth, ExpYear and CVV
// always hold ciphertext once the card has been stored.
type Card struct {
	ID                string
	UserID            string
	Name              string
	Number            string
	ExpMonth          string
	ExpYear           string
	CVV               string
	LastSix           string
	IsDefault         bool
	Alias             string
	Meta              map[string]any
	Status            CardStatus
	LastPaymentDate   *time.Time
	LastPaymentStatus *bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CardDetails holds the plaintext card fields.
type CardDetails struct {
	Name     string
	Number   string
	ExpMonth string
	ExpYear  string
	CVV      string
}
