package model

import "time"

// AccountState is the cash ledger of a paper account.
type AccountState struct {
	InitialCash float64   `json:"initial_cash"`
	Cash        float64   `json:"cash"`
	Reserved    float64   `json:"reserved"`
	Percent     float64   `json:"percent"`
	UpdatedAt   time.Time `json:"updated_at"`
}
