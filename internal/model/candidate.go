package model

import "time"

// Market classifies a symbol for liquidity tiering.
type Market string

const (
	MarketDomestic Market = "domestic"
	MarketUS       Market = "us"
)

// Candidate is the latest-bar screening snapshot of one symbol.
type Candidate struct {
	Symbol         string    `json:"symbol"`
	Market         Market    `json:"market"`
	LatestDate     time.Time `json:"latest_date"`
	LatestClose    float64   `json:"latest_close"`
	Turnover       float64   `json:"turnover"`
	K              float64   `json:"k"`
	D              float64   `json:"d"`
	J              float64   `json:"j"`
	Bars           int       `json:"bars"`
	LiquidityFloor float64   `json:"liquidity_floor"`
	JThreshold     float64   `json:"j_threshold"`
	Liquid         bool      `json:"liquid"`
	Passes         bool      `json:"passes"`
}
