package model

import "fmt"

// SymbolError ties a failure to the symbol it happened on.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Err    error  `json:"-"`
}

func (e SymbolError) Error() string { return fmt.Sprintf("%s: %v", e.Symbol, e.Err) }

func (e SymbolError) Unwrap() error { return e.Err }
