package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an exact-precision amount in a specific currency.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney parses an amount string and an ISO 4217 currency code.
func NewMoney(amount, code string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("domain: parse amount %q: %w", amount, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("domain: currency %q is not valid: %w", code, err)
	}
	return Money{Amount: dec, Currency: unit}, nil
}

// Mul returns the money multiplied by an integer quantity.
func (m Money) Mul(n int) Money {
	return Money{
		Amount:   m.Amount.Mul(decimal.NewFromInt(int64(n))),
		Currency: m.Currency,
	}
}

// Add returns the sum of two amounts. Adding mixed currencies is an error.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("domain: cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// moneyWire is the JSON shape used on the wire and in local snapshots.
type moneyWire struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a string to avoid float rounding.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"amount":%q,"currency":%q}`, m.Amount.String(), m.Currency.String())), nil
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w moneyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("domain: decode money: %w", err)
	}
	parsed, err := NewMoney(w.Amount, w.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
