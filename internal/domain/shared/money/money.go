// Package money holds currency amounts in integer minor units.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrOverflow         = errors.New("money: amount overflows")
)

// Money is an amount in minor units (cents) of an ISO 4217 currency.
type Money struct {
	Amount   int64  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

func New(amount int64, currency string) (Money, error) {
	code, err := normalize(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Must is New for fixtures and tests. It panics on a bad currency.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Add returns m+other. Both sides must carry the same currency.
func (m Money) Add(other Money) (Money, error) {
	switch {
	case m.Currency == "" || other.Currency == "":
		return Money{}, ErrInvalidCurrency
	case m.Currency != other.Currency:
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	if (other.Amount > 0 && m.Amount > math.MaxInt64-other.Amount) ||
		(other.Amount < 0 && m.Amount < math.MinInt64-other.Amount) {
		return Money{}, ErrOverflow
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) IsNegative() bool       { return m.Amount < 0 }
func (m Money) Equal(other Money) bool { return m == other }

// String renders two decimals, e.g. "150.00 USD".
func (m Money) String() string {
	units, cents := m.Amount/100, m.Amount%100
	sign := ""
	if m.Amount < 0 {
		sign, units, cents = "-", -units, -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, units, cents, m.Currency)
}

func normalize(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
