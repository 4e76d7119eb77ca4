package domain

import (
	"encoding/json"
	"testing"
)

func mustMoney(t *testing.T, amount, code string) Money {
	t.Helper()
	m, err := NewMoney(amount, code)
	if err != nil {
		t.Fatalf("NewMoney(%q, %q): %v", amount, code, err)
	}
	return m
}

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		code    string
		wantErr bool
	}{
		{name: "valid", amount: "12.34", code: "USD"},
		{name: "zero", amount: "0", code: "EUR"},
		{name: "negative", amount: "-5.00", code: "USD"},
		{name: "bad amount", amount: "twelve", code: "USD", wantErr: true},
		{name: "bad currency", amount: "1.00", code: "DOLLARS", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMoney(tt.amount, tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMoney() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMoney_Mul(t *testing.T) {
	price := mustMoney(t, "2.50", "USD")

	got := price.Mul(3)
	if got.Amount.String() != "7.5" {
		t.Errorf("Mul(3) = %s, want 7.5", got.Amount)
	}
	if got.Currency != price.Currency {
		t.Errorf("Mul changed currency to %s", got.Currency)
	}
}

func TestMoney_Mul_NoFloatDrift(t *testing.T) {
	// 0.1 * 3 must be exactly 0.3, not 0.30000000000000004.
	price := mustMoney(t, "0.1", "USD")
	if got := price.Mul(3).Amount.String(); got != "0.3" {
		t.Errorf("Mul(3) = %s, want 0.3", got)
	}
}

func TestMoney_Add(t *testing.T) {
	a := mustMoney(t, "1.25", "USD")
	b := mustMoney(t, "2.75", "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Amount.String() != "4" {
		t.Errorf("Add = %s, want 4", sum.Amount)
	}
}

func TestMoney_Add_MixedCurrencies(t *testing.T) {
	usd := mustMoney(t, "1.00", "USD")
	eur := mustMoney(t, "1.00", "EUR")

	if _, err := usd.Add(eur); err == nil {
		t.Fatal("adding mixed currencies must fail")
	}
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	original := mustMoney(t, "19.99", "USD")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Money
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if !decoded.Amount.Equal(original.Amount) {
		t.Errorf("amount = %s, want %s", decoded.Amount, original.Amount)
	}
	if decoded.Currency != original.Currency {
		t.Errorf("currency = %s, want %s", decoded.Currency, original.Currency)
	}
}

func TestMoney_UnmarshalRejectsGarbage(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":"abc","currency":"USD"}`), &m); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}
