package economy

import (
	"errors"
	"testing"
)

func TestNextBalance(t *testing.T) {
	cases := []struct {
		balance int64
		delta   int64
		want    int64
		wantErr bool
	}{
		{0, 10, 10, false},
		{10, -10, 0, false},
		{10, -15, 0, true},
		{0, -1, 0, true},
		{250, 75, 325, false},
	}
	for _, tc := range cases {
		got, err := nextBalance(tc.balance, tc.delta)
		if tc.wantErr {
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("nextBalance(%d, %d) err = %v, want ErrInsufficientFunds", tc.balance, tc.delta, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("nextBalance(%d, %d): %v", tc.balance, tc.delta, err)
		}
		if got != tc.want {
			t.Fatalf("nextBalance(%d, %d) = %d, want %d", tc.balance, tc.delta, got, tc.want)
		}
	}
}

// Credit then over-debit: the rejection leaves the balance where the credit
// put it.
func TestNextBalanceRejectionLeavesBalance(t *testing.T) {
	balance := int64(0)
	balance, err := nextBalance(balance, 10)
	if err != nil || balance != 10 {
		t.Fatalf("credit failed: balance %d, err %v", balance, err)
	}
	if _, err := nextBalance(balance, -15); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over-debit err = %v, want ErrInsufficientFunds", err)
	}
	if balance != 10 {
		t.Fatalf("balance moved to %d after rejected debit", balance)
	}
}
