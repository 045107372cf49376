package fund

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAccount_Size(t *testing.T) {
	a, err := NewAccount(10000, 50)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		price float64
		want  float64
	}{
		{10, 500},
		{30, 166},
		{6000, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := a.Size("AAPL", tt.price); got != tt.want {
			t.Errorf("Size(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestAccount_ReserveSettle(t *testing.T) {
	a, _ := NewAccount(1000, 100)
	if err := a.Reserve(600); err != nil {
		t.Fatal(err)
	}
	if got := a.Free(); got != 400 {
		t.Fatalf("expected 400 free, got %v", got)
	}
	if err := a.Reserve(500); !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if got := a.Size("X", 10); got != 40 {
		t.Errorf("sizing must use free cash, got %v", got)
	}

	// fill came in above the reservation
	if err := a.SettleBuy(600, 650); err != nil {
		t.Fatal(err)
	}
	s := a.Snapshot()
	if s.Cash != 350 || s.Reserved != 0 {
		t.Errorf("unexpected state %+v", s)
	}

	a.Credit(100)
	if err := a.SettleBuy(0, 500); !errors.Is(err, ErrInsufficientCash) {
		t.Errorf("expected ErrInsufficientCash, got %v", err)
	}

	a.Reserve(100)
	a.Release(100)
	if a.Snapshot().Reserved != 0 {
		t.Error("release should clear the reservation")
	}
}

func TestNewAccount_Invalid(t *testing.T) {
	if _, err := NewAccount(0, 10); err == nil {
		t.Error("expected error for zero cash")
	}
	if _, err := NewAccount(100, 0); err == nil {
		t.Error("expected error for zero percent")
	}
}

func TestState_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.json")
	a, _ := NewAccount(5000, 20)
	a.Credit(250)
	st := a.Snapshot()
	if err := SaveState(path, &st); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Cash != 5250 || loaded.Percent != 20 || loaded.InitialCash != 5000 {
		t.Errorf("unexpected state %+v", loaded)
	}
	if FromState(*loaded).Free() != 5250 {
		t.Error("resumed account should expose the saved cash")
	}

	missing, err := LoadState(filepath.Join(t.TempDir(), "none.json"))
	if err != nil || missing.Cash != 0 {
		t.Errorf("expected zero state, got %+v (err=%v)", missing, err)
	}
}
