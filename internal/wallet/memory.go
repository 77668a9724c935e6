package wallet

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a Wallet kept in process memory.
type Memory struct {
	mu       sync.Mutex
	initial  int
	balances map[string]int
	applied  map[string]struct{}
	payouts  map[string]Payout
}

// NewMemory creates a wallet that opens new players with initial chips.
func NewMemory(initial int) *Memory {
	return &Memory{
		initial:  initial,
		balances: make(map[string]int),
		applied:  make(map[string]struct{}),
		payouts:  make(map[string]Payout),
	}
}

func (m *Memory) Debit(_ context.Context, txID, playerID string, amount int) error {
	return m.apply(txID, playerID, -amount, amount)
}

func (m *Memory) Credit(_ context.Context, txID, playerID string, amount int) error {
	return m.apply(txID, playerID, amount, amount)
}

func (m *Memory) Balance(_ context.Context, playerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(playerID), nil
}

// RecordPayouts keeps each payout once per hand and player.
func (m *Memory) RecordPayouts(_ context.Context, payouts []Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range payouts {
		key := p.HandID + "/" + p.PlayerID
		if _, ok := m.payouts[key]; !ok {
			m.payouts[key] = p
		}
	}
	return nil
}

// Payouts returns the recorded payouts of a hand.
func (m *Memory) Payouts(handID string) []Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payout
	for _, p := range m.payouts {
		if p.HandID == handID {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) apply(txID, playerID string, delta, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.applied[txID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTx, txID)
	}
	balance := m.balanceLocked(playerID)
	if balance+delta < 0 {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, playerID, balance, amount)
	}
	m.balances[playerID] = balance + delta
	m.applied[txID] = struct{}{}
	return nil
}

func (m *Memory) balanceLocked(playerID string) int {
	if b, ok := m.balances[playerID]; ok {
		return b
	}
	return m.initial
}
