package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Entry is one scored parameter set.
type Entry struct {
	Eval        int     `json:"eval"`
	Score       float64 `json:"score"`
	Theta       float64 `json:"theta"`
	Softening   float64 `json:"softening"`
	DT          float64 `json:"dt"`
	ForceError  float64 `json:"force_error"`
	EnergyDrift float64 `json:"energy_drift"`
	SecPerStep  float64 `json:"sec_per_step"`
}

// Leaderboard keeps the best parameter sets seen so far, sorted by
// ascending score. Safe for concurrent Add.
type Leaderboard struct {
	mu      sync.Mutex
	maxSize int
	entries []Entry
}

// NewLeaderboard creates a leaderboard with the given capacity.
func NewLeaderboard(maxSize int) *Leaderboard {
	return &Leaderboard{
		maxSize: maxSize,
		entries: make([]Entry, 0, maxSize),
	}
}

// Add inserts the entry at its sorted position. When the board is full,
// entries past capacity fall off the end.
func (lb *Leaderboard) Add(e Entry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	idx := sort.Search(len(lb.entries), func(i int) bool {
		return lb.entries[i].Score > e.Score
	})

	if len(lb.entries) >= lb.maxSize && idx >= lb.maxSize {
		return
	}

	lb.entries = append(lb.entries, Entry{})
	copy(lb.entries[idx+1:], lb.entries[idx:])
	lb.entries[idx] = e

	if len(lb.entries) > lb.maxSize {
		lb.entries = lb.entries[:lb.maxSize]
	}
}

// Best returns the lowest-score entry and whether one exists.
func (lb *Leaderboard) Best() (Entry, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if len(lb.entries) == 0 {
		return Entry{}, false
	}
	return lb.entries[0], true
}

// Entries returns a copy of the board in rank order.
func (lb *Leaderboard) Entries() []Entry {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	out := make([]Entry, len(lb.entries))
	copy(out, lb.entries)
	return out
}

// SaveJSON writes the board to path as indented JSON.
func (lb *Leaderboard) SaveJSON(path string) error {
	data, err := json.MarshalIndent(lb.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling leaderboard: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing leaderboard: %w", err)
	}
	return nil
}
