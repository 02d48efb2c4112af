package inventory

import (
	"sort"
	"strings"
)

// Summary aggregates the inventory for the API and CLI.
type Summary struct {
	TotalItems int            `json:"totalItems"`
	TotalValue float64        `json:"totalValue"`
	ByRoom     map[string]int `json:"byRoom"`
	ByCategory map[string]int `json:"byCategory"`
	Recent     []*Item        `json:"recent"`
}

// recentCount bounds the recent-items slice in a summary.
const recentCount = 10

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Room     string
	Category string
}

// List returns items matching the filter, newest first.
func (s *Store) List(f Filter) []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Item
	for _, it := range s.items {
		if f.Room != "" && !strings.EqualFold(it.Room, f.Room) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(it.Category, f.Category) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Search returns items whose descriptive fields contain the query,
// case-insensitively.
func (s *Store) Search(query string) []*Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Item
	for _, it := range s.items {
		haystack := strings.ToLower(strings.Join([]string{
			it.Name, it.Brand, it.Color, it.Category, it.Room, it.Notes,
		}, " "))
		if strings.Contains(haystack, q) {
			out = append(out, it)
		}
	}
	return out
}

// Summarize aggregates counts, total value and per-room/per-category
// histograms, plus the most recently added items.
func (s *Store) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		TotalItems: len(s.items),
		ByRoom:     make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, it := range s.items {
		sum.TotalValue += it.EstimatedValue
		if it.Room != "" {
			sum.ByRoom[it.Room]++
		}
		if it.Category != "" {
			sum.ByCategory[it.Category]++
		}
	}

	recent := make([]*Item, len(s.items))
	copy(recent, s.items)
	sort.Slice(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}
	sum.Recent = recent
	return sum
}
