package poke

import (
	"sort"
	"time"
)

type decision struct {
	count           int
	coolingDown     bool
	cooldownStarted bool
	until           time.Time
}

// record counts a poke against the chat identified by key. Pokes during an
// active cooldown are neither counted nor extend it.
func (h *Handler) record(key string, now time.Time) decision {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if until, ok := h.cooldowns[key]; ok {
		if now.Before(until) {
			return decision{coolingDown: true, until: until}
		}
		delete(h.cooldowns, key)
	}

	kept := prune(h.pokes[key], now.Add(-h.cfg.Window))
	kept = append(kept, now)
	count := len(kept)
	if count > h.cfg.Threshold {
		until := now.Add(h.cfg.Cooldown)
		h.cooldowns[key] = until
		delete(h.pokes, key)
		return decision{count: count, cooldownStarted: true, until: until}
	}
	h.pokes[key] = kept
	return decision{count: count}
}

// allowMeme gates meme fetches process-wide on the last fetch time.
func (h *Handler) allowMeme(now time.Time) bool {
	h.memeMu.Lock()
	defer h.memeMu.Unlock()
	if !h.lastMemeFetch.IsZero() && now.Sub(h.lastMemeFetch) < h.cfg.MemeCooldown {
		return false
	}
	h.lastMemeFetch = now
	return true
}

// prune keeps timestamps strictly newer than cutoff, reusing the backing array.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, stamp := range stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	return kept
}

type GroupStats struct {
	Key           string     `json:"key"`
	Pokes         int        `json:"pokes"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Stats reports every tracked chat without mutating state.
func (h *Handler) Stats(now time.Time) []GroupStats {
	cutoff := now.Add(-h.cfg.Window)

	h.stateMu.Lock()
	byKey := make(map[string]*GroupStats, len(h.pokes)+len(h.cooldowns))
	for key, stamps := range h.pokes {
		count := 0
		for _, stamp := range stamps {
			if stamp.After(cutoff) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		byKey[key] = &GroupStats{Key: key, Pokes: count}
	}
	for key, until := range h.cooldowns {
		if !now.Before(until) {
			continue
		}
		entry, ok := byKey[key]
		if !ok {
			entry = &GroupStats{Key: key}
			byKey[key] = entry
		}
		expiry := until
		entry.CooldownUntil = &expiry
	}
	h.stateMu.Unlock()

	out := make([]GroupStats, 0, len(byKey))
	for _, entry := range byKey {
		out = append(out, *entry)
	}
	sort.Slice(out, func(left, right int) bool {
		return out[left].Key < out[right].Key
	})
	return out
}

// Sweep drops chats with no poke inside the window and expired cooldowns.
func (h *Handler) Sweep(now time.Time) int {
	cutoff := now.Add(-h.cfg.Window)
	removed := 0

	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	for key, stamps := range h.pokes {
		kept := prune(stamps, cutoff)
		if len(kept) == 0 {
			delete(h.pokes, key)
			removed++
			continue
		}
		h.pokes[key] = kept
	}
	for key, until := range h.cooldowns {
		if !now.Before(until) {
			delete(h.cooldowns, key)
			removed++
		}
	}
	return removed
}
