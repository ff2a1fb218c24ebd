package store

import (
	"context"
	"time"
)

// SeenJobsTTL is how long an announced job URL stays remembered.
const SeenJobsTTL = 30 * 24 * time.Hour

// MarkSeen records urls as announced and returns those that were not seen
// before, in input order. Entries older than SeenJobsTTL are forgotten.
func (s *Store) MarkSeen(ctx context.Context, urls []string) ([]string, error) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	seen := map[string]int64{}
	if _, err := s.get(ctx, KeySeenJobs, &seen); err != nil {
		return nil, err
	}
	now := s.now()
	cutoff := now.Add(-SeenJobsTTL).UnixMilli()
	for u, at := range seen {
		if at < cutoff {
			delete(seen, u)
		}
	}

	var fresh []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = now.UnixMilli()
		fresh = append(fresh, u)
	}
	if err := s.set(ctx, KeySeenJobs, seen); err != nil {
		return nil, err
	}
	return fresh, nil
}
