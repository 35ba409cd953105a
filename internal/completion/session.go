package completion

import "github.com/google/uuid"

// Session holds the per-connection caches. A new connection gets a new Session;
// nothing in an old one is consulted again.
type Session struct {
	ID string
	// skip marks maps whose in-progress run started with an assist mod.
	skip map[int]bool
	// scored records whether the player already had a score for a map.
	scored map[int]bool
	// counted holds maps already counted; their scored entry stays true.
	counted map[int]bool
}

func newSession() *Session {
	return &Session{
		ID:      uuid.NewString(),
		skip:    map[int]bool{},
		scored:  map[int]bool{},
		counted: map[int]bool{},
	}
}

// Skipped reports whether the map's current run is excluded.
func (s *Session) Skipped(beatmapID int) bool {
	return s.skip[beatmapID]
}

// ScoreKnown returns the cached score-existence answer for a map.
func (s *Session) ScoreKnown(beatmapID int) (exists, ok bool) {
	exists, ok = s.scored[beatmapID]
	return exists, ok
}

// Len returns the number of entries across both caches.
func (s *Session) Len() int {
	return len(s.skip) + len(s.scored)
}
