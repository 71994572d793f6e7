package models

// ShuffleSession is caller-held state for one interactive browsing session.
// It is a value: Advance returns a new session and never mutates the receiver.
type ShuffleSession struct {
	ShownIDs []int64 `json:"shownIds"`
	Page     int     `json:"page"`
}

// Shown reports whether id was already returned in this session.
func (s ShuffleSession) Shown(id int64) bool {
	for _, x := range s.ShownIDs {
		if x == id {
			return true
		}
	}
	return false
}

// ShownSet returns the shown IDs as a set.
func (s ShuffleSession) ShownSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(s.ShownIDs))
	for _, id := range s.ShownIDs {
		set[id] = struct{}{}
	}
	return set
}

// Advance appends the newly returned IDs and moves the page cursor forward.
func (s ShuffleSession) Advance(returned []int64) ShuffleSession {
	shown := make([]int64, 0, len(s.ShownIDs)+len(returned))
	shown = append(shown, s.ShownIDs...)
	seen := s.ShownSet()
	for _, id := range returned {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		shown = append(shown, id)
	}
	return ShuffleSession{ShownIDs: shown, Page: s.Page + 1}
}
