package sigloop

// seenSet remembers the most recent signatures, evicting the oldest once it
// holds limit entries.
type seenSet struct {
	limit int
	set   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(limit int) *seenSet {
	if limit <= 0 {
		limit = 10_000
	}
	return &seenSet{limit: limit, set: make(map[string]struct{}, limit)}
}

func (s *seenSet) Has(sig string) bool {
	_, ok := s.set[sig]
	return ok
}

func (s *seenSet) Add(sig string) {
	if s.Has(sig) {
		return
	}
	if len(s.order) < s.limit {
		s.order = append(s.order, sig)
	} else {
		delete(s.set, s.order[s.next])
		s.order[s.next] = sig
		s.next = (s.next + 1) % s.limit
	}
	s.set[sig] = struct{}{}
}

func (s *seenSet) Len() int { return len(s.set) }

func (s *seenSet) Reset() {
	s.set = make(map[string]struct{}, s.limit)
	s.order = s.order[:0]
	s.next = 0
}
