package dedup

// SeenKeys records identity keys observed earlier in one batch, mapped to
// the index of the first row that carried them. A SeenKeys belongs to a
// single preview or execute call and is never shared.
type SeenKeys struct {
	contacts  map[string]int
	companies map[string]int
}

// NewSeenKeys returns an empty set.
func NewSeenKeys() *SeenKeys {
	return &SeenKeys{
		contacts:  make(map[string]int),
		companies: make(map[string]int),
	}
}

// Contact returns the row that first carried key.
func (s *SeenKeys) Contact(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	row, ok := s.contacts[key]
	return row, ok
}

// AddContact records key for row unless it is already present.
func (s *SeenKeys) AddContact(key string, row int) {
	if key == "" {
		return
	}
	if _, ok := s.contacts[key]; !ok {
		s.contacts[key] = row
	}
}

// Company returns the row that first carried key.
func (s *SeenKeys) Company(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	row, ok := s.companies[key]
	return row, ok
}

// AddCompany records key for row unless it is already present.
func (s *SeenKeys) AddCompany(key string, row int) {
	if key == "" {
		return
	}
	if _, ok := s.companies[key]; !ok {
		s.companies[key] = row
	}
}

// Len is the number of distinct contact and company keys recorded.
func (s *SeenKeys) Len() int {
	return len(s.contacts) + len(s.companies)
}
