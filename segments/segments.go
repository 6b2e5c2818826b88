package segments

import (
	"fmt"
	"strings"
	"sync"
)

// Segment is one timed span of transcript text
type Segment struct {
	ID              int     `json:"id"`
	Start           float64 `json:"start"`
	End             float64 `json:"end"`
	Text            string  `json:"text"`
	Transliteration string  `json:"transliteration,omitempty"`
}

// Field selects which text of a segment an operation targets
type Field int

const (
	FieldText Field = iota
	FieldTransliteration
)

func (f Field) String() string {
	switch f {
	case FieldText:
		return "original"
	case FieldTransliteration:
		return "transliteration"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField accepts the names used on the command line and in config files.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original", "text":
		return FieldText, nil
	case "transliteration", "transliterated", "translit":
		return FieldTransliteration, nil
	}
	return FieldText, fmt.Errorf("unknown segment field %q", s)
}

// Value returns the text of the selected field.
func (s Segment) Value(f Field) string {
	if f == FieldTransliteration {
		return s.Transliteration
	}
	return s.Text
}

// Store is an editable, ordered collection of segments. Entries can be
// removed or edited in place but never reordered.
type Store struct {
	mu    sync.RWMutex
	items []Segment
}

func NewStore() *Store {
	return &Store{}
}

// Replace discards the current collection and installs a copy of segs.
func (s *Store) Replace(segs []Segment) {
	items := make([]Segment, len(segs))
	copy(items, segs)

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// All returns a copy of the collection in order.
func (s *Store) All() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Segment, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id int) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return Segment{}, false
}

// Remove drops the segment with the given id. It reports whether anything
// was removed; removing an absent id leaves the collection untouched.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

// Update replaces one text field of the segment with the given id.
func (s *Store) Update(id int, field Field, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	switch field {
	case FieldTransliteration:
		s.items[i].Transliteration = value
	default:
		s.items[i].Text = value
	}
	return true
}

func (s *Store) indexOf(id int) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
