package domain

import (
	"time"
)

// Section describes one rectangular block of seats within a hall layout
type Section struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// Contains reports whether the 1-based coordinate falls inside the section
func (s Section) Contains(row, col int) bool {
	return row >= 1 && row <= s.Rows && col >= 1 && col <= s.Cols
}

// Showing represents one scheduled screening in one hall. It owns its seat
// grid and a version counter that is incremented on every successful grid
// mutation. The grid shape is fixed at creation time.
type Showing struct {
	ID          string               `json:"id"`
	MovieTitle  string               `json:"movie_title"`
	TheatreName string               `json:"theatre_name"`
	HallName    string               `json:"hall_name"`
	StartsAt    time.Time            `json:"starts_at"`
	SeatPrice   int64                `json:"seat_price_cents"`
	Layout      []Section            `json:"layout"`
	Cells       map[string]SeatCell  `json:"cells"` // keyed by SeatCoord.Key()
	Version     int64                `json:"version"`
	Cancelled   bool                 `json:"cancelled"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewShowing builds a showing with every cell in the layout available
func NewShowing(id, movieTitle, theatreName, hallName string, startsAt time.Time, seatPrice int64, layout []Section) *Showing {
	now := time.Now()
	s := &Showing{
		ID:          id,
		MovieTitle:  movieTitle,
		TheatreName: theatreName,
		HallName:    hallName,
		StartsAt:    startsAt,
		SeatPrice:   seatPrice,
		Layout:      layout,
		Cells:       make(map[string]SeatCell),
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, sec := range layout {
		for r := 1; r <= sec.Rows; r++ {
			for c := 1; c <= sec.Cols; c++ {
				coord := SeatCoord{Section: sec.Name, Row: r, Col: c}
				s.Cells[coord.Key()] = SeatCell{State: SeatAvailable}
			}
		}
	}
	return s
}

// section returns the named section of the layout, if any
func (s *Showing) section(name string) (Section, bool) {
	for _, sec := range s.Layout {
		if sec.Name == name {
			return sec, true
		}
	}
	return Section{}, false
}

// ValidateCoord checks a single coordinate against the layout
func (s *Showing) ValidateCoord(c SeatCoord) error {
	sec, ok := s.section(c.Section)
	if !ok || !sec.Contains(c.Row, c.Col) {
		return &InvalidSeatError{ShowingID: s.ID, Seat: c.Label()}
	}
	return nil
}

// ValidateCoords checks every coordinate against the layout. The first
// offending seat is reported.
func (s *Showing) ValidateCoords(coords []SeatCoord) error {
	for _, c := range coords {
		if err := s.ValidateCoord(c); err != nil {
			return err
		}
	}
	return nil
}

// Cell returns the current cell for a coordinate
func (s *Showing) Cell(c SeatCoord) (SeatCell, bool) {
	cell, ok := s.Cells[c.Key()]
	return cell, ok
}

// Clone returns a deep copy of the showing. Store implementations hand out
// clones so callers can never mutate shared state.
func (s *Showing) Clone() *Showing {
	cp := *s
	cp.Layout = make([]Section, len(s.Layout))
	copy(cp.Layout, s.Layout)
	cp.Cells = make(map[string]SeatCell, len(s.Cells))
	for k, v := range s.Cells {
		if v.HoldExpiresAt != nil {
			t := *v.HoldExpiresAt
			v.HoldExpiresAt = &t
		}
		cp.Cells[k] = v
	}
	return &cp
}

// SeatCount returns the total number of cells in the grid
func (s *Showing) SeatCount() int {
	return len(s.Cells)
}
