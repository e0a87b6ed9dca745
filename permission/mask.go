package permission

// Mask is a fixed-width permission bitmask of up to 512 bits.
type Mask struct {
	width int
	words [8]uint64
}

// NewMask returns an empty mask of the given width.
func NewMask(width int) (*Mask, error) {
	if !validWidth(width) {
		return nil, ErrInvalidWidth
	}
	return &Mask{width: width}, nil
}

// Width returns the number of addressable bits.
func (m *Mask) Width() int { return m.width }

// Has reports whether the given bit is set. If rootReserved is true and the
// highest bit is set, Has returns true for every in-range bit.
func (m *Mask) Has(bit int, rootReserved bool) bool {
	if m == nil || bit < 0 || bit >= m.width {
		return false
	}

	if rootReserved && m.isSet(m.width-1) {
		return true
	}

	return m.isSet(bit)
}

// Set sets the given bit in the mask.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= m.width {
		return
	}
	m.words[bit/64] |= 1 << (bit % 64)
}

// Clear clears the given bit in the mask.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= m.width {
		return
	}
	m.words[bit/64] &^= 1 << (bit % 64)
}

// Union sets every bit that is set in other. Masks of different widths are
// merged up to the narrower width.
func (m *Mask) Union(other *Mask) {
	if other == nil {
		return
	}
	n := min(m.width, other.width) / 64
	for i := 0; i < n; i++ {
		m.words[i] |= other.words[i]
	}
}

// Empty reports whether no bit is set.
func (m *Mask) Empty() bool {
	for _, w := range m.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (m *Mask) isSet(bit int) bool {
	return m.words[bit/64]&(1<<(bit%64)) != 0
}
