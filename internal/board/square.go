package board

import "fmt"

// Square indexes the board 0..63 as rank*8+file, a1=0, h8=63.
type Square int8

// NoSquare marks an absent square (no en passant target, etc).
const NoSquare Square = -1

// Named squares used by castling and the starting position.
const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
)

const (
	A8 Square = 56 + iota
	B8
	C8
	D8
	E8
	F8
	G8
	H8
)

// NewSquare builds a square from file and rank, both 0..7.
// There is no representation for off-board coordinates.
func NewSquare(file, rank int) (Square, error) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, fmt.Errorf("square out of range: file=%d rank=%d", file, rank)
	}
	return Square(rank*8 + file), nil
}

// File returns the file 0..7 (a..h).
func (sq Square) File() int { return int(sq) & 7 }

// Rank returns the rank 0..7 (1..8).
func (sq Square) Rank() int { return int(sq) >> 3 }

func (sq Square) String() string {
	if sq == NoSquare {
		return "-"
	}
	return string([]byte{byte('a' + sq.File()), byte('1' + sq.Rank())})
}

// ParseSquare parses coordinates like "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	sq, err := NewSquare(file, rank)
	if err != nil {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return sq, nil
}
