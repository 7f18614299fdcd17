package board

import "strings"

// MoveFlags classify a move. Flags are derived by the generator against a
// concrete board and are never accepted from outside: submitted moves are
// matched to generated ones by origin, destination and promotion.
type MoveFlags uint8

const (
	FlagCapture MoveFlags = 1 << iota
	FlagEnPassant
	FlagCastleKingside
	FlagCastleQueenside
	FlagDoublePush
)

// Move is an origin/destination pair with an optional promotion kind.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
	Flags     MoveFlags
}

// IsCapture reports whether the move captures, including en passant.
func (m Move) IsCapture() bool { return m.Flags&(FlagCapture|FlagEnPassant) != 0 }

// IsCastle reports whether the move is a castle on either wing.
func (m Move) IsCastle() bool {
	return m.Flags&(FlagCastleKingside|FlagCastleQueenside) != 0
}

// String returns the UCI wire form (e2e4, e7e8q).
func (m Move) String() string {
	var sb strings.Builder
	sb.WriteString(m.From.String())
	sb.WriteString(m.To.String())
	switch m.Promotion {
	case Knight:
		sb.WriteByte('n')
	case Bishop:
		sb.WriteByte('b')
	case Rook:
		sb.WriteByte('r')
	case Queen:
		sb.WriteByte('q')
	}
	return sb.String()
}

// Matches reports whether two moves describe the same play, ignoring flags.
func (m Move) Matches(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}
