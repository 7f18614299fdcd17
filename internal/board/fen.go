package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseError reports a malformed position string together with the offset of
// the offending field or character.
type ParseError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// FEN encodes the position as the six space-separated FEN fields. The
// encoding round-trips exactly through ParseFEN, including castling rights
// and the en passant target.
func (b *Board) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.squares[rank*8+file]
			if p == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FENLetter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if b.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	if b.Castling == 0 {
		sb.WriteByte('-')
	} else {
		if b.Castling&CastleWhiteKing != 0 {
			sb.WriteByte('K')
		}
		if b.Castling&CastleWhiteQueen != 0 {
			sb.WriteByte('Q')
		}
		if b.Castling&CastleBlackKing != 0 {
			sb.WriteByte('k')
		}
		if b.Castling&CastleBlackQueen != 0 {
			sb.WriteByte('q')
		}
	}

	fmt.Fprintf(&sb, " %s %d %d", b.EnPassant, b.HalfmoveClock, b.FullmoveNumber)
	return sb.String()
}

// ParseFEN decodes a FEN string. The halfmove clock and fullmove number may
// be omitted, matching positions emitted by some engines and test suites.
func ParseFEN(fen string) (*Board, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 4 {
		return nil, &ParseError{Input: fen, Msg: "want at least 4 fields"}
	}

	b := Empty()
	offset := 0

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, &ParseError{Input: fen, Msg: "want 8 ranks"}
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			p, ok := PieceFromFEN(ch)
			if !ok || file > 7 {
				return nil, &ParseError{Input: fen, Offset: offset + j, Msg: "bad placement character"}
			}
			b.Put(Square(rank*8+file), p)
			file++
		}
		if file != 8 {
			return nil, &ParseError{Input: fen, Offset: offset, Msg: "rank does not cover 8 files"}
		}
		offset += len(row) + 1
	}

	offset = len(fields[0]) + 1
	switch fields[1] {
	case "w":
		b.SideToMove = White
	case "b":
		b.SideToMove = Black
	default:
		return nil, &ParseError{Input: fen, Offset: offset, Msg: "side to move must be w or b"}
	}

	offset += len(fields[1]) + 1
	if fields[2] != "-" {
		for i := 0; i < len(fields[2]); i++ {
			switch fields[2][i] {
			case 'K':
				b.Castling |= CastleWhiteKing
			case 'Q':
				b.Castling |= CastleWhiteQueen
			case 'k':
				b.Castling |= CastleBlackKing
			case 'q':
				b.Castling |= CastleBlackQueen
			default:
				return nil, &ParseError{Input: fen, Offset: offset + i, Msg: "bad castling flag"}
			}
		}
	}

	offset += len(fields[2]) + 1
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return nil, &ParseError{Input: fen, Offset: offset, Msg: "bad en passant square"}
		}
		b.EnPassant = sq
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, &ParseError{Input: fen, Offset: offset, Msg: "bad halfmove clock"}
		}
		b.HalfmoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return nil, &ParseError{Input: fen, Offset: offset, Msg: "bad fullmove number"}
		}
		b.FullmoveNumber = n
	}

	if err := b.Validate(); err != nil {
		return nil, &ParseError{Input: fen, Msg: err.Error()}
	}
	return b, nil
}
