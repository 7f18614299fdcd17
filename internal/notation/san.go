// Package notation converts moves and game records between the internal
// representation and the textual forms used at the edges: standard algebraic
// notation for humans, the four/five character origin-destination form for
// the engine channel, and PGN movetext for archival.
package notation

import (
	"fmt"
	"strings"

	"github.com/park285/chesscore/internal/board"
)

// ParseError reports a move or record string that could not be resolved
// against the current board.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Msg)
}

// EncodeSAN renders m in standard algebraic notation against b, adding file
// or rank disambiguation exactly when another legal move of the same piece
// kind shares the destination.
func EncodeSAN(b *board.Board, m board.Move) (string, error) {
	legal := matchLegal(b, m)
	if legal == nil {
		return "", &ParseError{Input: m.String(), Msg: "move is not legal here"}
	}
	m = *legal
	piece := b.PieceAt(m.From)

	var sb strings.Builder
	switch {
	case m.Flags&board.FlagCastleKingside != 0:
		sb.WriteString("O-O")
	case m.Flags&board.FlagCastleQueenside != 0:
		sb.WriteString("O-O-O")
	default:
		pt := piece.Type()
		if pt != board.Pawn {
			sb.WriteString(pt.Letter())
			sb.WriteString(disambiguation(b, m, pt))
		}
		if m.IsCapture() {
			if pt == board.Pawn {
				sb.WriteByte(byte('a' + m.From.File()))
			}
			sb.WriteByte('x')
		}
		sb.WriteString(m.To.String())
		if m.Promotion != board.NoPieceType {
			sb.WriteByte('=')
			sb.WriteString(m.Promotion.Letter())
		}
	}

	after, err := b.Apply(m)
	if err != nil {
		return "", err
	}
	if after.InCheck(after.SideToMove) {
		if board.HasLegalMoves(after) {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	return sb.String(), nil
}

// disambiguation returns "", a file, a rank, or both, following the standard
// preference order.
func disambiguation(b *board.Board, m board.Move, pt board.PieceType) string {
	sameFile, sameRank, ambiguous := false, false, false
	for _, other := range board.LegalMoves(b) {
		if other.To != m.To || other.From == m.From {
			continue
		}
		if b.PieceAt(other.From).Type() != pt {
			continue
		}
		ambiguous = true
		if other.From.File() == m.From.File() {
			sameFile = true
		}
		if other.From.Rank() == m.From.Rank() {
			sameRank = true
		}
	}
	switch {
	case !ambiguous:
		return ""
	case !sameFile:
		return string(byte('a' + m.From.File()))
	case !sameRank:
		return string(byte('1' + m.From.Rank()))
	default:
		return m.From.String()
	}
}

// DecodeSAN resolves abbreviated algebraic notation by consulting the legal
// moves of b. It fails when the string matches zero legal moves or more than
// one.
func DecodeSAN(b *board.Board, s string) (board.Move, error) {
	raw := s
	s = strings.TrimRight(strings.TrimSpace(s), "+#!?")
	if s == "" {
		return board.Move{}, &ParseError{Input: raw, Msg: "empty move"}
	}

	if s == "O-O" || s == "0-0" || s == "O-O-O" || s == "0-0-0" {
		want := board.FlagCastleKingside
		if len(s) > 3 {
			want = board.FlagCastleQueenside
		}
		for _, m := range board.LegalMoves(b) {
			if m.Flags&want != 0 {
				return m, nil
			}
		}
		return board.Move{}, &ParseError{Input: raw, Msg: "castling not legal here"}
	}

	promo := board.NoPieceType
	if i := strings.IndexByte(s, '='); i >= 0 && i+1 < len(s) {
		promo = pieceTypeFromLetter(s[i+1])
		if promo == board.NoPieceType {
			return board.Move{}, &ParseError{Input: raw, Msg: "bad promotion piece"}
		}
		s = s[:i]
	}

	pt := board.Pawn
	if len(s) > 0 {
		if k := pieceTypeFromLetter(s[0]); k != board.NoPieceType {
			pt = k
			s = s[1:]
		}
	}

	isCapture := strings.ContainsRune(s, 'x')
	s = strings.ReplaceAll(s, "x", "")

	if len(s) < 2 {
		return board.Move{}, &ParseError{Input: raw, Msg: "missing destination"}
	}
	dest, err := board.ParseSquare(s[len(s)-2:])
	if err != nil {
		return board.Move{}, &ParseError{Input: raw, Msg: "bad destination square"}
	}
	s = s[:len(s)-2]

	fromFile, fromRank := -1, -1
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'h':
			fromFile = int(ch - 'a')
		case ch >= '1' && ch <= '8':
			fromRank = int(ch - '1')
		default:
			return board.Move{}, &ParseError{Input: raw, Msg: "bad disambiguation"}
		}
	}

	var found []board.Move
	for _, m := range board.LegalMoves(b) {
		if m.To != dest || b.PieceAt(m.From).Type() != pt {
			continue
		}
		if fromFile >= 0 && m.From.File() != fromFile {
			continue
		}
		if fromRank >= 0 && m.From.Rank() != fromRank {
			continue
		}
		if isCapture && !m.IsCapture() {
			continue
		}
		if m.Promotion != promo {
			continue
		}
		found = append(found, m)
	}
	switch len(found) {
	case 0:
		return board.Move{}, &ParseError{Input: raw, Msg: "no matching legal move"}
	case 1:
		return found[0], nil
	default:
		return board.Move{}, &ParseError{Input: raw, Msg: "ambiguous move"}
	}
}

func matchLegal(b *board.Board, m board.Move) *board.Move {
	for _, legal := range board.LegalMoves(b) {
		if legal.Matches(m) {
			return &legal
		}
	}
	return nil
}

func pieceTypeFromLetter(ch byte) board.PieceType {
	switch ch {
	case 'N':
		return board.Knight
	case 'B':
		return board.Bishop
	case 'R':
		return board.Rook
	case 'Q':
		return board.Queen
	case 'K':
		return board.King
	}
	return board.NoPieceType
}
