package board

import "fmt"

// IllegalMoveError reports a move that is not in the legal set of the board
// it was submitted against. The board is left untouched.
type IllegalMoveError struct {
	Move Move
	Side Color
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s for %s", e.Move, e.Side)
}

// Apply returns the board after playing m. It is pure: the receiver is never
// mutated, and a rejected move returns an *IllegalMoveError. The submitted
// move is matched against the generated legal set by origin, destination and
// promotion, so callers cannot smuggle in inconsistent flags.
func (b *Board) Apply(m Move) (*Board, error) {
	for _, legal := range LegalMoves(b) {
		if legal.Matches(m) {
			nb := b.Copy()
			nb.applyUnchecked(legal)
			return nb, nil
		}
	}
	return nil, &IllegalMoveError{Move: m, Side: b.SideToMove}
}

// applyUnchecked mutates the board with a move known to be legal and carrying
// generator-derived flags.
func (b *Board) applyUnchecked(m Move) {
	mover := b.SideToMove
	piece := b.squares[m.From]
	captured := b.squares[m.To]

	if m.Flags&FlagEnPassant != 0 {
		capSq := m.To - 8
		if mover == Black {
			capSq = m.To + 8
		}
		captured = b.squares[capSq]
		b.squares[capSq] = NoPiece
	}

	b.squares[m.From] = NoPiece
	if m.Promotion != NoPieceType {
		b.squares[m.To] = MakePiece(mover, m.Promotion)
	} else {
		b.squares[m.To] = piece
	}

	if m.Flags&FlagCastleKingside != 0 {
		b.squares[m.From+1] = b.squares[m.From+3]
		b.squares[m.From+3] = NoPiece
	} else if m.Flags&FlagCastleQueenside != 0 {
		b.squares[m.From-1] = b.squares[m.From-4]
		b.squares[m.From-4] = NoPiece
	}

	if piece.Type() == King {
		b.kings[mover] = m.To
		if mover == White {
			b.Castling &^= CastleWhiteKing | CastleWhiteQueen
		} else {
			b.Castling &^= CastleBlackKing | CastleBlackQueen
		}
	}

	// A rook leaving or a capture landing on a corner kills that right.
	for _, sq := range [2]Square{m.From, m.To} {
		switch sq {
		case A1:
			b.Castling &^= CastleWhiteQueen
		case H1:
			b.Castling &^= CastleWhiteKing
		case A8:
			b.Castling &^= CastleBlackQueen
		case H8:
			b.Castling &^= CastleBlackKing
		}
	}

	if m.Flags&FlagDoublePush != 0 {
		b.EnPassant = (m.From + m.To) / 2
	} else {
		b.EnPassant = NoSquare
	}

	if piece.Type() == Pawn || captured != NoPiece {
		b.HalfmoveClock = 0
	} else {
		b.HalfmoveClock++
	}
	if mover == Black {
		b.FullmoveNumber++
	}
	b.SideToMove = mover.Other()
}
