package board

import "errors"

// CastlingRights tracks the four independent castle permissions.
type CastlingRights uint8

const (
	CastleWhiteKing CastlingRights = 1 << iota
	CastleWhiteQueen
	CastleBlackKing
	CastleBlackQueen
)

// CastleAll is the full rights set of the starting position.
const CastleAll = CastleWhiteKing | CastleWhiteQueen | CastleBlackKing | CastleBlackQueen

// Board is a mailbox position: piece placement plus every field a legal
// position needs (side to move, castling rights, en passant target, clocks).
// Outside this package it is mutated only through Apply.
type Board struct {
	squares        [64]Piece
	SideToMove     Color
	Castling       CastlingRights
	EnPassant      Square // NoSquare when no double push happened last ply
	HalfmoveClock  int    // half moves since last capture or pawn move
	FullmoveNumber int

	kings [2]Square
}

// New returns the standard starting position.
func New() *Board {
	b := &Board{
		SideToMove:     White,
		Castling:       CastleAll,
		EnPassant:      NoSquare,
		FullmoveNumber: 1,
		kings:          [2]Square{E1, E8},
	}
	back := [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for file := 0; file < 8; file++ {
		b.squares[file] = MakePiece(White, back[file])
		b.squares[8+file] = MakePiece(White, Pawn)
		b.squares[48+file] = MakePiece(Black, Pawn)
		b.squares[56+file] = MakePiece(Black, back[file])
	}
	return b
}

// Empty returns a board with no pieces, used by the FEN decoder.
func Empty() *Board {
	return &Board{
		SideToMove:     White,
		EnPassant:      NoSquare,
		FullmoveNumber: 1,
		kings:          [2]Square{NoSquare, NoSquare},
	}
}

// PieceAt returns the piece on sq, NoPiece for an empty square.
func (b *Board) PieceAt(sq Square) Piece { return b.squares[sq] }

// Put places (or clears, with NoPiece) a piece. Intended for position import;
// game flow goes through Apply only.
func (b *Board) Put(sq Square, p Piece) {
	b.squares[sq] = p
	if p.Type() == King {
		b.kings[p.Color()] = sq
	}
}

// KingSquare returns the king location for c.
func (b *Board) KingSquare(c Color) Square { return b.kings[c] }

// Copy returns an independent snapshot.
func (b *Board) Copy() *Board {
	nb := *b
	return &nb
}

// Equal reports full positional equality including clocks.
func (b *Board) Equal(o *Board) bool {
	if b.squares != o.squares {
		return false
	}
	return b.SideToMove == o.SideToMove &&
		b.Castling == o.Castling &&
		b.EnPassant == o.EnPassant &&
		b.HalfmoveClock == o.HalfmoveClock &&
		b.FullmoveNumber == o.FullmoveNumber
}

// Validate checks the one-king-per-color invariant. Boards produced by Apply
// preserve it; imported positions are checked here.
func (b *Board) Validate() error {
	var kings [2]int
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p == NoPiece {
			continue
		}
		if p.Type() == King {
			kings[p.Color()]++
			b.kings[p.Color()] = sq
		}
	}
	if kings[White] != 1 || kings[Black] != 1 {
		return errors.New("position must contain exactly one king per side")
	}
	return nil
}

// InCheck reports whether c's king is currently attacked.
func (b *Board) InCheck(c Color) bool {
	return b.isAttacked(b.kings[c], c.Other())
}
