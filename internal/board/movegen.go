package board

var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	bishopDirs    = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	rookDirs      = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	promotions    = [4]PieceType{Queen, Rook, Bishop, Knight}
)

// LegalMoves returns every move the side to move may play without leaving
// its own king attacked.
func LegalMoves(b *Board) []Move {
	pseudo := b.pseudoLegal()
	moves := make([]Move, 0, len(pseudo))
	for _, m := range pseudo {
		if !b.leavesKingExposed(m) {
			moves = append(moves, m)
		}
	}
	return moves
}

// HasLegalMoves is LegalMoves with early exit, for mate/stalemate detection.
func HasLegalMoves(b *Board) bool {
	for _, m := range b.pseudoLegal() {
		if !b.leavesKingExposed(m) {
			return true
		}
	}
	return false
}

// leavesKingExposed simulates m and tests whether the mover's king ends up
// attacked. This also rules out the en passant horizontal pin, since the
// captured pawn is off the board during the test.
func (b *Board) leavesKingExposed(m Move) bool {
	mover := b.SideToMove
	nb := *b
	nb.applyUnchecked(m)
	return nb.isAttacked(nb.kings[mover], mover.Other())
}

func (b *Board) pseudoLegal() []Move {
	us := b.SideToMove
	moves := make([]Move, 0, 48)
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p == NoPiece || p.Color() != us {
			continue
		}
		switch p.Type() {
		case Pawn:
			moves = b.pawnMoves(moves, sq, us)
		case Knight:
			moves = b.stepMoves(moves, sq, us, knightOffsets[:])
		case Bishop:
			moves = b.slideMoves(moves, sq, us, bishopDirs[:])
		case Rook:
			moves = b.slideMoves(moves, sq, us, rookDirs[:])
		case Queen:
			moves = b.slideMoves(moves, sq, us, bishopDirs[:])
			moves = b.slideMoves(moves, sq, us, rookDirs[:])
		case King:
			moves = b.stepMoves(moves, sq, us, kingOffsets[:])
		}
	}
	moves = b.castleMoves(moves, us)
	return moves
}

func (b *Board) pawnMoves(moves []Move, from Square, us Color) []Move {
	dir := 1
	startRank, promoRank := 1, 7
	if us == Black {
		dir = -1
		startRank, promoRank = 6, 0
	}
	file, rank := from.File(), from.Rank()

	appendPawn := func(to Square, flags MoveFlags) []Move {
		if to.Rank() == promoRank {
			for _, pt := range promotions {
				moves = append(moves, Move{From: from, To: to, Promotion: pt, Flags: flags})
			}
			return moves
		}
		return append(moves, Move{From: from, To: to, Flags: flags})
	}

	// Pushes.
	if one, err := NewSquare(file, rank+dir); err == nil && b.squares[one] == NoPiece {
		moves = appendPawn(one, 0)
		if rank == startRank {
			two := Square(int(one) + 8*dir)
			if b.squares[two] == NoPiece {
				moves = append(moves, Move{From: from, To: two, Flags: FlagDoublePush})
			}
		}
	}

	// Captures, including en passant.
	for _, df := range [2]int{-1, 1} {
		to, err := NewSquare(file+df, rank+dir)
		if err != nil {
			continue
		}
		target := b.squares[to]
		if target != NoPiece && target.Color() != us {
			moves = appendPawn(to, FlagCapture)
		} else if to == b.EnPassant {
			moves = append(moves, Move{From: from, To: to, Flags: FlagEnPassant})
		}
	}
	return moves
}

func (b *Board) stepMoves(moves []Move, from Square, us Color, offsets [][2]int) []Move {
	file, rank := from.File(), from.Rank()
	for _, off := range offsets {
		to, err := NewSquare(file+off[0], rank+off[1])
		if err != nil {
			continue
		}
		target := b.squares[to]
		if target == NoPiece {
			moves = append(moves, Move{From: from, To: to})
		} else if target.Color() != us {
			moves = append(moves, Move{From: from, To: to, Flags: FlagCapture})
		}
	}
	return moves
}

func (b *Board) slideMoves(moves []Move, from Square, us Color, dirs [][2]int) []Move {
	for _, dir := range dirs {
		file, rank := from.File()+dir[0], from.Rank()+dir[1]
		for {
			to, err := NewSquare(file, rank)
			if err != nil {
				break
			}
			target := b.squares[to]
			if target == NoPiece {
				moves = append(moves, Move{From: from, To: to})
			} else {
				if target.Color() != us {
					moves = append(moves, Move{From: from, To: to, Flags: FlagCapture})
				}
				break
			}
			file += dir[0]
			rank += dir[1]
		}
	}
	return moves
}

// castleMoves emits castles only when the rights flag is intact, the squares
// between king and rook are empty, the king is not in check, and neither the
// transit nor the landing square is attacked.
func (b *Board) castleMoves(moves []Move, us Color) []Move {
	kingFrom, them := E1, Black
	kingRight, queenRight := CastleWhiteKing, CastleWhiteQueen
	if us == Black {
		kingFrom, them = E8, White
		kingRight, queenRight = CastleBlackKing, CastleBlackQueen
	}
	if b.kings[us] != kingFrom || b.isAttacked(kingFrom, them) {
		return moves
	}
	if b.Castling&kingRight != 0 &&
		b.squares[kingFrom+1] == NoPiece && b.squares[kingFrom+2] == NoPiece &&
		!b.isAttacked(kingFrom+1, them) && !b.isAttacked(kingFrom+2, them) {
		moves = append(moves, Move{From: kingFrom, To: kingFrom + 2, Flags: FlagCastleKingside})
	}
	if b.Castling&queenRight != 0 &&
		b.squares[kingFrom-1] == NoPiece && b.squares[kingFrom-2] == NoPiece && b.squares[kingFrom-3] == NoPiece &&
		!b.isAttacked(kingFrom-1, them) && !b.isAttacked(kingFrom-2, them) {
		moves = append(moves, Move{From: kingFrom, To: kingFrom - 2, Flags: FlagCastleQueenside})
	}
	return moves
}

// isAttacked reports whether sq is attacked by any piece of color by.
func (b *Board) isAttacked(sq Square, by Color) bool {
	file, rank := sq.File(), sq.Rank()

	// Pawns attack toward their opponent's side.
	pawnRank := rank - 1
	if by == Black {
		pawnRank = rank + 1
	}
	pawn := MakePiece(by, Pawn)
	for _, df := range [2]int{-1, 1} {
		if from, err := NewSquare(file+df, pawnRank); err == nil && b.squares[from] == pawn {
			return true
		}
	}

	knight := MakePiece(by, Knight)
	for _, off := range knightOffsets {
		if from, err := NewSquare(file+off[0], rank+off[1]); err == nil && b.squares[from] == knight {
			return true
		}
	}

	king := MakePiece(by, King)
	for _, off := range kingOffsets {
		if from, err := NewSquare(file+off[0], rank+off[1]); err == nil && b.squares[from] == king {
			return true
		}
	}

	bishop, rook, queen := MakePiece(by, Bishop), MakePiece(by, Rook), MakePiece(by, Queen)
	for _, dir := range bishopDirs {
		if p := b.firstAlongRay(file, rank, dir); p == bishop || p == queen {
			return true
		}
	}
	for _, dir := range rookDirs {
		if p := b.firstAlongRay(file, rank, dir); p == rook || p == queen {
			return true
		}
	}
	return false
}

func (b *Board) firstAlongRay(file, rank int, dir [2]int) Piece {
	file += dir[0]
	rank += dir[1]
	for {
		sq, err := NewSquare(file, rank)
		if err != nil {
			return NoPiece
		}
		if p := b.squares[sq]; p != NoPiece {
			return p
		}
		file += dir[0]
		rank += dir[1]
	}
}
