package board

// Zobrist keys, generated once from a fixed seed so hashes are reproducible
// across runs. Hash equality covers piece placement, side to move, castling
// rights and the en passant target, which is exactly what repetition
// detection needs.
var (
	zobristPiece      [2][7][64]uint64
	zobristEnPassant  [8]uint64
	zobristCastling   [16]uint64
	zobristSideToMove uint64
)

// xorshift64* keeps the key table free of external dependencies.
type prng struct{ state uint64 }

func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func init() {
	rng := prng{state: 0x51C3A97D4E20B681}
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := 0; sq < 64; sq++ {
				zobristPiece[c][pt][sq] = rng.next()
			}
		}
	}
	for file := 0; file < 8; file++ {
		zobristEnPassant[file] = rng.next()
	}
	for i := 0; i < 16; i++ {
		zobristCastling[i] = rng.next()
	}
	zobristSideToMove = rng.next()
}

// Hash returns the zobrist hash of the position. Clocks are excluded: two
// positions with different halfmove counters still repeat.
func (b *Board) Hash() uint64 {
	var h uint64
	for sq := Square(0); sq < 64; sq++ {
		if p := b.squares[sq]; p != NoPiece {
			h ^= zobristPiece[p.Color()][p.Type()][sq]
		}
	}
	if b.SideToMove == Black {
		h ^= zobristSideToMove
	}
	h ^= zobristCastling[b.Castling]
	if b.EnPassant != NoSquare {
		h ^= zobristEnPassant[b.EnPassant.File()]
	}
	return h
}
