package board

import "testing"

// perft counts leaf nodes at fixed depth, the standard way to validate move
// generation against published reference values.
func perft(b *Board, depth int) int64 {
	if depth == 0 {
		return 1
	}
	moves := LegalMoves(b)
	if depth == 1 {
		return int64(len(moves))
	}
	var nodes int64
	for _, m := range moves {
		nb := *b
		nb.applyUnchecked(m)
		nodes += perft(&nb, depth-1)
	}
	return nodes
}

func TestPerftStartingPosition(t *testing.T) {
	expected := []int64{20, 400, 8902, 197281}
	for depth, want := range expected {
		b := New()
		if got := perft(b, depth+1); got != want {
			t.Errorf("perft(%d) = %d, want %d", depth+1, got, want)
		}
	}
}

func TestPerftKiwipete(t *testing.T) {
	b, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	expected := []int64{48, 2039, 97862}
	for depth, want := range expected {
		if got := perft(b, depth+1); got != want {
			t.Errorf("perft(%d) = %d, want %d", depth+1, got, want)
		}
	}
}

func TestPerftEnPassantPosition(t *testing.T) {
	b, err := ParseFEN("8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	expected := []int64{14, 191, 2812, 43238}
	for depth, want := range expected {
		if got := perft(b, depth+1); got != want {
			t.Errorf("perft(%d) = %d, want %d", depth+1, got, want)
		}
	}
}

// The pawn on e4 may not capture d3 en passant: removing both pawns from the
// fourth rank exposes the black king to the rook on h4.
func TestEnPassantHorizontalPin(t *testing.T) {
	b, err := ParseFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	for _, m := range LegalMoves(b) {
		if m.Flags&FlagEnPassant != 0 {
			t.Errorf("en passant capture %s should be illegal", m)
		}
	}
	if got := perft(b, 1); got != 6 {
		t.Errorf("perft(1) = %d, want 6", got)
	}
}
