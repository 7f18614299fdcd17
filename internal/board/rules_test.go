package board

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, fen string) *Board {
	t.Helper()
	b, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return b
}

func mustApplyUCI(t *testing.T, b *Board, moves ...string) *Board {
	t.Helper()
	for _, s := range moves {
		m, err := findUCI(b, s)
		if err != nil {
			t.Fatalf("move %s: %v", s, err)
		}
		b, err = b.Apply(m)
		if err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
	}
	return b
}

func findUCI(b *Board, s string) (Move, error) {
	for _, m := range LegalMoves(b) {
		if m.String() == s {
			return m, nil
		}
	}
	return Move{}, errors.New("not a legal move: " + s)
}

func TestApplyIsPure(t *testing.T) {
	b := New()
	before := b.Copy()
	m, _ := findUCI(b, "e2e4")
	if _, err := b.Apply(m); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !b.Equal(before) {
		t.Fatal("Apply mutated its receiver")
	}

	// Rejection leaves the board untouched too.
	if _, err := b.Apply(Move{From: E1, To: E1 + 8}); err == nil {
		t.Fatal("expected IllegalMoveError")
	}
	if !b.Equal(before) {
		t.Fatal("rejected Apply mutated its receiver")
	}
}

func TestIllegalMoveErrorType(t *testing.T) {
	b := New()
	_, err := b.Apply(Move{From: E1, To: E1 + 8})
	var illegal *IllegalMoveError
	if !errors.As(err, &illegal) {
		t.Fatalf("want *IllegalMoveError, got %T", err)
	}
	if illegal.Side != White {
		t.Errorf("Side = %s, want white", illegal.Side)
	}
}

func TestOpeningSequenceThenIllegalKingMove(t *testing.T) {
	b := mustApplyUCI(t, New(), "e2e4", "e7e5", "g1f3")
	snapshot := b.Copy()

	_, err := b.Apply(Move{From: E1, To: E1 + 8}) // e1e2
	var illegal *IllegalMoveError
	if !errors.As(err, &illegal) {
		t.Fatalf("e1e2 must fail with IllegalMoveError, got %v", err)
	}
	if !b.Equal(snapshot) {
		t.Fatal("board changed after rejected move")
	}
}

func TestCastlingRightsRevocation(t *testing.T) {
	// King move drops both rights for the mover.
	b := mustParse(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	nb := mustApplyUCI(t, b, "e1e2")
	if nb.Castling&(CastleWhiteKing|CastleWhiteQueen) != 0 {
		t.Errorf("white rights survive king move: %04b", nb.Castling)
	}
	if nb.Castling&(CastleBlackKing|CastleBlackQueen) != CastleBlackKing|CastleBlackQueen {
		t.Errorf("black rights clobbered: %04b", nb.Castling)
	}

	// Rook move drops only that wing.
	nb = mustApplyUCI(t, b.Copy(), "h1h2")
	if nb.Castling&CastleWhiteKing != 0 {
		t.Error("white kingside right survives h1 rook move")
	}
	if nb.Castling&CastleWhiteQueen == 0 {
		t.Error("white queenside right lost on h1 rook move")
	}

	// Capturing a rook on its home square revokes the victim's right.
	b = mustParse(t, "r3k2r/8/8/8/8/8/6p1/R3K2R b KQkq - 0 1")
	nb = mustApplyUCI(t, b, "g2h1q")
	if nb.Castling&CastleWhiteKing != 0 {
		t.Error("white kingside right survives rook capture on h1")
	}
}

func TestCastlingBlocked(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		move string
	}{
		{"king in check", "r3k2r/8/8/8/8/8/4r3/R3K2R w KQkq - 0 1", "e1g1"},
		{"transit attacked", "r3k2r/8/8/8/8/8/5r2/R3K2R w KQkq - 0 1", "e1g1"},
		{"landing attacked", "r3k2r/8/8/8/8/8/6r1/R3K2R w KQkq - 0 1", "e1g1"},
		{"square occupied", "r3k2r/8/8/8/8/8/8/R2QK2R w KQkq - 0 1", "e1c1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := mustParse(t, tc.fen)
			if _, err := findUCI(b, tc.move); err == nil {
				t.Errorf("castle %s should not be generated", tc.move)
			}
		})
	}

	// Queenside b-file may be attacked or occupied by nothing relevant: the
	// king never crosses b1, so only emptiness is required there.
	b := mustParse(t, "r3k2r/8/8/8/8/8/1r6/R3K2R w KQkq - 0 1")
	if _, err := findUCI(b, "e1c1"); err != nil {
		t.Errorf("queenside castle with only b1 attacked must stay legal: %v", err)
	}
}

func TestEnPassantOnlyOnePly(t *testing.T) {
	b := mustApplyUCI(t, New(), "e2e4", "a7a6", "e4e5", "d7d5")
	if b.EnPassant == NoSquare {
		t.Fatal("en passant target not set after double push")
	}
	if _, err := findUCI(b, "e5d6"); err != nil {
		t.Fatalf("en passant capture missing: %v", err)
	}

	// One unrelated ply later the chance is gone.
	b = mustApplyUCI(t, b, "h2h3", "h7h6")
	if b.EnPassant != NoSquare {
		t.Fatal("en passant target survived an extra ply")
	}
	if _, err := findUCI(b, "e5d6"); err == nil {
		t.Fatal("en passant capture still generated a ply late")
	}
}

func TestPromotionGeneratesAllKinds(t *testing.T) {
	b := mustParse(t, "8/P7/8/8/8/8/k7/4K3 w - - 0 1")
	want := map[string]bool{"a7a8q": false, "a7a8r": false, "a7a8b": false, "a7a8n": false}
	for _, m := range LegalMoves(b) {
		if _, ok := want[m.String()]; ok {
			want[m.String()] = true
		}
	}
	for s, seen := range want {
		if !seen {
			t.Errorf("promotion %s not generated", s)
		}
	}
}

func TestStatusCheckmateAndStalemate(t *testing.T) {
	mate := mustParse(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	st := Status(mate, nil)
	if st.Kind != StatusCheckmate || st.Winner != Black {
		t.Errorf("fool's mate: got %+v", st)
	}

	stale := mustParse(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if st := Status(stale, nil); st.Kind != StatusStalemate {
		t.Errorf("stalemate: got %+v", st)
	}
}

func TestStatusFiftyMoveRule(t *testing.T) {
	b := mustParse(t, "7k/8/8/8/8/8/8/R6K w - - 100 80")
	if st := Status(b, nil); st.Kind != StatusDraw || st.Draw != DrawFiftyMove {
		t.Errorf("got %+v, want fifty-move draw", st)
	}
	b.HalfmoveClock = 99
	if st := Status(b, nil); st.Kind != StatusOngoing {
		t.Errorf("clock 99 must stay ongoing, got %+v", st)
	}
}

func TestStatusInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		draw bool
	}{
		{"7k/8/8/8/8/8/8/7K w - - 0 1", true},            // K vs K
		{"7k/8/8/8/8/8/8/6NK w - - 0 1", true},           // K+N vs K
		{"7k/8/8/8/8/8/8/6BK w - - 0 1", true},           // K+B vs K
		{"6bk/8/8/8/8/8/8/5B1K w - - 0 1", true},         // same-colored bishops
		{"5b1k/8/8/8/8/8/8/5B1K w - - 0 1", false},       // opposite-colored bishops
		{"7k/8/8/8/8/8/8/5NNK w - - 0 1", false},         // two knights
		{"7k/8/8/8/8/8/7P/7K w - - 0 1", false},          // pawn remains
	}
	for _, tc := range cases {
		b := mustParse(t, tc.fen)
		st := Status(b, nil)
		got := st.Kind == StatusDraw && st.Draw == DrawInsufficientMaterial
		if got != tc.draw {
			t.Errorf("%s: insufficient=%v, want %v", tc.fen, got, tc.draw)
		}
	}
}

func TestThreefoldNeedsThreeHashes(t *testing.T) {
	b := New()
	h := b.Hash()
	if st := Status(b, []uint64{h, h}); st.Kind == StatusDraw {
		t.Error("two occurrences must not draw")
	}
	if st := Status(b, []uint64{h, h, h}); st.Kind != StatusDraw || st.Draw != DrawThreefold {
		t.Error("three occurrences must draw by repetition")
	}
}

func TestHashSensitivity(t *testing.T) {
	base := New().Hash()

	b := New()
	b.SideToMove = Black
	if b.Hash() == base {
		t.Error("hash ignores side to move")
	}

	b = New()
	b.Castling &^= CastleWhiteKing
	if b.Hash() == base {
		t.Error("hash ignores castling rights")
	}

	b = New()
	b.EnPassant = Square(20) // e3
	if b.Hash() == base {
		t.Error("hash ignores en passant target")
	}

	b = New()
	b.HalfmoveClock = 42
	if b.Hash() != base {
		t.Error("hash must not include the halfmove clock")
	}
}

func TestSquareConstruction(t *testing.T) {
	if _, err := NewSquare(8, 0); err == nil {
		t.Error("file 8 must be rejected")
	}
	if _, err := NewSquare(0, -1); err == nil {
		t.Error("rank -1 must be rejected")
	}
	sq, err := NewSquare(4, 3)
	if err != nil || sq.String() != "e4" {
		t.Errorf("NewSquare(4,3) = %v, %v", sq, err)
	}
	if _, err := ParseSquare("i9"); err == nil {
		t.Error("ParseSquare(i9) must fail")
	}
}
