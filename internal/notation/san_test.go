package notation

import (
	"errors"
	"testing"

	"github.com/park285/chesscore/internal/board"
)

func mustParse(t *testing.T, fen string) *board.Board {
	t.Helper()
	b, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return b
}

func TestEncodeSANDisambiguation(t *testing.T) {
	// Rooks on a1 and f1 both reach d1: file disambiguation.
	b := mustParse(t, "7k/8/8/8/8/8/8/R4RK1 w - - 0 1")
	m, err := ParseUCI(b, "a1d1")
	if err != nil {
		t.Fatalf("ParseUCI: %v", err)
	}
	if san, _ := EncodeSAN(b, m); san != "Rad1" {
		t.Errorf("EncodeSAN = %q, want Rad1", san)
	}

	// Three queens reaching c3: full square needed for a1.
	b = mustParse(t, "1k6/8/8/Q7/8/8/8/Q3Q2K w - - 0 1")
	m, err = ParseUCI(b, "a1c3")
	if err != nil {
		t.Fatalf("ParseUCI: %v", err)
	}
	if san, _ := EncodeSAN(b, m); san != "Qa1c3" {
		t.Errorf("EncodeSAN = %q, want Qa1c3", san)
	}

	// A lone piece needs no disambiguation.
	b = mustParse(t, "7k/8/8/8/8/8/8/R5K1 w - - 0 1")
	m, _ = ParseUCI(b, "a1d1")
	if san, _ := EncodeSAN(b, m); san != "Rd1" {
		t.Errorf("EncodeSAN = %q, want Rd1", san)
	}
}

func TestEncodeSANCheckAndMateMarkers(t *testing.T) {
	b := mustParse(t, "4k3/8/8/8/8/8/8/4KR2 w - - 0 1")
	m, _ := ParseUCI(b, "f1f8")
	if san, _ := EncodeSAN(b, m); san != "Rf8+" {
		t.Errorf("EncodeSAN = %q, want Rf8+", san)
	}

	// Back-rank mate.
	b = mustParse(t, "6k1/5ppp/8/8/8/8/8/4R1K1 w - - 0 1")
	m, _ = ParseUCI(b, "e1e8")
	if san, _ := EncodeSAN(b, m); san != "Re8#" {
		t.Errorf("EncodeSAN = %q, want Re8#", san)
	}
}

func TestSANRoundTripGame(t *testing.T) {
	moves := []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Bxc6", "dxc6", "O-O", "f6", "d4", "exd4", "Nxd4"}
	b := board.New()
	for _, san := range moves {
		m, err := DecodeSAN(b, san)
		if err != nil {
			t.Fatalf("DecodeSAN(%q): %v", san, err)
		}
		got, err := EncodeSAN(b, m)
		if err != nil {
			t.Fatalf("EncodeSAN(%q): %v", san, err)
		}
		if got != san {
			t.Errorf("round trip %q -> %q", san, got)
		}
		b, err = b.Apply(m)
		if err != nil {
			t.Fatalf("apply %q: %v", san, err)
		}
	}
}

func TestDecodeSANPromotion(t *testing.T) {
	b := mustParse(t, "8/P7/8/8/8/8/k7/4K3 w - - 0 1")
	m, err := DecodeSAN(b, "a8=N")
	if err != nil {
		t.Fatalf("DecodeSAN: %v", err)
	}
	if m.Promotion != board.Knight {
		t.Errorf("promotion = %v, want knight", m.Promotion)
	}
	// Without a promotion suffix the pawn push matches no legal move.
	if _, err := DecodeSAN(b, "a8"); err == nil {
		t.Error("bare a8 push must not resolve on the last rank")
	}
}

func TestDecodeSANFailures(t *testing.T) {
	// Two rooks reach d1: bare Rd1 is ambiguous.
	b := mustParse(t, "7k/8/8/8/8/8/8/R4RK1 w - - 0 1")
	_, err := DecodeSAN(b, "Rd1")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParseError for ambiguous move, got %v", err)
	}

	// No matching legal move at all.
	if _, err := DecodeSAN(board.New(), "Qd5"); err == nil {
		t.Error("Qd5 from the start must fail")
	}
	if _, err := DecodeSAN(board.New(), "O-O"); err == nil {
		t.Error("castling from the start must fail")
	}
	if _, err := DecodeSAN(board.New(), ""); err == nil {
		t.Error("empty string must fail")
	}
}

func TestParseUCI(t *testing.T) {
	b := board.New()
	m, err := ParseUCI(b, "e2e4")
	if err != nil {
		t.Fatalf("ParseUCI: %v", err)
	}
	if m.Flags&board.FlagDoublePush == 0 {
		t.Error("e2e4 must carry the double-push flag from the generator")
	}
	if FormatUCI(m) != "e2e4" {
		t.Errorf("FormatUCI = %q", FormatUCI(m))
	}

	if _, err := ParseUCI(b, "e2e5"); err == nil {
		t.Error("e2e5 is not legal and must fail")
	}
	if _, err := ParseUCI(b, "zz99"); err == nil {
		t.Error("garbage squares must fail")
	}
	if _, err := ParseUCI(b, "e2"); err == nil {
		t.Error("short string must fail")
	}

	promo := mustParse(t, "8/P7/8/8/8/8/k7/4K3 w - - 0 1")
	m, err = ParseUCI(promo, "a7a8q")
	if err != nil {
		t.Fatalf("ParseUCI promotion: %v", err)
	}
	if m.Promotion != board.Queen {
		t.Errorf("promotion = %v, want queen", m.Promotion)
	}
}
