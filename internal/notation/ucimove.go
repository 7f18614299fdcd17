package notation

import "github.com/park285/chesscore/internal/board"

// FormatUCI renders the wire form used on the engine channel (e2e4, e7e8q).
func FormatUCI(m board.Move) string { return m.String() }

// ParseUCI resolves a wire-form move against the legal moves of b, so the
// returned move carries generator-consistent flags. A syntactically valid
// string naming an illegal move still fails.
func ParseUCI(b *board.Board, s string) (board.Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return board.Move{}, &ParseError{Input: s, Msg: "want 4 or 5 characters"}
	}
	from, err := board.ParseSquare(s[0:2])
	if err != nil {
		return board.Move{}, &ParseError{Input: s, Msg: "bad origin square"}
	}
	to, err := board.ParseSquare(s[2:4])
	if err != nil {
		return board.Move{}, &ParseError{Input: s, Msg: "bad destination square"}
	}
	promo := board.NoPieceType
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = board.Knight
		case 'b':
			promo = board.Bishop
		case 'r':
			promo = board.Rook
		case 'q':
			promo = board.Queen
		default:
			return board.Move{}, &ParseError{Input: s, Msg: "bad promotion letter"}
		}
	}
	for _, m := range board.LegalMoves(b) {
		if m.From == from && m.To == to && m.Promotion == promo {
			return m, nil
		}
	}
	return board.Move{}, &board.IllegalMoveError{
		Move: board.Move{From: from, To: to, Promotion: promo},
		Side: b.SideToMove,
	}
}
