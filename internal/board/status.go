package board

// StatusKind is the terminal classification of a position.
type StatusKind uint8

const (
	StatusOngoing StatusKind = iota
	StatusCheckmate
	StatusStalemate
	StatusDraw
)

// DrawReason qualifies StatusDraw.
type DrawReason uint8

const (
	DrawNone DrawReason = iota
	DrawFiftyMove
	DrawThreefold
	DrawInsufficientMaterial
)

func (r DrawReason) String() string {
	switch r {
	case DrawFiftyMove:
		return "fifty-move rule"
	case DrawThreefold:
		return "threefold repetition"
	case DrawInsufficientMaterial:
		return "insufficient material"
	}
	return "none"
}

// GameStatus is the outcome of evaluating a position against the game record.
type GameStatus struct {
	Kind   StatusKind
	Draw   DrawReason
	Winner Color // meaningful only for StatusCheckmate
}

// Status classifies the position. hashes is the sequence of position hashes
// across the game record, current position included; three equal hashes mean
// threefold repetition. Mate and stalemate take precedence over clock draws,
// then fifty-move, threefold, insufficient material.
func Status(b *Board, hashes []uint64) GameStatus {
	if !HasLegalMoves(b) {
		if b.InCheck(b.SideToMove) {
			return GameStatus{Kind: StatusCheckmate, Winner: b.SideToMove.Other()}
		}
		return GameStatus{Kind: StatusStalemate}
	}
	if b.HalfmoveClock >= 100 {
		return GameStatus{Kind: StatusDraw, Draw: DrawFiftyMove}
	}
	cur := b.Hash()
	seen := 0
	for _, h := range hashes {
		if h == cur {
			seen++
		}
	}
	if seen >= 3 {
		return GameStatus{Kind: StatusDraw, Draw: DrawThreefold}
	}
	if insufficientMaterial(b) {
		return GameStatus{Kind: StatusDraw, Draw: DrawInsufficientMaterial}
	}
	return GameStatus{Kind: StatusOngoing}
}

// insufficientMaterial matches the closed set of dead positions: K vs K,
// K+minor vs K, and K+B vs K+B with both bishops on the same square color.
func insufficientMaterial(b *Board) bool {
	type extra struct {
		pt    PieceType
		side  Color
		light bool
	}
	var extras []extra
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p == NoPiece || p.Type() == King {
			continue
		}
		switch p.Type() {
		case Knight, Bishop:
			extras = append(extras, extra{p.Type(), p.Color(), (sq.File()+sq.Rank())%2 == 0})
			if len(extras) > 2 {
				return false
			}
		default:
			return false
		}
	}
	switch len(extras) {
	case 0, 1:
		return true
	case 2:
		return extras[0].pt == Bishop && extras[1].pt == Bishop &&
			extras[0].side != extras[1].side &&
			extras[0].light == extras[1].light
	}
	return false
}
