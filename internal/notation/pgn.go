package notation

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Tags carries the PGN seven-tag-roster subset this core fills in.
type Tags struct {
	Event       string
	Site        string
	Date        time.Time
	White       string
	Black       string
	Result      string // "1-0", "0-1", "1/2-1/2" or "*"
	Termination string
	FEN         string // set when the game did not start from the initial position
}

// WritePGN writes one archival game: tag section, blank line, numbered
// movetext, result token.
func WritePGN(w io.Writer, tags Tags, sanMoves []string) error {
	result := strings.TrimSpace(tags.Result)
	if result == "" {
		result = "*"
	}
	date := tags.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	writeTag(&b, "Event", orDefault(tags.Event, "Casual game"))
	writeTag(&b, "Site", orDefault(tags.Site, "chesscore"))
	writeTag(&b, "Date", fmt.Sprintf("%04d.%02d.%02d", date.Year(), int(date.Month()), date.Day()))
	writeTag(&b, "White", orDefault(tags.White, "?"))
	writeTag(&b, "Black", orDefault(tags.Black, "?"))
	writeTag(&b, "Result", result)
	if tags.Termination != "" {
		writeTag(&b, "Termination", strings.ToLower(tags.Termination))
	}
	if tags.FEN != "" {
		writeTag(&b, "SetUp", "1")
		writeTag(&b, "FEN", tags.FEN)
	}
	b.WriteByte('\n')

	moveNo, blackFirst := movetextStart(tags.FEN)
	i := 0
	if blackFirst && len(sanMoves) > 0 {
		fmt.Fprintf(&b, "%d... %s ", moveNo, strings.TrimSpace(sanMoves[0]))
		moveNo++
		i = 1
	}
	for ; i < len(sanMoves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", moveNo, strings.TrimSpace(sanMoves[i]))
		if i+1 < len(sanMoves) {
			b.WriteByte(' ')
			b.WriteString(strings.TrimSpace(sanMoves[i+1]))
		}
		b.WriteByte(' ')
		moveNo++
	}
	b.WriteString(result)
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// movetextStart derives the first move number and whether Black moves first
// from the FEN tag. Games from the initial position number from 1 with White
// on the move.
func movetextStart(fen string) (int, bool) {
	moveNo, blackFirst := 1, false
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		blackFirst = true
	}
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			moveNo = n
		}
	}
	return moveNo, blackFirst
}

func writeTag(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "[%s \"%s\"]\n", key, sanitizeTag(value))
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
