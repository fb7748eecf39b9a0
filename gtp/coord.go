package gtp

import (
	"strconv"
	"strings"
)

// PassMove is the vertex an engine reports for a pass. It has no board position.
const PassMove = "pass"

// skippedColumn is the column index of 'I', which Go boards leave out so it
// cannot be mistaken for 'J' or the digit one.
const skippedColumn = 'I' - 'A'

// Position is a zero-based board cell. Row 0 is the top row of the board,
// which the protocol numbers as the board height.
type Position struct {
	Col int
	Row int
}

// ToMoveString converts a board position into protocol vertex notation,
// e.g. column 3, row 0 on a 19-high board becomes "D19".
//
// When skipI is set, columns at or past 'I' shift up one letter so the
// result never contains 'I'. An empty string is returned when the column
// has no letter.
func ToMoveString(p Position, height int, skipI bool) string {
	col := p.Col
	if col < 0 {
		return ""
	}
	if skipI && col >= skippedColumn {
		col++
	}
	if col > 'Z'-'A' {
		return ""
	}
	return string(rune('A'+col)) + strconv.Itoa(height-p.Row)
}

// FromMoveString is the inverse of ToMoveString. It reports false for the
// pass vertex, for strings shorter than two characters, and for anything
// that does not land on a row of a board with the given height.
func FromMoveString(s string, height int, skipI bool) (Position, bool) {
	if len(s) < 2 || strings.EqualFold(s, PassMove) {
		return Position{}, false
	}

	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return Position{}, false
	}
	col := int(letter - 'A')
	if skipI {
		switch {
		case col == skippedColumn:
			return Position{}, false
		case col > skippedColumn:
			col--
		}
	}

	digits := s[1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Position{}, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Position{}, false
	}

	row := height - n
	if row < 0 || row >= height {
		return Position{}, false
	}
	return Position{Col: col, Row: row}, true
}
