// Package board tracks stones for the board variants the client can play
// against an engine, and turns clicks into protocol move commands.
//
// The variants form a closed set. The board enforces occupancy and, for
// Zhenqi, the push rule; it does not know about captures, legality beyond
// occupancy or scoring.
package board

import (
	"fmt"
	"strings"

	"github.com/a2y-d5l/gtpbridge/gtp"
)

// Variant selects the board geometry and placement rule.
type Variant int

const (
	// Gomoku is a 15×15 board where a stone occupies one empty cell.
	Gomoku Variant = iota

	// Zhenqi is an 8×8 board where a new stone pushes its neighbours away.
	Zhenqi
)

func (v Variant) String() string {
	switch v {
	case Gomoku:
		return "gomoku"
	case Zhenqi:
		return "zhenqi"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Size returns the side length of the variant's square board.
func (v Variant) Size() int {
	switch v {
	case Zhenqi:
		return 8
	default:
		return 15
	}
}

// ParseVariant maps a case-insensitive variant name to a Variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gomoku":
		return Gomoku, nil
	case "zhenqi":
		return Zhenqi, nil
	default:
		return 0, fmt.Errorf("unknown board variant %q", name)
	}
}

// Stone is the content of one cell, and also names the player to move.
type Stone int8

const (
	Empty Stone = iota
	Black
	White
)

// String returns the protocol color letter, or "" for Empty.
func (s Stone) String() string {
	switch s {
	case Black:
		return "B"
	case White:
		return "W"
	default:
		return ""
	}
}

// Other returns the opposing color.
func (s Stone) Other() Stone {
	if s == Black {
		return White
	}
	return Black
}

// Board is the stone layout of one game. Positions use gtp.Position, with
// row 0 at the top. Move strings always skip the letter I.
type Board struct {
	cells   []Stone
	variant Variant
	size    int
	toMove  Stone
	moves   int
}

// New returns an empty board of the given variant with Black to move.
func New(v Variant) *Board {
	b := &Board{variant: v, size: v.Size()}
	b.Reset()
	return b
}

// Variant returns the board's variant.
func (b *Board) Variant() Variant { return b.variant }

// Size returns the side length of the board.
func (b *Board) Size() int { return b.size }

// ToMove returns the color of the next stone.
func (b *Board) ToMove() Stone { return b.toMove }

// Moves returns the number of stones played since the last reset.
func (b *Board) Moves() int { return b.moves }

// Reset clears the board and gives Black the move.
func (b *Board) Reset() {
	b.cells = make([]Stone, b.size*b.size)
	b.toMove = Black
	b.moves = 0
}

// Stone returns the stone at p, or Empty when p is off the board.
func (b *Board) Stone(p gtp.Position) Stone {
	if !b.inside(p) {
		return Empty
	}
	return b.cells[b.index(p)]
}

// Play places the next stone at p and returns the command that tells the
// engine about it, e.g. "play B K10". It returns false and leaves the board
// unchanged when p is off the board or occupied.
func (b *Board) Play(p gtp.Position) (string, bool) {
	if !b.inside(p) || b.cells[b.index(p)] != Empty {
		return "", false
	}

	color := b.toMove
	b.cells[b.index(p)] = color
	if b.variant == Zhenqi {
		b.push(p)
	}
	b.toMove = color.Other()
	b.moves++

	return "play " + color.String() + " " + gtp.ToMoveString(p, b.size, true), true
}

// PlayMove is Play for a move string such as "D4".
func (b *Board) PlayMove(move string) (string, bool) {
	p, ok := gtp.FromMoveString(move, b.size, true)
	if !ok {
		return "", false
	}
	return b.Play(p)
}

// SetupCommands returns the commands that prepare an engine for a new game
// on this board.
func (b *Board) SetupCommands() []string {
	return []string{fmt.Sprintf("boardsize %d", b.size), "clear_board"}
}

// String draws the board with '.', 'X' (black) and 'O' (white), top row first.
func (b *Board) String() string {
	var sb strings.Builder
	for row := range b.size {
		for col := range b.size {
			switch b.cells[row*b.size+col] {
			case Black:
				sb.WriteByte('X')
			case White:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// neighbours lists the eight directions around a cell.
var neighbours = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// push moves every stone adjacent to p one cell further away from p. A stone
// pushed off the board is removed; a stone whose target cell is occupied
// stays where it is.
func (b *Board) push(p gtp.Position) {
	for _, d := range neighbours {
		n := gtp.Position{Col: p.Col + d[0], Row: p.Row + d[1]}
		if !b.inside(n) || b.cells[b.index(n)] == Empty {
			continue
		}
		target := gtp.Position{Col: n.Col + d[0], Row: n.Row + d[1]}
		switch {
		case !b.inside(target):
			b.cells[b.index(n)] = Empty
		case b.cells[b.index(target)] == Empty:
			b.cells[b.index(target)] = b.cells[b.index(n)]
			b.cells[b.index(n)] = Empty
		}
	}
}

func (b *Board) inside(p gtp.Position) bool {
	return p.Col >= 0 && p.Col < b.size && p.Row >= 0 && p.Row < b.size
}

func (b *Board) index(p gtp.Position) int {
	return p.Row*b.size + p.Col
}
