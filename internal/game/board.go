package game

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/word-battle/internal/replay"
)

// Coord is a (row, column) position on the board
type Coord = replay.Coord

// Empty is the zero rune stored in a blank cell
const Empty rune = 0

// Annotation tags a cell for display
type Annotation uint8

const (
	AnnotationNone Annotation = iota
	AnnotationPlaced
	AnnotationLastMove
)

var annotationNames = [...]string{"none", "placed", "last_move"}

func (a Annotation) String() string {
	if int(a) < len(annotationNames) {
		return annotationNames[a]
	}
	return fmt.Sprintf("annotation(%d)", uint8(a))
}

// MarshalText encodes the annotation by name
func (a Annotation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an annotation name
func (a *Annotation) UnmarshalText(text []byte) error {
	for i, name := range annotationNames {
		if name == string(text) {
			*a = Annotation(i)
			return nil
		}
	}
	return fmt.Errorf("unknown annotation %q", text)
}

var (
	errWordPathMismatch = errors.New("word length does not match path length")
	errOutOfBounds      = errors.New("coordinate outside the board")
)

// Board is a square letter grid with a per-cell annotation overlay.
// It is owned by a single session and is not safe for concurrent use.
type Board struct {
	length      int
	cells       [][]rune
	annotations [][]Annotation
	lastMove    []Coord
}

// NewBoard creates an empty board of the given side length
func NewBoard(length int) *Board {
	b := &Board{
		length:      length,
		cells:       make([][]rune, length),
		annotations: make([][]Annotation, length),
	}
	for i := 0; i < length; i++ {
		b.cells[i] = make([]rune, length)
		b.annotations[i] = make([]Annotation, length)
	}
	return b
}

// Length returns the side length of the board
func (b *Board) Length() int {
	return b.length
}

// InBounds reports whether c lies on the board
func (b *Board) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < b.length && c.Col >= 0 && c.Col < b.length
}

// Cell returns the letter at c, or Empty
func (b *Board) Cell(c Coord) rune {
	if !b.InBounds(c) {
		return Empty
	}
	return b.cells[c.Row][c.Col]
}

// Annotation returns the overlay tag at c
func (b *Board) Annotation(c Coord) Annotation {
	if !b.InBounds(c) {
		return AnnotationNone
	}
	return b.annotations[c.Row][c.Col]
}

// IsFree reports whether the cell at c is blank
func (b *Board) IsFree(c Coord) bool {
	return b.InBounds(c) && b.cells[c.Row][c.Col] == Empty
}

// Place writes the word's characters along path, one per cell in path order.
// The previous move's cells drop back to Placed and the new path becomes the
// last move. Nothing is written when the arguments are inconsistent.
func (b *Board) Place(word string, path []Coord) error {
	if utf8.RuneCountInString(word) != len(path) {
		return fmt.Errorf("%w: %d characters, %d cells", errWordPathMismatch, utf8.RuneCountInString(word), len(path))
	}
	for _, c := range path {
		if !b.InBounds(c) {
			return fmt.Errorf("%w: %s on a %dx%d board", errOutOfBounds, c, b.length, b.length)
		}
	}

	for _, c := range b.lastMove {
		b.annotations[c.Row][c.Col] = AnnotationPlaced
	}

	i := 0
	for _, r := range word {
		c := path[i]
		b.cells[c.Row][c.Col] = r
		b.annotations[c.Row][c.Col] = AnnotationLastMove
		i++
	}
	b.lastMove = append(b.lastMove[:0], path...)
	return nil
}

// IsFull checks if every cell holds a letter (draw condition)
func (b *Board) IsFull() bool {
	for row := 0; row < b.length; row++ {
		for col := 0; col < b.length; col++ {
			if b.cells[row][col] == Empty {
				return false
			}
		}
	}
	return true
}

// Clone creates a deep copy of the board
func (b *Board) Clone() *Board {
	nb := NewBoard(b.length)
	for i := 0; i < b.length; i++ {
		copy(nb.cells[i], b.cells[i])
		copy(nb.annotations[i], b.annotations[i])
	}
	nb.lastMove = append([]Coord(nil), b.lastMove...)
	return nb
}

// ToSlice converts the board to a 2D slice of strings for JSON serialization.
// Blank cells are empty strings.
func (b *Board) ToSlice() [][]string {
	result := make([][]string, b.length)
	for i := 0; i < b.length; i++ {
		result[i] = make([]string, b.length)
		for j := 0; j < b.length; j++ {
			if r := b.cells[i][j]; r != Empty {
				result[i][j] = string(r)
			}
		}
	}
	return result
}

// AnnotationSlice returns a copy of the overlay
func (b *Board) AnnotationSlice() [][]Annotation {
	result := make([][]Annotation, b.length)
	for i := 0; i < b.length; i++ {
		result[i] = append([]Annotation(nil), b.annotations[i]...)
	}
	return result
}

// String renders the grid one row per line, blanks as '_'
func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < b.length; row++ {
		for col := 0; col < b.length; col++ {
			if col > 0 {
				sb.WriteByte(' ')
			}
			if r := b.cells[row][col]; r != Empty {
				sb.WriteRune(r)
			} else {
				sb.WriteByte('_')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
