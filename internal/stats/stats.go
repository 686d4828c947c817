// Package stats aggregates decoded replays into player and board statistics.
package stats

import (
	"math"
	"sort"
	"unicode"

	"github.com/word-battle/internal/replay"
)

// LetterValue is the strength of each letter
var LetterValue = map[rune]int{
	'A': 3, 'B': 9, 'C': 8, 'D': 7, 'E': 1, 'F': 8, 'G': 8, 'H': 5, 'I': 5,
	'J': 10, 'K': 10, 'L': 7, 'M': 8, 'N': 5, 'O': 4, 'P': 9, 'Q': 10, 'R': 6,
	'S': 5, 'T': 2, 'U': 8, 'V': 10, 'W': 8, 'X': 10, 'Y': 9, 'Z': 10,
}

const topN = 3

// WordStrength sums the letter values of word. A word holding any letter
// without a value is worth 0.
func WordStrength(word string) int {
	total := 0
	for _, r := range word {
		v, ok := LetterValue[unicode.ToUpper(r)]
		if !ok {
			return 0
		}
		total += v
	}
	return total
}

// PlayerStats is the record of one player across replays
type PlayerStats struct {
	Name            string            `json:"name"`
	Kind            replay.PlayerKind `json:"kind"`
	Difficulty      *string           `json:"difficulty,omitempty"`
	Wins            int               `json:"wins"`
	Losses          int               `json:"losses"`
	Draws           int               `json:"draws"`
	TotalGames      int               `json:"totalGames"`
	WinRate         float64           `json:"winRate"`
	TopWords        []string          `json:"topWords"`
	TopLetters      []string          `json:"topLetters"`
	AvgWordStrength int               `json:"avgWordStrength"`
}

// Players tallies every player in order of first appearance. A terminal
// event counts for the player who carries it: WON as a win, RESIGNED as a
// loss and DRAW as a draw.
func Players(records []*replay.Record) []PlayerStats {
	index := make(map[string]int)
	var out []PlayerStats
	words := make(map[string][]string)

	for _, rec := range records {
		perGame := make(map[string][]string)
		for _, e := range rec.Events {
			i, ok := index[e.PlayerName]
			if !ok {
				i = len(out)
				index[e.PlayerName] = i
				out = append(out, PlayerStats{Name: e.PlayerName, Kind: e.PlayerKind, Difficulty: e.Difficulty})
			}
			p := &out[i]
			switch e.Outcome {
			case replay.OutcomeWon:
				p.Wins++
			case replay.OutcomeResigned:
				p.Losses++
			case replay.OutcomeDraw:
				p.Draws++
			}
			if e.Word != nil {
				words[e.PlayerName] = append(words[e.PlayerName], *e.Word)
				perGame[e.PlayerName] = append(perGame[e.PlayerName], *e.Word)
			}
		}
		for name, ws := range perGame {
			p := &out[index[name]]
			p.AvgWordStrength = max(p.AvgWordStrength, averageStrength(ws))
		}
	}

	for i := range out {
		p := &out[i]
		p.TotalGames = p.Wins + p.Losses + p.Draws
		p.WinRate = WinRate(p.Wins, p.TotalGames)
		p.TopWords = mostFrequent(words[p.Name], topN)
		p.TopLetters = mostFrequent(letters(words[p.Name]), topN)
	}
	return out
}

// WinRate is the percentage of games won, rounded to two decimals
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*100*100) / 100
}

func averageStrength(words []string) int {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += WordStrength(w)
	}
	return total / len(words)
}

func letters(words []string) []string {
	var out []string
	for _, w := range words {
		for _, r := range w {
			out = append(out, string(r))
		}
	}
	return out
}

// mostFrequent returns up to n distinct items by count, ties going to the
// item seen first
func mostFrequent(items []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// LetterCount is the number of times a letter was placed
type LetterCount struct {
	Letter string `json:"letter"`
	Count  int    `json:"count"`
}

// LetterFrequency counts every placed A-Z letter. All 26 letters are present,
// most frequent first and alphabetical among equals.
func LetterFrequency(records []*replay.Record) []LetterCount {
	var counts [26]int
	for _, rec := range records {
		for _, w := range rec.Words() {
			for _, r := range w {
				r = unicode.ToUpper(r)
				if r >= 'A' && r <= 'Z' {
					counts[r-'A']++
				}
			}
		}
	}

	out := make([]LetterCount, 26)
	for i := range out {
		out[i] = LetterCount{Letter: string(rune('A' + i)), Count: counts[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// LengthCount is the number of placed words of one length
type LengthCount struct {
	Length int `json:"length"`
	Count  int `json:"count"`
}

// WordLengthFrequency counts placed words by character length, most frequent first
func WordLengthFrequency(records []*replay.Record) []LengthCount {
	counts := make(map[int]int)
	for _, rec := range records {
		for _, e := range rec.Events {
			if e.Word != nil {
				counts[e.WordLength()]++
			}
		}
	}

	out := make([]LengthCount, 0, len(counts))
	for length, n := range counts {
		out = append(out, LengthCount{Length: length, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Length < out[j].Length
	})
	return out
}

// Heatmap is the relative usage of each square over replays of one board length
type Heatmap struct {
	Length  int         `json:"length"`
	Samples int         `json:"samples"`
	Cells   [][]float64 `json:"cells"`
}

// SquareUsage counts every selected cell of the replays played on a board of
// the given length. Each cell holds its share of all samples as a
// percentage, capped at 1.
func SquareUsage(records []*replay.Record, length int) Heatmap {
	h := Heatmap{Length: length, Cells: make([][]float64, length)}
	counts := make([][]int, length)
	for i := range counts {
		counts[i] = make([]int, length)
		h.Cells[i] = make([]float64, length)
	}

	for _, rec := range records {
		if rec.BoardLength != length {
			continue
		}
		for _, e := range rec.Events {
			for _, c := range e.SelectedPath {
				if c.Row < 0 || c.Col < 0 || c.Row >= length || c.Col >= length {
					continue
				}
				counts[c.Row][c.Col]++
				h.Samples++
			}
		}
	}
	if h.Samples == 0 {
		return h
	}

	for r := range counts {
		for c, n := range counts[r] {
			h.Cells[r][c] = min(float64(n)/float64(h.Samples)*100, 1)
		}
	}
	return h
}

// BoardSizes returns the distinct board lengths in order of first appearance
func BoardSizes(records []*replay.Record) []int {
	seen := make(map[int]bool)
	var out []int
	for _, rec := range records {
		if !seen[rec.BoardLength] {
			seen[rec.BoardLength] = true
			out = append(out, rec.BoardLength)
		}
	}
	return out
}

// MixedBoardSizes reports whether the replays disagree on board length
func MixedBoardSizes(records []*replay.Record) bool {
	return len(BoardSizes(records)) > 1
}
