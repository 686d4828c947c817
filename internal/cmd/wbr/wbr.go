// Package wbr implements the replay command line tool: directory scans,
// console playback and path queries.
package wbr

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/word-battle/internal/config"
	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/playback"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/scan"
	"github.com/word-battle/internal/stats"
)

const usage = `usage: wbr <command> [flags]

commands:
  scan [-length N] [-stats] [dir]    report every replay file of dir
  play [-delay D] <file>             replay a file turn by turn
  paths -length N -row R -col C      list the paths offered from a boundary cell`

// ErrUsage is returned for a missing or unknown command
var ErrUsage = errors.New(usage)

// Run executes one command
func Run(ctx context.Context, cfg config.Config, args []string, out, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "scan":
		return runScan(ctx, cfg, args[1:], out, errOut)
	case "play":
		return runPlay(ctx, cfg, args[1:], out, errOut)
	case "paths":
		return runPaths(args[1:], out, errOut)
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], ErrUsage)
	}
}

func runScan(ctx context.Context, cfg config.Config, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(errOut)
	length := fs.Int("length", 0, "only report boards of this length")
	withStats := fs.Bool("stats", false, "print player and letter statistics")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := cfg.ReplayDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	sum, err := scan.Dir(ctx, dir, cfg.ScanOptions())
	if err != nil {
		return err
	}

	reports := sum.Reports
	if *length > 0 {
		reports = sum.Matching(*length)
	}
	for _, rep := range reports {
		fmt.Fprintln(out, rep.Line())
	}
	if sum.Warning {
		fmt.Fprintln(out, "Warning: some replay files could not be read and are reported as Indeterminate")
	}

	records := sum.Records()
	if *length > 0 {
		records = nil
		for _, rep := range reports {
			records = append(records, rep.Record)
		}
	}
	if stats.MixedBoardSizes(records) {
		fmt.Fprintf(out, "Warning: replays use different board sizes %v\n", stats.BoardSizes(records))
	}
	if *withStats {
		printStats(out, records)
	}
	return nil
}

func printStats(out io.Writer, records []*replay.Record) {
	fmt.Fprintln(out)
	for _, p := range stats.Players(records) {
		name := p.Name
		if p.Difficulty != nil {
			name += " (" + *p.Difficulty + ")"
		}
		fmt.Fprintf(out, "%s | Wins: %d | Losses: %d | Draws: %d | Games: %d | Win Rate: %.2f%% | Top Words: %s | Top Letters: %s | Avg Word Strength: %d\n",
			name, p.Wins, p.Losses, p.Draws, p.TotalGames, p.WinRate,
			strings.Join(p.TopWords, ", "), strings.Join(p.TopLetters, ", "), p.AvgWordStrength)
	}

	var letters []string
	for _, lc := range stats.LetterFrequency(records) {
		letters = append(letters, fmt.Sprintf("%s:%d", lc.Letter, lc.Count))
	}
	fmt.Fprintln(out, "Letters: "+strings.Join(letters, " "))

	var lengths []string
	for _, lc := range stats.WordLengthFrequency(records) {
		lengths = append(lengths, fmt.Sprintf("%d:%d", lc.Length, lc.Count))
	}
	fmt.Fprintln(out, "Word lengths: "+strings.Join(lengths, " "))
}

func runPlay(ctx context.Context, cfg config.Config, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(errOut)
	delay := fs.Duration("delay", cfg.PlaybackDelay, "pause between turns")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("play needs exactly one replay file")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	rec, err := replay.Parse(data, cfg.Limits())
	if err != nil {
		return err
	}

	final, err := playback.Play(ctx, rec, cfg.Limits(), playback.Options{Delay: max(*delay, 0)}, func(s game.Snapshot) error {
		return printFrame(out, s)
	})
	if err != nil {
		return err
	}

	switch final.State {
	case game.StateWon:
		fmt.Fprintf(out, "%s won game %d\n", final.Winner, final.GameCounter)
	case game.StateResigned:
		fmt.Fprintf(out, "%s resigned game %d\n", final.Resigned, final.GameCounter)
	case game.StateDrawn:
		fmt.Fprintf(out, "Game %d ended in a draw\n", final.GameCounter)
	}
	return nil
}

func printFrame(out io.Writer, s game.Snapshot) error {
	if s.Event == nil {
		_, err := fmt.Fprintf(out, "Game %d, board %dx%d\n", s.GameCounter, s.Length, s.Length)
		return err
	}
	if s.Event.Outcome != replay.OutcomePlaying {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d: %s played %s\n", s.TurnCounter, s.Event.PlayerName, *s.Event.Word)
	for r := range s.Length {
		b.WriteString(s.Row(r))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func runPaths(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("paths", flag.ContinueOnError)
	fs.SetOutput(errOut)
	length := fs.Int("length", 0, "board length")
	row := fs.Int("row", 0, "start row")
	col := fs.Int("col", 0, "start column")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths, err := game.GeneratePaths(*length, game.Coord{Row: *row, Col: *col})
	if err != nil {
		return err
	}
	for i, p := range paths {
		cells := make([]string, len(p))
		for j, c := range p {
			cells[j] = c.String()
		}
		fmt.Fprintf(out, "%d: %s\n", i+1, strings.Join(cells, " "))
	}
	return nil
}
