// Package scan decodes every replay file of a directory and reports what each holds.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/word-battle/internal/replay"
)

// DefaultSuffix identifies replay files
const DefaultSuffix = ".wbr"

const indeterminate = "Indeterminate"

// Options controls a scan
type Options struct {
	Suffix  string
	Limits  replay.Limits
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Suffix == "" {
		o.Suffix = DefaultSuffix
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// Report describes one scanned file
type Report struct {
	File        string         `json:"file"`
	Status      replay.Status  `json:"status"`
	BoardLength int            `json:"boardLength,omitempty"`
	Players     int            `json:"players,omitempty"`
	GameMode    string         `json:"gameMode,omitempty"`
	Duration    float64        `json:"duration,omitempty"`
	Error       string         `json:"error,omitempty"`
	Record      *replay.Record `json:"-"`
}

// Valid reports whether the file decoded to a usable record
func (r Report) Valid() bool {
	return r.Status == replay.StatusValid
}

// Line renders the report as a single summary line
func (r Report) Line() string {
	if !r.Valid() {
		return fmt.Sprintf("%s | Board Size: %s | Number of Players: %s | Game Mode: %s | Game Duration: %s",
			r.File, indeterminate, indeterminate, indeterminate, indeterminate)
	}
	return fmt.Sprintf("%s | Board Size: %d | Number of Players: %d | Game Mode: %s | Game Duration: %s",
		r.File, r.BoardLength, r.Players, r.GameMode, strconv.FormatFloat(r.Duration, 'f', -1, 64))
}

// Summary holds the reports of one scan in input order
type Summary struct {
	Reports []Report `json:"reports"`
	// Warning is set when any file was indeterminate
	Warning bool `json:"warning"`
}

// Matching returns the valid reports for boards of the given length
func (s Summary) Matching(length int) []Report {
	var out []Report
	for _, r := range s.Reports {
		if r.Valid() && r.BoardLength == length {
			out = append(out, r)
		}
	}
	return out
}

// Records returns the decoded records of every valid file
func (s Summary) Records() []*replay.Record {
	var out []*replay.Record
	for _, r := range s.Reports {
		if r.Valid() {
			out = append(out, r.Record)
		}
	}
	return out
}

// ListReplayFiles returns the regular files of dir in directory order
func ListReplayFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// Dir scans every file of dir
func Dir(ctx context.Context, dir string, opts Options) (Summary, error) {
	paths, err := ListReplayFiles(dir)
	if err != nil {
		return Summary{}, err
	}
	return Files(ctx, paths, opts)
}

// Files decodes paths in parallel. A bad file only marks its own report
// indeterminate; the only error returned is the context's.
func Files(ctx context.Context, paths []string, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	reports := make([]Report, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = File(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Reports: reports}
	for _, r := range reports {
		if !r.Valid() {
			sum.Warning = true
			log.Warn().Str("component", "scan").Str("file", r.File).Str("reason", r.Error).Msg("indeterminate replay")
		}
	}
	return sum, nil
}

// File reads and classifies a single file
func File(path string, opts Options) Report {
	opts = opts.withDefaults()
	rep := Report{File: filepath.Base(path), Status: replay.StatusIndeterminate}

	if !strings.HasSuffix(path, opts.Suffix) {
		rep.Error = fmt.Sprintf("not a %s file", opts.Suffix)
		return rep
	}
	data, err := os.ReadFile(path)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	return Classify(rep.File, data, opts.Limits)
}

// Classify builds the report for already-read replay bytes
func Classify(name string, data []byte, limits replay.Limits) Report {
	rep := Report{File: name, Status: replay.StatusIndeterminate}

	rec, err := replay.Parse(data, limits)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	if rec.Indeterminate() {
		rep.Error = rec.Reason
		return rep
	}
	players := rec.Players()
	if len(players) == 0 {
		rep.Error = "no players"
		return rep
	}

	rep.Status = replay.StatusValid
	rep.BoardLength = rec.BoardLength
	rep.Players = len(players)
	rep.GameMode = rec.GameMode()
	rep.Duration = rec.GameDuration
	rep.Record = rec
	return rep
}
