package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/word-battle/internal/replay"
)

func literal(gameNumber, length int) string {
	return fmt.Sprintf(`[{'game_number': %d, 'board_length': %d, 'game_duration': 42.5}, `+
		`{'player_name': 'Ann', 'type': 'human', 'difficulty': None, 'event': 'PLAYING', 'word': 'AB', 'selected_path': [[0, 0], [0, 1]]}, `+
		`{'player_name': 'Computer', 'type': 'computer', 'difficulty': 'Easy', 'event': 'PLAYING', 'word': 'CD', 'selected_path': [[1, 0], [1, 1]]}, `+
		`{'player_name': 'Ann', 'type': 'human', 'difficulty': None, 'event': 'WON', 'word': None, 'selected_path': None}]`, gameNumber, length)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFilesIsolatesIndeterminateFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 10; i++ {
		if i == 4 {
			paths = append(paths, writeFile(t, dir, "broken.wbr", replay.EncodeText(literal(3, 0))))
		}
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("game%02d.wbr", i), replay.EncodeText(literal(i+1, 3+i))))
	}

	sum, err := Files(context.Background(), paths, Options{Limits: replay.DefaultLimits, Workers: 3})
	require.NoError(t, err)
	require.Len(t, sum.Reports, 11)
	assert.True(t, sum.Warning)

	for i, rep := range sum.Reports {
		assert.Equal(t, filepath.Base(paths[i]), rep.File)
	}

	broken := sum.Reports[4]
	assert.Equal(t, replay.StatusIndeterminate, broken.Status)
	assert.NotEmpty(t, broken.Error)
	assert.Equal(t, "broken.wbr | Board Size: Indeterminate | Number of Players: Indeterminate | Game Mode: Indeterminate | Game Duration: Indeterminate", broken.Line())

	valid := 0
	for _, rep := range sum.Reports {
		if rep.Valid() {
			valid++
		}
	}
	assert.Equal(t, 10, valid)
	assert.Len(t, sum.Records(), 10)
}

func TestDirReportsEveryFileInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wbr", replay.EncodeText(literal(1, 5)))
	writeFile(t, dir, "b.txt", replay.EncodeText(literal(2, 5)))
	writeFile(t, dir, "c.wbr", []byte("65\nnot a number\n"))
	writeFile(t, dir, "d.wbr", replay.EncodeText(literal(4, 7)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	sum, err := Dir(context.Background(), dir, Options{Limits: replay.DefaultLimits, Workers: 2})
	require.NoError(t, err)
	require.Len(t, sum.Reports, 4)

	assert.Equal(t, []string{"a.wbr", "b.txt", "c.wbr", "d.wbr"}, []string{
		sum.Reports[0].File, sum.Reports[1].File, sum.Reports[2].File, sum.Reports[3].File,
	})
	assert.True(t, sum.Reports[0].Valid())
	assert.False(t, sum.Reports[1].Valid())
	assert.False(t, sum.Reports[2].Valid())
	assert.True(t, sum.Reports[3].Valid())

	first := sum.Reports[0]
	assert.Equal(t, 2, first.Players)
	assert.Equal(t, replay.ModeHumanVsComputer, first.GameMode)
	assert.Equal(t, "a.wbr | Board Size: 5 | Number of Players: 2 | Game Mode: Human Vs Computer | Game Duration: 42.5", first.Line())

	matching := sum.Matching(7)
	require.Len(t, matching, 1)
	assert.Equal(t, "d.wbr", matching[0].File)
}

func TestDirMissing(t *testing.T) {
	_, err := Dir(context.Background(), filepath.Join(t.TempDir(), "absent"), Options{})
	assert.Error(t, err)
}

func TestFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Files(ctx, []string{"x.wbr"}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyRequiresPlayers(t *testing.T) {
	data := replay.EncodeText(`[{'game_number': 1, 'board_length': 4, 'game_duration': 1}]`)
	rep := Classify("empty.wbr", data, replay.DefaultLimits)
	assert.False(t, rep.Valid())
	assert.Equal(t, "no players", rep.Error)
}
