package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-config/internal/model"
)

func TestJournalReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(Entry{Type: TypeImport, LineID: "L1", Stats: &model.Statistics{Workstations: 2}}))
	require.NoError(t, j.Append(Entry{Type: TypeImport, LineID: "L2"}))
	require.NoError(t, j.Append(Entry{Type: TypeDelete, LineID: "L1"}))
	require.NoError(t, j.Close())

	// 损坏的行不影响重放
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{broken\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Stats.Workstations)
	assert.False(t, entries[0].At.IsZero())

	live, err := j.LiveLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"L2"}, live)

	require.NoError(t, j.Append(Entry{Type: TypeImport, LineID: "L1"}))
	live, err = j.LiveLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2"}, live)
}
