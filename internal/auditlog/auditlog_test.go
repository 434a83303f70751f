package auditlog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		ProjectID: "9b2f3c1e-0000-4000-8000-000000000001",
		Action:    ActionAuto,
		Details:   "matched 3 pairs",
		Actor:     "alice",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header+"\n"))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0])
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))

	e2 := testEntry()
	e2.Action = ActionManual
	e2.Details = "bank 300.00, ledger 300.00"
	require.NoError(t, Append(dir, e2))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionAuto, entries[0].Action)
	assert.Equal(t, ActionManual, entries[1].Action)
	assert.Equal(t, "bank 300.00, ledger 300.00", entries[1].Details)

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header))
}

func TestAppend_NothingToWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir))
	_, err := os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a"})
	assert.ErrorContains(t, err, "expected 5 fields")

	_, err = UnmarshalEntry([]string{"yesterday", "p", "a", "d", "u"})
	assert.ErrorContains(t, err, "parsing timestamp")
}

func TestMarshalEntry_UTC(t *testing.T) {
	e := testEntry()
	e.Timestamp = time.Date(2025, 1, 15, 12, 30, 0, 0, time.FixedZone("CET", 2*60*60))
	assert.Equal(t, "2025-01-15T10:30:00Z", MarshalEntry(e)[colTimestamp])
}

func TestForProject(t *testing.T) {
	a := testEntry()
	b := testEntry()
	b.ProjectID = "other"
	got := ForProject([]Entry{a, b, a}, a.ProjectID)
	assert.Len(t, got, 2)
}
