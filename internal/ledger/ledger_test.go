package ledger

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/es-reviewer/internal/ai"
	"github.com/spigell/es-reviewer/internal/evaluator"
	"github.com/spigell/es-reviewer/internal/fit"
)

func TestNewRejectsOtherExtensions(t *testing.T) {
	t.Parallel()

	_, err := New("reviews.csv")
	assert.Error(t, err)

	l, err := New(" out/Reviews.XLSX ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "Reviews.XLSX"), l.Path())
}

func TestUpsertAppendsAndReplaces(t *testing.T) {
	t.Parallel()

	l, err := New(filepath.Join(t.TempDir(), "nested", "ledger.xlsx"))
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	first := Entry{ID: "a", Time: at, User: "U1", Company: "KDDI", Decision: "hold", Quality: 70, Conservative: 66, Trust: "medium", Top3: []string{"KDDI", "ロート製薬"}, State: "completed"}
	second := Entry{ID: "b", Time: at, User: "U2", State: "timeout"}

	require.NoError(t, l.Upsert(first))
	require.NoError(t, l.Upsert(second))

	first.Decision = "pass"
	first.Conservative = 72
	require.NoError(t, l.Upsert(first))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, "timeout", entries[1].State)
	assert.Empty(t, entries[1].Top3)
}

func TestUpsertRequiresID(t *testing.T) {
	t.Parallel()

	l, err := New(filepath.Join(t.TempDir(), "ledger.xlsx"))
	require.NoError(t, err)
	assert.Error(t, l.Upsert(Entry{}))

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertConcurrent(t *testing.T) {
	t.Parallel()

	l, err := New(filepath.Join(t.TempDir(), "ledger.xlsx"))
	require.NoError(t, err)

	ids := []string{"r1", "r2", "r3", "r4", "r5"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Upsert(Entry{ID: id, Time: time.Now(), State: "completed"}))
		}()
	}
	wg.Wait()

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, len(ids))
}

func TestFromOutcome(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	out := &evaluator.Outcome{
		ID:      "id-1",
		Company: "パナソニック",
		Result:  ai.Result{OK: true, State: ai.StateCompleted},
		Report: &evaluator.Report{
			Base:     fit.Base{N: 10, Trust: fit.TrustHigh, Quality: 80, Conservative: 80},
			Top:      []fit.CompanyResult{{Label: "パナソニック"}, {Label: "KDDI"}},
			Decision: fit.DecisionPass,
		},
	}

	got := FromOutcome(out, "U1", at)
	assert.Equal(t, Entry{
		ID: "id-1", Time: at, User: "U1", Company: "パナソニック", Decision: "pass",
		Quality: 80, Conservative: 80, Trust: "high", Top3: []string{"パナソニック", "KDDI"}, State: "completed",
	}, got)

	failed := FromOutcome(&evaluator.Outcome{ID: "id-2", Result: ai.Result{State: ai.StateTimeout}}, "U2", at)
	assert.Equal(t, "timeout", failed.State)
	assert.Empty(t, failed.Decision)
}
