package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.BatchAccepted(50, 50)
	r.BatchAccepted(20, 70)
	r.FailedAttempt()
	r.FailedAttempt()
	r.RoundAbandoned()
	r.DuplicateFacts(3)
	r.DuplicateFacts(0)
	r.StorageError()
	r.ObserveGeneration(1500 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.batches))
	assert.Equal(t, 70.0, testutil.ToFloat64(r.records))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.abandoned))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storageErrors))
	assert.Equal(t, 70.0, testutil.ToFloat64(r.lastID))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.BatchAccepted(1, 1)
		r.FailedAttempt()
		r.RoundAbandoned()
		r.DuplicateFacts(1)
		r.StorageError()
		r.SetLastID(3)
		r.ObserveGeneration(time.Second)
	})
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "metrics.prom")))
	assert.Nil(t, r.Registry())
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.BatchAccepted(4, 4)

	path := filepath.Join(t.TempDir(), "nested", "metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "fightgen_records_accepted_total 4"))
	assert.True(t, strings.Contains(text, "fightgen_last_fight_id 4"))
	assert.True(t, strings.Contains(text, "# TYPE fightgen_generation_duration_seconds histogram"))
}
