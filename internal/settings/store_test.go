// ABOUTME: Tests for the settings store lifecycle
// ABOUTME: Covers init from persisted data, update/replace/patch/reset, persistence and failures

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mlra/internal/store"
)

// recordingObserver captures observer calls for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	changes  []string
	failures []string
	errs     []error
}

func (r *recordingObserver) SettingsChanged(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, reason)
}

func (r *recordingObserver) PersistFailed(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
	r.errs = append(r.errs, err)
}

func (r *recordingObserver) failureOps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

func newTestStore(t *testing.T, p Persister) (*Store, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	s := New(t.Context(), p, WithObserver(obs))
	t.Cleanup(s.Close)
	return s, obs
}

func TestNew_NoSnapshotYieldsDefaults(t *testing.T) {
	s, obs := newTestStore(t, NewMemoryPersister(nil))

	assert.True(t, s.Get().Equal(Defaults()))
	assert.Empty(t, obs.failureOps(), "absent snapshot is not a failure")
	assert.Equal(t, []string{ReasonInit}, obs.changes)
}

func TestNew_CorruptSnapshotYieldsDefaults(t *testing.T) {
	s, obs := newTestStore(t, NewMemoryPersister([]byte(`{"experiment":`)))

	assert.True(t, s.Get().Equal(Defaults()))
	assert.Equal(t, []string{OpDecode}, obs.failureOps())
}

func TestNew_LoadErrorYieldsDefaults(t *testing.T) {
	p := NewMemoryPersister(nil)
	p.LoadErr = errors.New("disk on fire")

	s, obs := newTestStore(t, p)

	assert.True(t, s.Get().Equal(Defaults()))
	assert.Equal(t, []string{OpLoad}, obs.failureOps())
}

func TestNew_NilPersister(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Close()

	s.Update(func(cur Settings) Settings {
		cur.Execution.CPULimit = 8
		return cur
	})
	assert.Equal(t, 8, s.Get().Execution.CPULimit)
}

func TestNew_OverlaysPersistedCategories(t *testing.T) {
	seed := []byte(`{"execution":{"cpuLimit":16,"gpuLimit":0,"timeoutMinutes":30,"parallelRuns":4,"loggingLevel":"debug"}}`)
	s, _ := newTestStore(t, NewMemoryPersister(seed))

	got := s.Get()
	assert.Equal(t, ExecutionSettings{CPULimit: 16, GPULimit: 0, TimeoutMinutes: 30, ParallelRuns: 4, LoggingLevel: "debug"}, got.Execution)
	assert.Equal(t, Defaults().Experiment, got.Experiment)
	assert.Equal(t, Defaults().Advanced, got.Advanced)
}

func TestUpdate_RandomSeedScenario(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))
	require.Equal(t, 42, s.Get().Experiment.RandomSeed)

	s.Update(func(cur Settings) Settings {
		cur.Experiment.RandomSeed = 7
		return cur
	})

	got := s.Get()
	assert.Equal(t, 7, got.Experiment.RandomSeed)
	assert.Equal(t, "upload", got.Data.Source)
}

func TestUpdate_UpdaterThatRebuildsCategoryOverwritesIt(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	s.Update(func(cur Settings) Settings {
		cur.Reporting = ReportingSettings{Format: "pdf"}
		return cur
	})

	got := s.Get()
	assert.Equal(t, "pdf", got.Reporting.Format)
	assert.False(t, got.Reporting.IncludePlots)
	assert.Empty(t, got.Reporting.ArtifactDir)
	// Other categories survive.
	assert.Equal(t, Defaults().Notifications, got.Notifications)
}

func TestUpdate_ReceivesCopy(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	var leaked Settings
	s.Update(func(cur Settings) Settings {
		leaked = cur
		return cur
	})
	leaked.Experiment.Metrics[0] = "BLEU"

	assert.Equal(t, MetricAccuracy, s.Get().Experiment.Metrics[0])
}

func TestGet_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	snap := s.Get()
	snap.Experiment.Metrics[0] = "BLEU"
	snap.Data.Source = "synthetic"

	assert.True(t, s.Get().Equal(Defaults()))
}

func TestApply_MergeProperty(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		want  func(s *Settings)
	}{
		{
			name:  "reporting format only",
			patch: `{"reporting":{"format":"pdf"}}`,
			want:  func(s *Settings) { s.Reporting.Format = "pdf" },
		},
		{
			name:  "nested preprocessing flag",
			patch: `{"data":{"preprocessing":{"removeStopwords":true}}}`,
			want:  func(s *Settings) { s.Data.Preprocessing.RemoveStopwords = true },
		},
		{
			name:  "fields across categories",
			patch: `{"notifications":{"onErrors":false},"advanced":{"vectorStore":{"provider":"chroma"}}}`,
			want: func(s *Settings) {
				s.Notifications.OnErrors = false
				s.Advanced.VectorStore.Provider = "chroma"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, NewMemoryPersister(nil))
			prior := s.Get()

			require.NoError(t, s.Apply([]byte(tt.patch)))

			want := prior.Clone()
			tt.want(&want)
			if diff := cmp.Diff(want, s.Get()); diff != "" {
				t.Errorf("Apply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_InvalidPatchLeavesStateAndStorage(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, _ := newTestStore(t, p)

	err := s.Apply([]byte(`{"experiment":{"bogus":1}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)

	assert.True(t, s.Get().Equal(Defaults()))
	assert.Equal(t, 0, p.Saves())
}

func TestSet(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	require.NoError(t, s.Set("paper.hypothesis.nullAssumption", "one_tailed"))
	require.NoError(t, s.Set("execution.parallelRuns", "6"))

	got := s.Get()
	assert.Equal(t, "one_tailed", got.Paper.Hypothesis.NullAssumption)
	assert.Equal(t, 6, got.Execution.ParallelRuns)
	assert.Equal(t, 0.5, got.Paper.Hypothesis.Threshold)
}

func TestApplyValidated(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, _ := newTestStore(t, p)

	err := s.ApplyValidated([]byte(`{"experiment":{"numRuns":0}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "experiment.numRuns", verr.Fields[0].Path)
	assert.True(t, s.Get().Equal(Defaults()))
	assert.Equal(t, 0, p.Saves())

	require.ErrorIs(t, s.ApplyValidated([]byte(`[]`)), ErrInvalidPatch)

	require.NoError(t, s.SetValidated("reporting.format", "pdf"))
	assert.Equal(t, "pdf", s.Get().Reporting.Format)
	assert.Error(t, s.SetValidated("reporting.format", "docx"))
	assert.Equal(t, 1, p.Saves())
}

func TestReset(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, _ := newTestStore(t, p)

	s.Update(func(cur Settings) Settings {
		cur.Experiment.NumRuns = 10
		cur.Reporting.Format = "pdf"
		return cur
	})
	require.False(t, s.Get().Equal(s.Defaults()))

	s.Reset()
	once := s.Get()
	assert.True(t, once.Equal(s.Defaults()))

	s.Reset()
	assert.True(t, s.Get().Equal(once), "reset is idempotent")

	persisted, err := MergeOverDefaults(p.Bytes())
	require.NoError(t, err)
	assert.True(t, persisted.Equal(Defaults()))
}

func TestPersistAfterEveryMutation(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, _ := newTestStore(t, p)
	assert.Equal(t, 0, p.Saves(), "init does not write")

	s.Update(func(cur Settings) Settings { return cur })
	s.Replace(Defaults())
	require.NoError(t, s.Apply([]byte(`{"data":{"source":"synthetic"}}`)))
	s.Reset()

	assert.Equal(t, 4, p.Saves())
}

func TestRoundTrip_PersistThenReinit(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, _ := newTestStore(t, p)

	s.Update(func(cur Settings) Settings {
		cur.Experiment.RandomSeed = 1234
		cur.Experiment.Metrics = []string{MetricBLEU, MetricROCAUC}
		cur.Paper.ClaimSensitivity = 0.8
		cur.Advanced.CustomAgentPrompt = "Cite <sources> & be brief"
		cur.Notifications.OnCompletion = false
		return cur
	})
	want := s.Get()

	reopened, _ := newTestStore(t, NewMemoryPersister(p.Bytes()))
	if diff := cmp.Diff(want, reopened.Get()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_KVPersisterOverMockStore(t *testing.T) {
	kv := store.NewMockStore()

	s, _ := newTestStore(t, NewKVPersister(kv, ""))
	s.Update(func(cur Settings) Settings {
		cur.Execution.TimeoutMinutes = 15
		return cur
	})

	raw, err := kv.GetValue(t.Context(), StorageKey)
	require.NoError(t, err)

	var decoded Settings
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 15, decoded.Execution.TimeoutMinutes)

	reopened, _ := newTestStore(t, NewKVPersister(kv, StorageKey))
	assert.True(t, reopened.Get().Equal(s.Get()))
}

func TestSaveFailureIsSwallowedAndReported(t *testing.T) {
	p := NewMemoryPersister(nil)
	p.SaveErr = errors.New("quota exceeded")
	s, obs := newTestStore(t, p)

	assert.NotPanics(t, func() {
		s.Update(func(cur Settings) Settings {
			cur.Execution.GPULimit = 0
			return cur
		})
	})

	assert.Equal(t, 0, s.Get().Execution.GPULimit, "in-memory state stays authoritative")
	assert.Equal(t, []string{OpSave}, obs.failureOps())
	require.Len(t, obs.errs, 1)
	assert.EqualError(t, obs.errs[0], "quota exceeded")
}

func TestConcurrentUpdates(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(cur Settings) Settings {
				cur.Experiment.NumRuns++
				return cur
			})
			_ = s.Get()
		}()
	}
	wg.Wait()

	assert.Equal(t, Defaults().Experiment.NumRuns+50, s.Get().Experiment.NumRuns)
}
