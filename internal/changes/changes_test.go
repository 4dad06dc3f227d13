package changes

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/awgseq/internal/compress"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

func raw(samples ...float64) waveform.Raw {
	return waveform.Raw{Samples: samples}
}

func TestUnchanged_NilSnapshotIsChanged(t *testing.T) {
	assert.False(t, Unchanged(nil, raw(1, 2, 3)))
}

func TestUnchanged_SameBufferDifferentPartition(t *testing.T) {
	r := raw(1, 1, 2, 2, 1, 1)
	lib, err := compress.Basic(r, 2)
	require.NoError(t, err)
	snap := NewSnapshot(lib, nil)

	assert.True(t, Unchanged(snap, r))
	assert.True(t, Unchanged(NewSnapshot(compress.Uncompressed(r), nil), r))
}

func TestUnchanged_DetectsSampleAndMarkerEdits(t *testing.T) {
	r := waveform.Raw{Samples: []float64{0, 0.5, 0}, Markers: [][]uint8{{0, 1, 0}}}
	snap := NewSnapshot(compress.Uncompressed(r), nil)

	edited := waveform.Raw{Samples: []float64{0, 0.25, 0}, Markers: r.Markers}
	assert.False(t, Unchanged(snap, edited))

	remarked := waveform.Raw{Samples: r.Samples, Markers: [][]uint8{{1, 1, 0}}}
	assert.False(t, Unchanged(snap, remarked))

	longer := raw(0, 0.5, 0, 0)
	assert.False(t, Unchanged(snap, longer))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(raw(1, 2, 3))
	assert.Equal(t, a, Fingerprint(raw(1, 2, 3)))
	assert.NotEqual(t, a, Fingerprint(raw(1, 2)))
	assert.NotEqual(t, a, Fingerprint(waveform.Raw{Samples: []float64{1, 2, 3}, Markers: [][]uint8{{}}}))
	assert.Len(t, a.String(), 64)
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Load("CH1"))

	snap := NewSnapshot(compress.Uncompressed(raw(1)), nil)
	s.Commit("CH2", snap)
	s.Commit("CH1", snap)
	assert.Same(t, snap, s.Load("CH1"))
	assert.Equal(t, []string{"CH1", "CH2"}, s.Keys())

	s.Reset()
	assert.Nil(t, s.Load("CH1"))
	assert.Empty(t, s.Keys())
}

func TestStore_ConcurrentCommitAndLoad(t *testing.T) {
	s := NewStore()
	a := NewSnapshot(compress.Uncompressed(raw(1)), nil)
	b := NewSnapshot(compress.Uncompressed(raw(2)), nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				s.Commit("CH1", a)
			} else {
				s.Commit("CH1", b)
			}
		}()
		go func() {
			defer wg.Done()
			if got := s.Load("CH1"); got != nil {
				assert.True(t, got == a || got == b)
			}
		}()
	}
	wg.Wait()
}
