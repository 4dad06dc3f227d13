package compress

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestBasic_AllZeroBufferCollapsesToOneBlock(t *testing.T) {
	// [A:100, elastic:300, B:100], all constant zero, dS = 50
	raw := waveform.Raw{Samples: flat(500, 0)}

	lib, err := Basic(raw, 50)
	require.NoError(t, err)
	require.Len(t, lib.Blocks, 1)
	assert.Equal(t, 50, lib.Blocks[0].Len())
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, lib.SeqIDs)
	assert.Equal(t, raw.Samples, lib.Expand().Samples)
}

func TestBasic_TwoDistinctBlocks(t *testing.T) {
	raw := waveform.Raw{Samples: concat(flat(64, 0.1), flat(64, 0.2))}

	lib, err := Basic(raw, 64)
	require.NoError(t, err)
	assert.Len(t, lib.Blocks, 2)
	assert.Equal(t, []int{0, 1}, lib.SeqIDs)
}

func TestBasic_TrailingRemainderAfterMatchedWindow(t *testing.T) {
	// windows: X Y X + 3-point tail; the last full window matched block 0,
	// so the last window plus tail becomes a new trailing block.
	x, y := flat(4, 1), flat(4, 2)
	raw := waveform.Raw{Samples: concat(x, y, x, flat(3, 9))}

	lib, err := Basic(raw, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, lib.SeqIDs)
	require.Len(t, lib.Blocks, 3)
	assert.Equal(t, []int{4, 4, 7}, lib.Lengths())
	assert.Equal(t, concat(x, flat(3, 9)), lib.Blocks[2].Samples)
	assert.Equal(t, raw.Samples, lib.Expand().Samples)
}

func TestBasic_TrailingRemainderMergedIntoNewBlock(t *testing.T) {
	// windows: X Y + tail; the last window created block 1, which is
	// replaced by the last window plus tail instead of adding a short block.
	x, y := flat(4, 1), flat(4, 2)
	raw := waveform.Raw{Samples: concat(x, y, flat(2, 5))}

	lib, err := Basic(raw, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, lib.SeqIDs)
	assert.Equal(t, []int{4, 6}, lib.Lengths())
	assert.Equal(t, raw.Samples, lib.Expand().Samples)
}

func TestBasic_ShorterThanOneBlock(t *testing.T) {
	raw := waveform.Raw{Samples: flat(3, 1)}

	lib, err := Basic(raw, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, lib.SeqIDs)
	assert.Equal(t, []int{3}, lib.Lengths())
}

func TestBasic_MarkersMustMatchToo(t *testing.T) {
	samples := flat(8, 0)
	mkr := []uint8{0, 0, 0, 0, 1, 1, 0, 0}
	raw := waveform.Raw{Samples: samples, Markers: [][]uint8{mkr, {}}}

	lib, err := Basic(raw, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, lib.SeqIDs)

	back := lib.Expand()
	assert.Equal(t, mkr, back.Markers[0])
	assert.Empty(t, back.Markers[1])
}

func TestBasic_RejectsBadBlockSize(t *testing.T) {
	_, err := Basic(waveform.Raw{Samples: flat(8, 0)}, 0)
	assert.ErrorIs(t, err, waveform.ErrConfiguration)
}

// randomRaw draws blocks from a small alphabet so that repeats are common.
func randomRaw(rng *rand.Rand, blocks, dS, tail, markers int) waveform.Raw {
	alphabet := 3
	raw := waveform.Raw{Markers: make([][]uint8, markers)}
	for range blocks {
		v := float64(rng.IntN(alphabet))
		raw.Samples = append(raw.Samples, flat(dS, v)...)
		for m := range markers {
			bit := uint8(rng.IntN(2))
			for range dS {
				raw.Markers[m] = append(raw.Markers[m], bit)
			}
		}
	}
	for range tail {
		raw.Samples = append(raw.Samples, rng.Float64())
		for m := range markers {
			raw.Markers[m] = append(raw.Markers[m], uint8(rng.IntN(2)))
		}
	}
	return raw
}

func TestBasic_RoundTripAndMinimumBlockSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	dS := 16

	for trial := range 200 {
		raw := randomRaw(rng, 1+rng.IntN(20), dS, rng.IntN(dS), rng.IntN(3))

		lib, err := Basic(raw, dS)
		require.NoError(t, err)

		back := lib.Expand()
		require.Equal(t, raw.Samples, back.Samples, "trial %d", trial)
		for m := range raw.Markers {
			require.Equal(t, raw.Markers[m], back.Markers[m], "trial %d marker %d", trial, m)
		}
		for i, n := range lib.Lengths() {
			require.GreaterOrEqual(t, n, dS, "trial %d block %d", trial, i)
			require.Less(t, n, 2*dS, "trial %d block %d", trial, i)
		}
	}
}

func TestLinked_SharedPartition(t *testing.T) {
	x, y := flat(4, 1), flat(4, 2)
	raws := []waveform.Raw{
		{Samples: concat(x, x, x)},
		{Samples: concat(x, y, x)},
	}
	mem := waveform.Memory{MinSize: 4, Multiple: 4, AutoCompression: true}

	libs, err := Linked(raws, []waveform.Memory{mem, mem})
	require.NoError(t, err)
	require.Len(t, libs, 2)

	// channel 0 alone would need one block, but channel 1 forces two
	assert.Equal(t, []int{0, 1, 0}, libs[0].SeqIDs)
	assert.Equal(t, libs[0].SeqIDs, libs[1].SeqIDs)
	assert.Equal(t, libs[0].Lengths(), libs[1].Lengths())
	for ch := range raws {
		assert.Equal(t, raws[ch].Samples, libs[ch].Expand().Samples)
	}
}

func TestLinked_TrailingPolicyDecidedJointly(t *testing.T) {
	x, y := flat(4, 1), flat(4, 2)
	raws := []waveform.Raw{
		{Samples: concat(x, y, x, flat(2, 0))},
		{Samples: concat(y, x, y, flat(2, 3))},
	}
	mem := waveform.Memory{MinSize: 4, Multiple: 2, AutoCompression: true}

	libs, err := Linked(raws, []waveform.Memory{mem, mem})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, libs[0].SeqIDs)
	assert.Equal(t, []int{4, 4, 6}, libs[1].Lengths())
	for ch := range raws {
		assert.Equal(t, raws[ch].Samples, libs[ch].Expand().Samples)
	}
}

func TestLinked_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	dS := 8
	mem := waveform.Memory{MinSize: dS, Multiple: 1, AutoCompression: true}

	for trial := range 100 {
		blocks, tail := 1+rng.IntN(12), rng.IntN(dS)
		raws := []waveform.Raw{
			randomRaw(rng, blocks, dS, tail, 2),
			randomRaw(rng, blocks, dS, tail, 2),
			randomRaw(rng, blocks, dS, tail, 2),
		}

		libs, err := Linked(raws, []waveform.Memory{mem, mem, mem})
		require.NoError(t, err)
		for ch := range raws {
			back := libs[ch].Expand()
			require.Equal(t, raws[ch].Samples, back.Samples, "trial %d channel %d", trial, ch)
			require.Equal(t, raws[ch].Markers, back.Markers, "trial %d channel %d", trial, ch)
			require.Equal(t, libs[0].SeqIDs, libs[ch].SeqIDs)
		}
	}
}

func TestLinked_MismatchedMemoryIsConfigurationError(t *testing.T) {
	raws := []waveform.Raw{{Samples: flat(8, 0)}, {Samples: flat(8, 0)}}
	a := waveform.Memory{MinSize: 4, Multiple: 4, AutoCompression: true}
	b := waveform.Memory{MinSize: 4, Multiple: 2, AutoCompression: true}

	_, err := Linked(raws, []waveform.Memory{a, b})
	assert.ErrorIs(t, err, waveform.ErrConfiguration)
}

func TestChoose(t *testing.T) {
	mem := waveform.Memory{MinSize: 1024, Multiple: 32, AutoCompression: true}

	assert.Equal(t, waveform.CompressionBasic, Choose(waveform.CompressionBasic, mem, 4096))
	assert.Equal(t, waveform.CompressionNone, Choose(waveform.CompressionNone, mem, 4096))
	assert.Equal(t, waveform.CompressionNone, Choose(waveform.CompressionBasic, mem, 2047))

	mem.AutoCompression = false
	assert.Equal(t, waveform.CompressionNone, Choose(waveform.CompressionBasic, mem, 4096))
}

func TestBlockSize(t *testing.T) {
	dS, err := BlockSize(waveform.Memory{MinSize: 1024, Multiple: 32})
	require.NoError(t, err)
	assert.Equal(t, 1024, dS)

	_, err = BlockSize(waveform.Memory{MinSize: 1000, Multiple: 32})
	assert.ErrorIs(t, err, waveform.ErrConfiguration)
}

func TestLibraryEqual(t *testing.T) {
	raw := waveform.Raw{Samples: concat(flat(4, 1), flat(4, 2))}
	a, err := Basic(raw, 4)
	require.NoError(t, err)
	b, err := Basic(raw, 4)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Uncompressed(raw)))
}
