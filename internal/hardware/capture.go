package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/audiolibrelab/awgseq/internal/compress"
	"github.com/audiolibrelab/awgseq/internal/sequence"
)

// ImageExt is the file extension of channel images.
const ImageExt = ".awg.zst"

// Image is everything a commit programs into one channel: segment table,
// block contents and task table. Capture writes one image per channel.
type Image struct {
	Channel string          `cbor:"1,keyasint" json:"channel"`
	Lengths []int           `cbor:"2,keyasint" json:"lengths"`
	Blocks  []ImageBlock    `cbor:"3,keyasint" json:"blocks"`
	Tasks   []sequence.Task `cbor:"4,keyasint" json:"tasks"`
}

type ImageBlock struct {
	Samples []float64 `cbor:"1,keyasint" json:"samples"`
	Markers [][]uint8 `cbor:"2,keyasint,omitempty" json:"markers,omitempty"`
}

// Expand concatenates the blocks in task order, one loop per task.
func (img *Image) Expand() []float64 {
	var out []float64
	for _, task := range img.Tasks {
		for range task.Loops {
			out = append(out, img.Blocks[task.Segment-1].Samples...)
		}
	}
	return out
}

// encMode produces Core Deterministic CBOR: the same image always encodes
// to the same bytes.
var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("hardware: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("hardware: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("hardware: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("hardware: zstd decoder initialization failed: " + err.Error())
	}
}

// Capture is a writer that stores channel images on disk instead of
// programming an instrument. An image file is replaced when the task table
// is written, so a failed commit leaves the previous image in place.
type Capture struct {
	dir string

	mu      sync.Mutex
	pending map[string]*Image
}

// NewCapture creates dir if needed and returns a capture writer for it.
func NewCapture(dir string) (*Capture, error) {
	if dir == "" {
		return nil, fmt.Errorf("capture backend needs a capture_directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating capture directory %s: %w", dir, err)
	}
	return &Capture{dir: dir, pending: make(map[string]*Image)}, nil
}

func (c *Capture) GetType() BackendType {
	return BackendTypeCapture
}

// Dir returns the directory images are written to.
func (c *Capture) Dir() string {
	return c.dir
}

func (c *Capture) AllocateSegments(ctx context.Context, channel string, lengths []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[channel] = &Image{
		Channel: channel,
		Lengths: slices.Clone(lengths),
		Blocks:  make([]ImageBlock, len(lengths)),
	}
	return nil
}

func (c *Capture) WriteBlock(ctx context.Context, channel string, index int, block compress.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	img := c.pending[channel]
	var lengths []int
	if img != nil {
		lengths = img.Lengths
	}
	if err := checkBlock(lengths, channel, index, block); err != nil {
		return err
	}
	img.Blocks[index] = ImageBlock{Samples: block.Samples, Markers: block.Markers}
	return nil
}

func (c *Capture) WriteTaskTable(ctx context.Context, channel string, tasks []sequence.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	img := c.pending[channel]
	delete(c.pending, channel)
	c.mu.Unlock()

	if img == nil {
		return fmt.Errorf("channel %s: task table written before allocation", channel)
	}
	img.Tasks = slices.Clone(tasks)

	path := c.ImagePath(channel)
	if err := writeImage(path, img); err != nil {
		return fmt.Errorf("channel %s: %w", channel, err)
	}
	slog.Info("Captured channel image", "channel", channel, "path", path,
		"segments", len(img.Lengths), "tasks", len(img.Tasks))
	return nil
}

// ImagePath returns the file a channel's image is written to.
func (c *Capture) ImagePath(channel string) string {
	return filepath.Join(c.dir, imageName(channel))
}

func imageName(channel string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return r.Replace(channel) + ImageExt
}

func writeImage(path string, img *Image) error {
	data, err := encMode.Marshal(img)
	if err != nil {
		return fmt.Errorf("error encoding image: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(data, nil)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".image-*")
	if err != nil {
		return fmt.Errorf("error creating image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing image file %s: %w", path, err)
	}
	return nil
}

// ReadImage decodes an image file written by Capture.
func ReadImage(path string) (*Image, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading image %s: %w", path, err)
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s: %w", path, err)
	}
	var img Image
	if err := decMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("error decoding image %s: %w", path, err)
	}
	if err := img.validate(); err != nil {
		return nil, fmt.Errorf("invalid image %s: %w", path, err)
	}
	return &img, nil
}

// validate checks that every task points at a block and every block fills
// its allocated segment, so Expand is safe on decoded images.
func (img *Image) validate() error {
	if len(img.Blocks) != len(img.Lengths) {
		return fmt.Errorf("%d blocks for %d allocated segments", len(img.Blocks), len(img.Lengths))
	}
	for i, block := range img.Blocks {
		if len(block.Samples) != img.Lengths[i] {
			return fmt.Errorf("block %d has %d points, segment holds %d", i, len(block.Samples), img.Lengths[i])
		}
	}
	for i, task := range img.Tasks {
		if task.Segment < 1 || task.Segment > len(img.Blocks) {
			return fmt.Errorf("task %d references segment %d of %d", i+1, task.Segment, len(img.Blocks))
		}
	}
	return nil
}
