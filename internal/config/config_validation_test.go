package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

const validDefinitions = `
definitions:
  devices:
    - id: awg1
      sample_rate: 1e9
      memory:
        min_size: 64
        multiple: 32
        auto_compression: true
  channels:
    - id: ch1
      name: CH1
      device: awg1
`

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	configFile := createTempConfig(t, validDefinitions+`
active_config: test
configs:
  test:
    waveforms:
      - name: pulse
        total_time: 1e-6
        channels:
          - ref: ch1
        segments:
          - name: on
            duration: elastic
            type: constant
            value: 0.1
`)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	require.NoError(t, err)
	require.NotNil(t, rootConfig.Definitions)
	assert.Len(t, rootConfig.Definitions.Devices, 1)
	assert.Equal(t, 32, rootConfig.Definitions.Devices[0].Memory.Multiple)

	profile := rootConfig.Configs["test"]
	require.NotNil(t, profile)
	require.Len(t, profile.Waveforms, 1)
	seg := profile.Waveforms[0].Segments[0]
	assert.Equal(t, "elastic", seg.Duration)
	assert.Equal(t, "constant", seg.Type)
	assert.Equal(t, 0.1, seg.Value)
}

func TestValidateConfigurationFormat_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		message string
	}{
		{
			name: "missing definitions",
			content: `
configs:
  default:
    waveforms: []
`,
			message: "definitions section is required",
		},
		{
			name: "device without sample rate",
			content: `
definitions:
  devices:
    - id: awg1
      memory: {min_size: 64, multiple: 32}
  channels:
    - {id: ch1, name: CH1, device: awg1}
configs: {}
`,
			message: "SampleRate",
		},
		{
			name: "min size not a multiple",
			content: `
definitions:
  devices:
    - id: awg1
      sample_rate: 1e9
      memory: {min_size: 100, multiple: 32}
  channels:
    - {id: ch1, name: CH1, device: awg1}
configs: {}
`,
			message: "must be a multiple of",
		},
		{
			name: "channel on unknown device",
			content: `
definitions:
  devices:
    - id: awg1
      sample_rate: 1e9
      memory: {min_size: 64, multiple: 32}
  channels:
    - {id: ch1, name: CH1, device: awg2}
configs: {}
`,
			message: "undefined device 'awg2'",
		},
		{
			name: "duplicate channel id",
			content: `
definitions:
  devices:
    - id: awg1
      sample_rate: 1e9
      memory: {min_size: 64, multiple: 32}
  channels:
    - {id: ch1, name: CH1, device: awg1}
    - {id: ch1, name: CH2, device: awg1}
configs: {}
`,
			message: "duplicate ID 'ch1'",
		},
		{
			name: "undefined channel reference",
			content: validDefinitions + `
configs:
  default:
    waveforms:
      - name: w
        channels:
          - ref: ch9
        segments:
          - {name: a, duration: 1e-6, type: zero}
`,
			message: "undefined channel definition 'ch9'",
		},
		{
			name: "unknown segment type",
			content: validDefinitions + `
configs:
  default:
    waveforms:
      - name: w
        channels:
          - ref: ch1
        segments:
          - {name: a, duration: 1e-6, type: gaussian}
`,
			message: "unknown segment type",
		},
		{
			name: "unknown compression",
			content: validDefinitions + `
configs:
  default:
    waveforms:
      - name: w
        compression: lzma
        channels:
          - ref: ch1
        segments:
          - {name: a, duration: 1e-6, type: zero}
`,
			message: "compression",
		},
		{
			name: "bad duration",
			content: validDefinitions + `
configs:
  default:
    waveforms:
      - name: w
        channels:
          - ref: ch1
        segments:
          - {name: a, duration: whenever, type: zero}
`,
			message: "invalid time",
		},
		{
			name: "bad backend",
			content: validDefinitions + `
hardware:
  backend: scpi
configs: {}
`,
			message: "hardware",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configFile := createTempConfig(t, tc.content)

			_, err := ValidateConfigurationFormat(configFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
			assert.ErrorIs(t, err, waveform.ErrConfiguration)
		})
	}
}

func TestLoadWithProfile_MarkerReferencesUnknownSegment(t *testing.T) {
	configFile := createTempConfig(t, validDefinitions+`
configs:
  default:
    waveforms:
      - name: w
        total_time: 1e-6
        channels:
          - ref: ch1
            markers:
              - [gate]
        segments:
          - {name: a, duration: elastic, type: zero}
`)

	_, err := LoadWithProfile(configFile, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, waveform.ErrLookup)
}

func TestLoadWithProfile_WaveformNeedsSegments(t *testing.T) {
	configFile := createTempConfig(t, validDefinitions+`
configs:
  default:
    waveforms:
      - name: w
        channels:
          - ref: ch1
`)

	_, err := LoadWithProfile(configFile, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one segment")
}

func TestLoadWithProfile_NoConfigFile(t *testing.T) {
	_, err := LoadWithProfile("", "")
	assert.Error(t, err)
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "awgseq.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))
	return configFile
}
