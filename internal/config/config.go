package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/audiolibrelab/awgseq/internal/segment"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

const (
	inherited       = "inherited"
	profileSpecific = "profile-specific"
)

var validate = validator.New()

type DefinitionsConfig struct {
	Devices  []DeviceDefinition  `mapstructure:"devices" yaml:"devices" validate:"dive"`
	Channels []ChannelDefinition `mapstructure:"channels" yaml:"channels" validate:"dive"`
}

// DeviceDefinition describes one AWG and the memory rules all of its
// channels share.
type DeviceDefinition struct {
	ID         string       `mapstructure:"id" yaml:"id" validate:"required"`
	Model      string       `mapstructure:"model" yaml:"model,omitempty"`
	SampleRate float64      `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gt=0"`
	Memory     MemoryConfig `mapstructure:"memory" yaml:"memory"`
}

type MemoryConfig struct {
	MinSize         int  `mapstructure:"min_size" yaml:"min_size" validate:"gte=1"`
	Multiple        int  `mapstructure:"multiple" yaml:"multiple" validate:"gte=1"`
	AutoCompression bool `mapstructure:"auto_compression" yaml:"auto_compression"`
	MaxTasks        int  `mapstructure:"max_tasks" yaml:"max_tasks,omitempty" validate:"gte=0"`
}

type ChannelDefinition struct {
	ID        string  `mapstructure:"id" yaml:"id" validate:"required"`
	Name      string  `mapstructure:"name" yaml:"name" validate:"required"`
	Device    string  `mapstructure:"device" yaml:"device" validate:"required"`
	Amplitude float64 `mapstructure:"amplitude" yaml:"amplitude" validate:"gte=0"` // peak-to-peak, 0 disables the check
	Offset    float64 `mapstructure:"offset" yaml:"offset"`
	Scale     float64 `mapstructure:"scale" yaml:"scale,omitempty"`
	Trigger   string  `mapstructure:"trigger" yaml:"trigger,omitempty"`
}

// ChannelReference pulls a channel definition into a waveform. Pointer
// fields override the definition when set.
type ChannelReference struct {
	Ref       string     `mapstructure:"ref" yaml:"ref" validate:"required"`
	Amplitude *float64   `mapstructure:"amplitude,omitempty" yaml:"amplitude,omitempty" validate:"omitempty,gte=0"`
	Offset    *float64   `mapstructure:"offset,omitempty" yaml:"offset,omitempty"`
	Scale     *float64   `mapstructure:"scale,omitempty" yaml:"scale,omitempty"`
	Trigger   *string    `mapstructure:"trigger,omitempty" yaml:"trigger,omitempty"`
	Markers   [][]string `mapstructure:"markers" yaml:"markers,omitempty"`
}

// SegmentConfig is one entry of a waveform's segment list. Duration is a
// number of seconds, a Go duration such as "100ns", or "elastic".
type SegmentConfig struct {
	Name         string `mapstructure:"name" yaml:"name" validate:"required"`
	Duration     string `mapstructure:"duration" yaml:"duration" validate:"required"`
	segment.Spec `mapstructure:",squash" yaml:",inline"`
}

type WaveformProfile struct {
	Name         string             `mapstructure:"name" yaml:"name" validate:"required"`
	SampleRate   float64            `mapstructure:"sample_rate" yaml:"sample_rate,omitempty" validate:"gte=0"`
	TotalTime    string             `mapstructure:"total_time" yaml:"total_time,omitempty"`
	GlobalFactor float64            `mapstructure:"global_factor" yaml:"global_factor,omitempty"`
	Compression  string             `mapstructure:"compression" yaml:"compression,omitempty"`
	LinkChannels bool               `mapstructure:"link_channels" yaml:"link_channels,omitempty"`
	Channels     []ChannelReference `mapstructure:"channels" yaml:"channels,omitempty" validate:"dive"`
	Segments     []SegmentConfig    `mapstructure:"segments" yaml:"segments,omitempty" validate:"dive"`
}

type HardwareConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend" validate:"omitempty,oneof=dryrun capture auto"`
	CaptureDirectory string `mapstructure:"capture_directory" yaml:"capture_directory,omitempty"`
}

type OutputConfig struct {
	PreviewDirectory string `mapstructure:"preview_directory" yaml:"preview_directory"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Hardware     *HardwareConfig           `mapstructure:"hardware,omitempty" yaml:"hardware,omitempty"`
	Output       *OutputConfig             `mapstructure:"output,omitempty" yaml:"output,omitempty"`
	Definitions  *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type ConfigProfile struct {
	Hardware  HardwareConfig    `mapstructure:"hardware" yaml:"hardware"`
	Waveforms []WaveformProfile `mapstructure:"waveforms" yaml:"waveforms" validate:"dive"`
}

// Config is a profile with every reference resolved and default-profile
// inheritance applied.
type Config struct {
	Profile   string             `yaml:"profile"`
	Hardware  HardwareConfig     `yaml:"hardware"`
	Output    OutputConfig       `yaml:"output"`
	Devices   []DeviceDefinition `yaml:"devices"`
	Waveforms []Waveform         `yaml:"waveforms"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `yaml:"-"`
}

type Waveform struct {
	Name         string          `yaml:"name"`
	SampleRate   float64         `yaml:"sample_rate,omitempty"`
	TotalTime    string          `yaml:"total_time,omitempty"`
	GlobalFactor float64         `yaml:"global_factor,omitempty"`
	Compression  string          `yaml:"compression,omitempty"`
	LinkChannels bool            `yaml:"link_channels,omitempty"`
	Channels     []Channel       `yaml:"channels"`
	Segments     []SegmentConfig `yaml:"segments"`
}

type Channel struct {
	Name       string       `yaml:"name"`
	Device     string       `yaml:"device"`
	SampleRate float64      `yaml:"sample_rate"`
	Memory     MemoryConfig `yaml:"memory"`
	Amplitude  float64      `yaml:"amplitude"`
	Offset     float64      `yaml:"offset"`
	Scale      float64      `yaml:"scale,omitempty"`
	Trigger    string       `yaml:"trigger,omitempty"`
	Markers    [][]string   `yaml:"markers,omitempty"`
}

type InheritanceInfo struct {
	Hardware struct {
		Backend          string // "inherited" or "profile-specific"
		CaptureDirectory string
	}
	Waveforms map[string]WaveformInheritance
}

// WaveformInheritance records, per field, whether a waveform value came from
// the default profile or from the selected one.
type WaveformInheritance struct {
	Origin      string // whole waveform: "inherited" or "profile-specific"
	TotalTime   string
	SampleRate  string
	Compression string
	Channels    string
	Segments    string
}

var defaultHardware = HardwareConfig{
	Backend:          "dryrun",
	CaptureDirectory: filepath.Join(os.Getenv("HOME"), ".local", "share", "awgseq", "images"),
}

var defaultOutput = OutputConfig{
	PreviewDirectory: filepath.Join(os.Getenv("HOME"), ".local", "share", "awgseq", "previews"),
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("%w: configuration profile '%s' not found", waveform.ErrLookup, configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	var base *Config
	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			base, err = convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
		}
	}
	selectedConfig = mergeConfigs(base, selectedConfig)
	selectedConfig.Profile = configName
	selectedConfig.Devices = rootConfig.Definitions.Devices

	// Global hardware and output settings fill whatever the profiles left empty
	globalHardware := defaultHardware
	if rootConfig.Hardware != nil {
		if rootConfig.Hardware.Backend != "" {
			globalHardware.Backend = rootConfig.Hardware.Backend
		}
		if rootConfig.Hardware.CaptureDirectory != "" {
			globalHardware.CaptureDirectory = rootConfig.Hardware.CaptureDirectory
		}
	}
	if selectedConfig.Hardware.Backend == "" {
		selectedConfig.Hardware.Backend = globalHardware.Backend
	}
	if selectedConfig.Hardware.CaptureDirectory == "" {
		selectedConfig.Hardware.CaptureDirectory = globalHardware.CaptureDirectory
	}
	selectedConfig.Output = defaultOutput
	if rootConfig.Output != nil && rootConfig.Output.PreviewDirectory != "" {
		selectedConfig.Output.PreviewDirectory = rootConfig.Output.PreviewDirectory
	}

	selectedConfig.Hardware.CaptureDirectory = expandPath(selectedConfig.Hardware.CaptureDirectory)
	selectedConfig.Output.PreviewDirectory = expandPath(selectedConfig.Output.PreviewDirectory)

	if err := validateWaveforms(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ProfileNames lists the profiles of a config file in sorted order.
func ProfileNames(configFile string) ([]string, string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, rootConfig.ActiveConfig, nil
}

// Waveform returns the resolved waveform with the given name.
func (c *Config) Waveform(name string) (*Waveform, error) {
	for i := range c.Waveforms {
		if c.Waveforms[i].Name == name {
			return &c.Waveforms[i], nil
		}
	}
	return nil, fmt.Errorf("%w: waveform '%s' not found in profile '%s'", waveform.ErrLookup, name, c.Profile)
}

// WaveformNames lists the waveforms of the profile in configuration order.
func (c *Config) WaveformNames() []string {
	names := make([]string, len(c.Waveforms))
	for i, w := range c.Waveforms {
		names[i] = w.Name
	}
	return names
}

// BuildWaveform turns a configured waveform into the engine's model,
// instantiating every segment source through the segment registry.
func (c *Config) BuildWaveform(name string) (*waveform.Waveform, error) {
	wf, err := c.Waveform(name)
	if err != nil {
		return nil, err
	}

	sampleRate, err := wf.sampleRate()
	if err != nil {
		return nil, err
	}
	totalTime, err := parseSeconds(wf.TotalTime)
	if err != nil {
		return nil, fmt.Errorf("waveform '%s': total_time: %w", wf.Name, err)
	}
	compression, err := waveform.ParseCompression(wf.Compression)
	if err != nil {
		return nil, fmt.Errorf("waveform '%s': %w", wf.Name, err)
	}

	out := &waveform.Waveform{
		Name:         wf.Name,
		SampleRate:   sampleRate,
		TotalTime:    totalTime,
		GlobalFactor: wf.GlobalFactor,
		Compression:  compression,
		LinkChannels: wf.LinkChannels,
	}

	for i, seg := range wf.Segments {
		duration, err := parseDuration(seg.Duration)
		if err != nil {
			return nil, fmt.Errorf("waveform '%s': segments[%d] '%s': %w", wf.Name, i, seg.Name, err)
		}
		src, err := segment.New(seg.Spec)
		if err != nil {
			return nil, fmt.Errorf("waveform '%s': segments[%d] '%s': %w", wf.Name, i, seg.Name, err)
		}
		out.Segments = append(out.Segments, waveform.Segment{Name: seg.Name, Duration: duration, Source: src})
	}

	for _, ch := range wf.Channels {
		markers := make([]waveform.Marker, len(ch.Markers))
		for m, names := range ch.Markers {
			markers[m] = waveform.Marker{Segments: slices.Clone(names)}
		}
		out.Channels = append(out.Channels, waveform.Channel{
			Name:   ch.Name,
			Device: ch.Device,
			Memory: waveform.Memory{
				MinSize:         ch.Memory.MinSize,
				Multiple:        ch.Memory.Multiple,
				AutoCompression: ch.Memory.AutoCompression,
				MaxTasks:        ch.Memory.MaxTasks,
			},
			Amplitude: ch.Amplitude,
			Offset:    ch.Offset,
			Scale:     ch.Scale,
			Trigger:   ch.Trigger,
			Markers:   markers,
		})
	}

	return out, nil
}

// sampleRate is the waveform's own rate, or the rate all of its channels'
// devices agree on.
func (w *Waveform) sampleRate() (float64, error) {
	if w.SampleRate > 0 {
		return w.SampleRate, nil
	}
	rate := 0.0
	for _, ch := range w.Channels {
		if rate != 0 && ch.SampleRate != rate {
			return 0, fmt.Errorf("%w: waveform '%s' mixes devices with sample rates %g and %g, set sample_rate explicitly",
				waveform.ErrConfiguration, w.Name, rate, ch.SampleRate)
		}
		rate = ch.SampleRate
	}
	if rate <= 0 {
		return 0, fmt.Errorf("%w: waveform '%s' has no sample rate", waveform.ErrConfiguration, w.Name)
	}
	return rate, nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving channel references
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{Hardware: profile.Hardware}

	for _, wp := range profile.Waveforms {
		wf := Waveform{
			Name:         wp.Name,
			SampleRate:   wp.SampleRate,
			TotalTime:    wp.TotalTime,
			GlobalFactor: wp.GlobalFactor,
			Compression:  wp.Compression,
			LinkChannels: wp.LinkChannels,
			Segments:     wp.Segments,
		}

		for i, chRef := range wp.Channels {
			channel, err := resolveChannel(chRef, definitions)
			if err != nil {
				return nil, fmt.Errorf("waveform '%s': channels[%d]: %w", wp.Name, i, err)
			}
			wf.Channels = append(wf.Channels, channel)
		}

		config.Waveforms = append(config.Waveforms, wf)
	}

	return config, nil
}

func resolveChannel(chRef ChannelReference, definitions *DefinitionsConfig) (Channel, error) {
	if chRef.Ref == "" {
		return Channel{}, fmt.Errorf("'ref' is required")
	}

	def := findChannel(definitions, chRef.Ref)
	if def == nil {
		return Channel{}, fmt.Errorf("reference '%s' not found in definitions", chRef.Ref)
	}
	dev := findDevice(definitions, def.Device)
	if dev == nil {
		return Channel{}, fmt.Errorf("channel '%s' references unknown device '%s'", def.ID, def.Device)
	}

	channel := Channel{
		Name:       def.Name,
		Device:     def.Device,
		SampleRate: dev.SampleRate,
		Memory:     dev.Memory,
		Amplitude:  def.Amplitude,
		Offset:     def.Offset,
		Scale:      def.Scale,
		Trigger:    def.Trigger,
		Markers:    chRef.Markers,
	}

	// Apply overrides
	if chRef.Amplitude != nil {
		channel.Amplitude = *chRef.Amplitude
	}
	if chRef.Offset != nil {
		channel.Offset = *chRef.Offset
	}
	if chRef.Scale != nil {
		channel.Scale = *chRef.Scale
	}
	if chRef.Trigger != nil {
		channel.Trigger = *chRef.Trigger
	}

	return channel, nil
}

// mergeConfigs implements the "Selection & Fallback" inheritance model:
// - Waveforms: every default waveform is available; a profile waveform with
//   the same name replaces it field by field, unset fields fall back
// - Hardware: profile value or fallback to default
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}

	result.Inheritance = &InheritanceInfo{
		Waveforms: make(map[string]WaveformInheritance),
	}

	if base != nil {
		result.Hardware = base.Hardware
		result.Inheritance.Hardware.Backend = inherited
		result.Inheritance.Hardware.CaptureDirectory = inherited

		for _, wf := range base.Waveforms {
			result.Waveforms = append(result.Waveforms, wf)
			result.Inheritance.Waveforms[wf.Name] = WaveformInheritance{
				Origin:      inherited,
				TotalTime:   inherited,
				SampleRate:  inherited,
				Compression: inherited,
				Channels:    inherited,
				Segments:    inherited,
			}
		}
	} else {
		result.Inheritance.Hardware.Backend = profileSpecific
		result.Inheritance.Hardware.CaptureDirectory = profileSpecific
	}

	if profile == nil {
		return result
	}

	if profile.Hardware.Backend != "" {
		result.Hardware.Backend = profile.Hardware.Backend
		result.Inheritance.Hardware.Backend = profileSpecific
	}
	if profile.Hardware.CaptureDirectory != "" {
		result.Hardware.CaptureDirectory = profile.Hardware.CaptureDirectory
		result.Inheritance.Hardware.CaptureDirectory = profileSpecific
	}

	for _, profileWaveform := range profile.Waveforms {
		resolved := profileWaveform
		info := WaveformInheritance{
			Origin:      profileSpecific,
			TotalTime:   profileSpecific,
			SampleRate:  profileSpecific,
			Compression: profileSpecific,
			Channels:    profileSpecific,
			Segments:    profileSpecific,
		}

		idx := slices.IndexFunc(result.Waveforms, func(w Waveform) bool { return w.Name == profileWaveform.Name })
		if idx >= 0 {
			baseWaveform := result.Waveforms[idx]
			if resolved.TotalTime == "" {
				resolved.TotalTime = baseWaveform.TotalTime
				info.TotalTime = inherited
			}
			if resolved.SampleRate == 0 {
				resolved.SampleRate = baseWaveform.SampleRate
				info.SampleRate = inherited
			}
			if resolved.GlobalFactor == 0 {
				resolved.GlobalFactor = baseWaveform.GlobalFactor
			}
			if resolved.Compression == "" {
				resolved.Compression = baseWaveform.Compression
				info.Compression = inherited
			}
			if len(resolved.Channels) == 0 {
				resolved.Channels = baseWaveform.Channels
				info.Channels = inherited
			}
			if len(resolved.Segments) == 0 {
				resolved.Segments = baseWaveform.Segments
				info.Segments = inherited
			}
			result.Waveforms[idx] = resolved
		} else {
			result.Waveforms = append(result.Waveforms, resolved)
		}

		result.Inheritance.Waveforms[resolved.Name] = info
	}

	return result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// parseDuration accepts "elastic", a plain number of seconds or a Go
// duration string.
func parseDuration(s string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(s), "elastic") {
		return waveform.Elastic, nil
	}
	d, err := parseSeconds(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", waveform.ErrConfiguration, s)
	}
	return d, nil
}

// parseSeconds parses a time in seconds. Empty means zero.
func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q, expected seconds or a duration like 100ns", waveform.ErrConfiguration, s)
	}
	return d.Seconds(), nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("AWGSEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("%w: invalid definitions: %w", waveform.ErrConfiguration, err)
	}

	if rootConfig.Hardware != nil {
		if err := validate.Struct(rootConfig.Hardware); err != nil {
			return nil, fmt.Errorf("%w: invalid hardware section: %w", waveform.ErrConfiguration, err)
		}
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			return nil, fmt.Errorf("%w: config '%s' is empty", waveform.ErrConfiguration, configName)
		}
		if err := validateProfile(configProfile, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("%w: invalid config '%s': %w", waveform.ErrConfiguration, configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return fmt.Errorf("definitions section is required")
	}
	if len(definitions.Devices) == 0 {
		return fmt.Errorf("definitions.devices cannot be empty")
	}
	if len(definitions.Channels) == 0 {
		return fmt.Errorf("definitions.channels cannot be empty")
	}
	if err := validate.Struct(definitions); err != nil {
		return err
	}

	seenDevices := make(map[string]bool)
	for i, dev := range definitions.Devices {
		if seenDevices[dev.ID] {
			return fmt.Errorf("definitions.devices[%d]: duplicate ID '%s'", i, dev.ID)
		}
		seenDevices[dev.ID] = true

		if dev.Memory.MinSize%dev.Memory.Multiple != 0 {
			return fmt.Errorf("definitions.devices[%d]: memory.min_size %d must be a multiple of memory.multiple %d",
				i, dev.Memory.MinSize, dev.Memory.Multiple)
		}
	}

	seenChannels := make(map[string]bool)
	seenKeys := make(map[string]bool)
	for i, def := range definitions.Channels {
		if seenChannels[def.ID] {
			return fmt.Errorf("definitions.channels[%d]: duplicate ID '%s'", i, def.ID)
		}
		seenChannels[def.ID] = true

		if !seenDevices[def.Device] {
			return fmt.Errorf("definitions.channels[%d]: references undefined device '%s'", i, def.Device)
		}

		key := def.Device + "/" + def.Name
		if seenKeys[key] {
			return fmt.Errorf("definitions.channels[%d]: channel '%s' defined twice on device '%s'", i, def.Name, def.Device)
		}
		seenKeys[key] = true
	}

	return nil
}

// validateProfile checks field ranges and references of one profile.
// Checks that need the default profile (markers naming inherited segments)
// run after merging, in validateWaveforms.
func validateProfile(profile *ConfigProfile, definitions *DefinitionsConfig) error {
	if err := validate.Struct(profile); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, wf := range profile.Waveforms {
		prefix := fmt.Sprintf("waveforms[%d] '%s'", i, wf.Name)
		if seen[wf.Name] {
			return fmt.Errorf("%s: duplicate waveform name", prefix)
		}
		seen[wf.Name] = true

		if _, err := waveform.ParseCompression(wf.Compression); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if _, err := parseSeconds(wf.TotalTime); err != nil {
			return fmt.Errorf("%s: total_time: %w", prefix, err)
		}

		for j, chRef := range wf.Channels {
			if findChannel(definitions, chRef.Ref) == nil {
				return fmt.Errorf("%s: channels[%d]: references undefined channel definition '%s'", prefix, j, chRef.Ref)
			}
		}

		for j, seg := range wf.Segments {
			if _, err := parseDuration(seg.Duration); err != nil {
				return fmt.Errorf("%s: segments[%d] '%s': %w", prefix, j, seg.Name, err)
			}
			if _, err := segment.New(seg.Spec); err != nil {
				return fmt.Errorf("%s: segments[%d] '%s': %w", prefix, j, seg.Name, err)
			}
		}
	}

	return nil
}

// validateWaveforms runs the checks that need the fully merged profile.
func validateWaveforms(config *Config) error {
	for _, wf := range config.Waveforms {
		if len(wf.Channels) == 0 {
			return fmt.Errorf("waveform '%s': at least one channel is required", wf.Name)
		}
		if len(wf.Segments) == 0 {
			return fmt.Errorf("waveform '%s': at least one segment is required", wf.Name)
		}

		names := make(map[string]bool)
		for _, seg := range wf.Segments {
			if names[seg.Name] {
				return fmt.Errorf("waveform '%s': duplicate segment name '%s'", wf.Name, seg.Name)
			}
			names[seg.Name] = true
		}

		for _, ch := range wf.Channels {
			for m, marker := range ch.Markers {
				for _, name := range marker {
					if !names[name] {
						return fmt.Errorf("%w: waveform '%s': channel '%s' marker %d references unknown segment '%s'",
							waveform.ErrLookup, wf.Name, ch.Name, m+1, name)
					}
				}
			}
		}

		if _, err := wf.sampleRate(); err != nil {
			return err
		}
	}
	return nil
}

func findChannel(definitions *DefinitionsConfig, id string) *ChannelDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Channels {
		if definitions.Channels[i].ID == id {
			return &definitions.Channels[i]
		}
	}
	return nil
}

func findDevice(definitions *DefinitionsConfig, id string) *DeviceDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Devices {
		if definitions.Devices[i].ID == id {
			return &definitions.Devices[i]
		}
	}
	return nil
}
