package config

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	viper "github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"

	grid "github.com/tapgrid/cli/internal/grid"
)

// DefaultConfigPath is where the CLI looks for its configuration
const DefaultConfigPath = ".tapgrid/config.yaml"

// Config represents the CLI configuration
type Config struct {
	Device   DeviceConfig   `yaml:"device" mapstructure:"device"`
	Grid     GridConfig     `yaml:"grid" mapstructure:"grid"`
	Vision   VisionConfig   `yaml:"vision" mapstructure:"vision"`
	Agent    AgentConfig    `yaml:"agent" mapstructure:"agent"`
	Activity ActivityConfig `yaml:"activity" mapstructure:"activity"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DeviceConfig selects and scopes the device provider
type DeviceConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "", "adb", "x11", "robot"
	Target   string `yaml:"target" mapstructure:"target"`     // adb serial or X display
}

// GridConfig describes the touch grid geometry and overlay appearance
type GridConfig struct {
	TouchSizeMM float64 `yaml:"touch_size_mm" mapstructure:"touch_size_mm"`
	PPI         float64 `yaml:"ppi" mapstructure:"ppi"`
	CellSizePx  int     `yaml:"cell_size_px" mapstructure:"cell_size_px"` // overrides touch size/PPI when set
	LineColor   string  `yaml:"line_color" mapstructure:"line_color"`
	LineWidth   int     `yaml:"line_width" mapstructure:"line_width"`
	WashColor   string  `yaml:"wash_color" mapstructure:"wash_color"`
	LabelColor  string  `yaml:"label_color" mapstructure:"label_color"`
	LabelSizePx int     `yaml:"label_size_px" mapstructure:"label_size_px"`
	LabelOffset int     `yaml:"label_offset" mapstructure:"label_offset"`
}

// VisionConfig contains gateway connection settings for the vision model
type VisionConfig struct {
	GatewayURL     string `yaml:"gateway_url" mapstructure:"gateway_url"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	Model          string `yaml:"model" mapstructure:"model"` // "provider/model"
	TimeoutSeconds int    `yaml:"timeout" mapstructure:"timeout"`
}

// RoleConfig configures one agent role
type RoleConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AgentConfig configures the automation loop
type AgentConfig struct {
	MaxSteps   int        `yaml:"max_steps" mapstructure:"max_steps"`
	Action     RoleConfig `yaml:"action" mapstructure:"action"`
	Validation RoleConfig `yaml:"validation" mapstructure:"validation"`
}

// ActivityConfig configures the activity log store
type ActivityConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Path          string `yaml:"path" mapstructure:"path"`
	ScreenshotDir string `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// LoggingConfig configures the debug log output
type LoggingConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns the configuration defaults: a 1080x2400 Android
// profile addressed with 7mm touch cells
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{},
		Grid: GridConfig{
			TouchSizeMM: 7,
			PPI:         405,
			LineColor:   "#FF000064",
			LineWidth:   1,
			WashColor:   "#FFFFFF3C",
			LabelColor:  "#0000FF96",
			LabelOffset: 5,
		},
		Vision: VisionConfig{
			GatewayURL:     "http://localhost:8080",
			Model:          "openai/gpt-4o",
			TimeoutSeconds: 120,
		},
		Agent: AgentConfig{
			MaxSteps:   25,
			Action:     RoleConfig{Model: "openai/gpt-4o", Temperature: 0.2},
			Validation: RoleConfig{Model: "openai/gpt-4o", Temperature: 0.1},
		},
		Activity: ActivityConfig{
			Enabled:       true,
			Path:          ".tapgrid/activity.db",
			ScreenshotDir: ".tapgrid/screenshots",
		},
		Logging: LoggingConfig{},
	}
}

// Load reads the configuration from the given path, falling back to
// defaults when the file does not exist. Environment variables prefixed
// with TAPGRID_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TAPGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Write persists the configuration as YAML with two-space indentation
func Write(cfg *Config, path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ScreenSpec builds the grid geometry for the given screen dimensions,
// preferring a configured pixel cell size over the physical derivation
func (g GridConfig) ScreenSpec(widthPx, heightPx int) (grid.ScreenSpec, error) {
	if g.CellSizePx > 0 {
		spec := grid.ScreenSpec{WidthPx: widthPx, HeightPx: heightPx, CellSizePx: g.CellSizePx}
		return spec, spec.Validate()
	}
	return grid.NewScreenSpec(widthPx, heightPx, g.TouchSizeMM, g.PPI)
}

// Style builds the overlay style from the configured colors
func (g GridConfig) Style() (grid.OverlayStyle, error) {
	style := grid.DefaultStyle()
	style.LineWidth = g.LineWidth
	style.LabelSizePx = g.LabelSizePx
	style.LabelOffset = g.LabelOffset

	for _, entry := range []struct {
		value string
		dst   *color.NRGBA
	}{
		{g.LineColor, &style.LineColor},
		{g.WashColor, &style.WashColor},
		{g.LabelColor, &style.LabelColor},
	} {
		if entry.value == "" {
			continue
		}
		c, err := ParseHexColor(entry.value)
		if err != nil {
			return grid.OverlayStyle{}, err
		}
		*entry.dst = c
	}

	return style, nil
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" into an NRGBA color
func ParseHexColor(s string) (color.NRGBA, error) {
	hexPart := strings.TrimPrefix(s, "#")
	if len(hexPart) != 6 && len(hexPart) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
	}

	value, err := strconv.ParseUint(hexPart, 16, 64)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	c := color.NRGBA{A: 255}
	if len(hexPart) == 8 {
		c.A = uint8(value & 0xFF)
		value >>= 8
	}
	c.B = uint8(value & 0xFF)
	c.G = uint8((value >> 8) & 0xFF)
	c.R = uint8((value >> 16) & 0xFF)
	return c, nil
}
