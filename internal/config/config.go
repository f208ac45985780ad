package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const Version = "1.1"

// Storage mode selector values for Settings.StorageMode.
const (
	ModeFile       = "file"
	ModeRelational = "relational"
)

// WindowGeometry is the persisted position and size of the widget.
type WindowGeometry struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// Settings is the flat map of recognized settings. Presentation keys are
// carried verbatim for the UI layer; the storage core only consults
// StorageMode.
type Settings struct {
	Window WindowGeometry `yaml:"window" json:"window"`

	Opacity   float64 `yaml:"opacity" json:"opacity"`
	BgOpacity int     `yaml:"bg_opacity" json:"bg_opacity"`
	BgColor   string  `yaml:"bg_color" json:"bg_color"`
	FontColor string  `yaml:"font_color" json:"font_color"`
	FontSize  int     `yaml:"font_size" json:"font_size"`

	// Grid layout: number of week rows and cell geometry.
	Weeks      int `yaml:"weeks" json:"weeks"`
	CellWidth  int `yaml:"cell_width" json:"cell_width"`
	CellHeight int `yaml:"cell_height" json:"cell_height"`
	RowGap     int `yaml:"row_gap" json:"row_gap"`
	ColGap     int `yaml:"col_gap" json:"col_gap"`

	// Locked disables editing, move and resize.
	Locked bool `yaml:"locked" json:"locked"`

	StorageMode string `yaml:"storage_mode" json:"storage_mode"`

	FontColorHigh   string `yaml:"font_color_high" json:"font_color_high"`
	FontColorMedium string `yaml:"font_color_medium" json:"font_color_medium"`
	FontColorLow    string `yaml:"font_color_low" json:"font_color_low"`

	ShowTimeInCalendar bool `yaml:"show_time_in_calendar" json:"show_time_in_calendar"`
	ShowTimeInList     bool `yaml:"show_time_in_list" json:"show_time_in_list"`
}

// Config is the persisted configuration document: version tag, settings
// map and the global free-text memo. Events are not stored here.
type Config struct {
	Version    string   `yaml:"version" json:"version"`
	Settings   Settings `yaml:"settings" json:"settings"`
	GlobalMemo string   `yaml:"global_memo" json:"global_memo"`
}

// DefaultConfig returns the in-memory default document.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Settings: Settings{
			Window:             WindowGeometry{X: 100, Y: 100, W: 900, H: 680},
			Opacity:            0.95,
			BgOpacity:          100,
			BgColor:            "#ffffff",
			FontColor:          "#000000",
			FontSize:           12,
			Weeks:              4,
			CellWidth:          140,
			CellHeight:         110,
			RowGap:             6,
			ColGap:             6,
			Locked:             false,
			StorageMode:        ModeFile,
			FontColorHigh:      "#d03050",
			FontColorMedium:    "#000000",
			FontColorLow:       "#808080",
			ShowTimeInCalendar: true,
			ShowTimeInList:     true,
		},
		GlobalMemo: "",
	}
}

// Normalize fills missing/invalid values with defaults so documents from
// older versions still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Version == "" {
		c.Version = Version
	}
	s := &c.Settings
	if s.Window.W <= 0 || s.Window.H <= 0 {
		s.Window = def.Settings.Window
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		s.Opacity = def.Settings.Opacity
	}
	if s.BgOpacity <= 0 || s.BgOpacity > 100 {
		s.BgOpacity = def.Settings.BgOpacity
	}
	if s.BgColor == "" {
		s.BgColor = def.Settings.BgColor
	}
	if s.FontColor == "" {
		s.FontColor = def.Settings.FontColor
	}
	if s.FontSize <= 0 {
		s.FontSize = def.Settings.FontSize
	}
	if s.Weeks <= 0 {
		s.Weeks = def.Settings.Weeks
	}
	if s.CellWidth <= 0 {
		s.CellWidth = def.Settings.CellWidth
	}
	if s.CellHeight <= 0 {
		s.CellHeight = def.Settings.CellHeight
	}
	if s.RowGap < 0 {
		s.RowGap = def.Settings.RowGap
	}
	if s.ColGap < 0 {
		s.ColGap = def.Settings.ColGap
	}
	switch s.StorageMode {
	case ModeFile, ModeRelational:
	default:
		s.StorageMode = ModeFile
	}
	if s.FontColorHigh == "" {
		s.FontColorHigh = def.Settings.FontColorHigh
	}
	if s.FontColorMedium == "" {
		s.FontColorMedium = def.Settings.FontColorMedium
	}
	if s.FontColorLow == "" {
		s.FontColorLow = def.Settings.FontColorLow
	}
}

// Load reads the YAML document at path.
//
//   - Missing file: create parent dir, write defaults with 0600 perms,
//     return the defaults.
//   - Unreadable or unparseable file: return defaults without error so
//     the application always starts; the caller has already lost the
//     old document either way.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return DefaultConfig(), err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".deskcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
