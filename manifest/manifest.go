// Package manifest handles glint.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in project directories.
const FileName = "glint.toml"

// Defaults applied after loading.
const (
	DefaultGlobalCapacity = 4096
	DefaultLocalCapacity  = 1024
	DefaultSourceExt      = ".gl"
)

// Manifest represents a glint.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Source  Source        `toml:"source"`
	Symbols SymbolsConfig `toml:"symbols"`
	Output  OutputConfig  `toml:"output"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the glint.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
	Ext  string   `toml:"ext"`
}

// SymbolsConfig sizes the global and per-function symbol tables.
type SymbolsConfig struct {
	GlobalCapacity int  `toml:"global-capacity"`
	LocalCapacity  int  `toml:"local-capacity"`
	Grow           bool `toml:"grow"`
}

// OutputConfig configures where resolved symbols are written.
type OutputConfig struct {
	Image    string `toml:"image"`
	Database string `toml:"database"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns a manifest with every default applied, rooted at dir.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

// Load parses a glint.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest TOML, applies defaults and validates the result.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	m.applyDefaults()
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a glint.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Source.Ext == "" {
		m.Source.Ext = DefaultSourceExt
	}
	if m.Symbols.GlobalCapacity == 0 {
		m.Symbols.GlobalCapacity = DefaultGlobalCapacity
	}
	if m.Symbols.LocalCapacity == 0 {
		m.Symbols.LocalCapacity = DefaultLocalCapacity
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// ImagePath returns the absolute symbol image path, or "" if unset.
func (m *Manifest) ImagePath() string { return m.resolve(m.Output.Image) }

// DatabasePath returns the absolute symbol database path, or "" if unset.
func (m *Manifest) DatabasePath() string { return m.resolve(m.Output.Database) }

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
