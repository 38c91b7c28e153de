package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "demo"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
ext = ".lox"

[symbols]
global-capacity = 256
local-capacity = 64
grow = true

[output]
image = "build/symbols.cbor"
database = "/tmp/symbols.db"

[log]
verbosity = 2
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if len(m.Source.Dirs) != 2 || m.Source.Ext != ".lox" {
		t.Errorf("source = %+v", m.Source)
	}
	if m.Symbols.GlobalCapacity != 256 || m.Symbols.LocalCapacity != 64 || !m.Symbols.Grow {
		t.Errorf("symbols = %+v", m.Symbols)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if want := filepath.Join(m.Dir, "build", "symbols.cbor"); m.ImagePath() != want {
		t.Errorf("ImagePath() = %q, want %q", m.ImagePath(), want)
	}
	if m.DatabasePath() != "/tmp/symbols.db" {
		t.Errorf("DatabasePath() = %q", m.DatabasePath())
	}
	paths := m.SourceDirPaths()
	if len(paths) != 2 || paths[1] != filepath.Join(m.Dir, "lib") {
		t.Errorf("SourceDirPaths() = %v", paths)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[project]\nname = \"bare\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	if m.Source.Ext != DefaultSourceExt {
		t.Errorf("default ext = %q", m.Source.Ext)
	}
	if m.Symbols.GlobalCapacity != DefaultGlobalCapacity || m.Symbols.LocalCapacity != DefaultLocalCapacity {
		t.Errorf("default capacities = %+v", m.Symbols)
	}
	if m.ImagePath() != "" || m.DatabasePath() != "" {
		t.Errorf("outputs should be unset: %q %q", m.ImagePath(), m.DatabasePath())
	}
}

func TestDefault(t *testing.T) {
	m, err := Default(".")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want absolute", m.Dir)
	}
	if err := Validate(m); err != nil {
		t.Errorf("default manifest invalid: %v", err)
	}
}

func TestLoadManifestNotFound(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing glint.toml")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", "[symbols\n"},
		{"unknown key", "[symbols]\nbogus = 1\n"},
		{"negative capacity", "[symbols]\nglobal-capacity = -5\n"},
		{"bad ext", "[source]\next = \"gl\"\n"},
		{"verbosity range", "[log]\nverbosity = 9\n"},
		{"wrong type", "[symbols]\ngrow = \"yes\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.toml)); err == nil {
				t.Errorf("Parse(%q) succeeded", tt.toml)
			}
		})
	}
}

func TestValidateReportsInvalid(t *testing.T) {
	_, err := Parse([]byte("[symbols]\nlocal-capacity = -1\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[project]\nname = \"found\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src", "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "found" {
		t.Fatalf("FindAndLoad = %+v", m)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad found %+v in empty tree", m)
	}
}
