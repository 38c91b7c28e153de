// glint CLI - resolves identifiers in glint sources and writes symbol images
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/glint/compiler"
	"github.com/chazu/glint/image"
	"github.com/chazu/glint/manifest"
	"github.com/chazu/glint/server"
	"github.com/chazu/glint/symdb"
	"github.com/chazu/glint/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("glint.cmd")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	verbosity int
	dir       string
	imagePath string
	dbPath    string
	restore   string
	list      bool
	lsp       bool
	paths     []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("glint", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (0 = notices and above, higher is louder)")
	fs.StringVar(&o.dir, "C", ".", "Project directory (glint.toml is searched upward from here)")
	fs.StringVar(&o.imagePath, "o", "", "Write the symbol image to this path (overrides [output] image)")
	fs.StringVar(&o.dbPath, "db", "", "Store the symbol image in this SQLite database (overrides [output] database)")
	fs.StringVar(&o.restore, "restore", "", "Prime global slots from an existing symbol image")
	fs.BoolVar(&o.list, "list", true, "Print the resolution listing")
	fs.BoolVar(&o.lsp, "lsp", false, "Serve the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: glint [options] [paths...]\n\n")
		fmt.Fprintf(stderr, "Resolves identifiers in glint sources. Without paths, the source\n")
		fmt.Fprintf(stderr, "directories from glint.toml are used.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  glint                        # Resolve [source] dirs, print listing\n")
		fmt.Fprintf(stderr, "  glint -o out/syms.img a.gl   # Resolve a.gl, write an image\n")
		fmt.Fprintf(stderr, "  glint -db syms.db ./src/...  # Resolve recursively, store in SQLite\n")
		fmt.Fprintf(stderr, "  glint -lsp                   # Language server on stdio\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.paths = fs.Args()
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	m, err := manifest.FindAndLoad(o.dir)
	if err != nil {
		return err
	}
	if m == nil {
		if m, err = manifest.Default(o.dir); err != nil {
			return err
		}
	}
	configureLogging(o.verbosity, m)

	vmCfg := vm.Config{GlobalCapacity: m.Symbols.GlobalCapacity, GrowGlobals: m.Symbols.Grow}
	opts := compiler.Options{LocalCapacity: m.Symbols.LocalCapacity, GrowLocals: m.Symbols.Grow}

	if o.lsp {
		ws, err := server.NewWorkspace(vmCfg, opts)
		if err != nil {
			return err
		}
		return server.NewLSP(ws).Run()
	}

	v, err := vm.NewVM(vmCfg)
	if err != nil {
		return err
	}
	defer v.Close()

	if o.restore != "" {
		img, err := image.ReadFile(o.restore)
		if err != nil {
			return err
		}
		if _, err := img.Restore(v); err != nil {
			return err
		}
		log.Infof("restored %d globals from %s", len(img.Globals), o.restore)
	}

	files, err := collectFiles(o.paths, m)
	if err != nil {
		return err
	}
	r := compiler.NewResolver(v, opts)
	units := make([]*compiler.Unit, 0, len(files))
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		u, err := r.Resolve(displayPath(m.Dir, file), string(src))
		if err != nil {
			return err
		}
		units = append(units, u)
		if o.list {
			if err := u.Listing(stdout); err != nil {
				return err
			}
		}
		for _, ref := range u.Unresolved() {
			log.Warningf("%s:%s: undefined name %q", u.File, ref.Pos, ref.Name)
		}
	}
	log.Infof("resolved %d files: %d globals, %d constants, %d heap bytes",
		len(units), len(v.GlobalNames()), len(r.Constants()), v.Heap.BytesAllocated())

	imagePath := o.imagePath
	if imagePath == "" {
		imagePath = m.ImagePath()
	}
	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = m.DatabasePath()
	}
	if imagePath == "" && dbPath == "" {
		return nil
	}

	img := image.Build(r, units)
	if imagePath != "" {
		if err := image.WriteFile(imagePath, img); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote image %s to %s\n", img.ID, imagePath)
	}
	if dbPath != "" {
		if err := saveImage(dbPath, img, stdout); err != nil {
			return err
		}
	}
	return nil
}

func configureLogging(flagVerbosity int, m *manifest.Manifest) {
	verbosity := m.Log.Verbosity
	if flagVerbosity > verbosity {
		verbosity = flagVerbosity
	}
	var path *string
	if m.Log.File != "" {
		p := m.Log.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

func saveImage(path string, img *image.Image, stdout io.Writer) error {
	ctx := context.Background()
	db, err := symdb.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	id, saved, err := db.Save(ctx, img)
	if err != nil {
		return err
	}
	if saved {
		fmt.Fprintf(stdout, "stored image %s in %s\n", id, path)
	} else {
		fmt.Fprintf(stdout, "image unchanged (%s) in %s\n", id, path)
	}
	return nil
}

// collectFiles expands paths into source files with the manifest's
// extension. A trailing "/..." walks the directory recursively. Without
// paths, the manifest's source directories are walked; missing ones are
// skipped.
func collectFiles(paths []string, m *manifest.Manifest) ([]string, error) {
	ext := m.Source.Ext
	if len(paths) == 0 {
		var files []string
		for _, dir := range m.SourceDirPaths() {
			if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
				log.Debugf("source dir %s does not exist", dir)
				continue
			}
			found, err := walkDir(dir, ext)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		}
		return files, nil
	}

	var files []string
	for _, path := range paths {
		recursive := false
		if strings.HasSuffix(path, "/...") {
			recursive = true
			path = strings.TrimSuffix(path, "/...")
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", path, err)
		}
		switch {
		case info.IsDir() && recursive:
			found, err := walkDir(path, ext)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		case info.IsDir():
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", path, err)
			}
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
					files = append(files, filepath.Join(path, e.Name()))
				}
			}
		case strings.HasSuffix(path, ext):
			files = append(files, path)
		default:
			return nil, fmt.Errorf("%q is not a %s file", path, ext)
		}
	}
	return files, nil
}

func walkDir(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ext) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// displayPath shortens file relative to the project directory when it lies
// inside it.
func displayPath(dir, file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return rel
}
