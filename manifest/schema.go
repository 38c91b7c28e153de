package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid marks a manifest that does not satisfy the schema.
var ErrInvalid = errors.New("invalid manifest")

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("manifest schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Manifest"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks m against the embedded CUE schema.
func Validate(m *Manifest) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(m.document()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}

// document renders m using the same field names as glint.toml.
func (m *Manifest) document() map[string]any {
	return map[string]any{
		"project": map[string]any{
			"name":    m.Project.Name,
			"version": m.Project.Version,
		},
		"source": map[string]any{
			"dirs": m.Source.Dirs,
			"ext":  m.Source.Ext,
		},
		"symbols": map[string]any{
			"global-capacity": m.Symbols.GlobalCapacity,
			"local-capacity":  m.Symbols.LocalCapacity,
			"grow":            m.Symbols.Grow,
		},
		"output": map[string]any{
			"image":    m.Output.Image,
			"database": m.Output.Database,
		},
		"log": map[string]any{
			"verbosity": m.Log.Verbosity,
			"file":      m.Log.File,
		},
	}
}
