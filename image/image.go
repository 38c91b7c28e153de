// Package image serializes resolved symbols to a CBOR symbol image. An
// image captures the global slot assignments, the locals of every function
// and the string constant pool, so a fresh VM can be primed with the same
// slots without re-resolving the sources.
package image

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/glint/compiler"
	"github.com/chazu/glint/vm"
)

// FormatVersion is the image layout version written by Marshal.
const FormatVersion = 2

var (
	// ErrUnsupportedVersion is returned for images of another format
	// version. Version 1 images lack function paths and are not read.
	ErrUnsupportedVersion = errors.New("image: unsupported format version")

	// ErrSlotMismatch is returned by Restore when a global already holds a
	// different slot in the target VM.
	ErrSlotMismatch = errors.New("image: global slot mismatch")
)

// Image is a snapshot of resolved symbols.
type Image struct {
	ID        string     `cbor:"1,keyasint"`
	Version   int        `cbor:"2,keyasint"`
	Globals   []Global   `cbor:"3,keyasint"`
	Functions []Function `cbor:"4,keyasint,omitempty"`
	Strings   []string   `cbor:"5,keyasint,omitempty"`
}

// Global is one global name and its slot.
type Global struct {
	Name string `cbor:"1,keyasint"`
	Slot int    `cbor:"2,keyasint"`
}

// Function is the local layout of one function body.
type Function struct {
	File   string   `cbor:"1,keyasint"`
	Name   string   `cbor:"2,keyasint"`
	Parent string   `cbor:"3,keyasint,omitempty"`
	Params int      `cbor:"4,keyasint"`
	Locals []string `cbor:"5,keyasint,omitempty"`
	Path   string   `cbor:"6,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Build captures the resolver's VM globals and constant pool together with
// the functions of units.
func Build(r *compiler.Resolver, units []*compiler.Unit) *Image {
	v := r.VM()
	img := &Image{
		ID:      uuid.NewString(),
		Version: FormatVersion,
	}
	for i, name := range v.GlobalNames() {
		img.Globals = append(img.Globals, Global{Name: name, Slot: i + 1})
	}
	for _, u := range units {
		for _, fn := range u.Functions {
			img.Functions = append(img.Functions, Function{
				File:   u.File,
				Name:   fn.Name,
				Path:   fn.Path,
				Parent: fn.Parent,
				Params: fn.Params,
				Locals: fn.Locals,
			})
		}
	}
	for _, s := range r.Constants() {
		img.Strings = append(img.Strings, s.String())
	}
	return img
}

// Restore declares the image's globals in v in slot order and materializes
// its strings on v's heap. It returns the materialized strings by index.
func (img *Image) Restore(v *vm.VM) ([]*vm.StringObject, error) {
	for _, g := range img.Globals {
		slot, _, err := v.DeclareGlobal(g.Name)
		if err != nil {
			return nil, fmt.Errorf("image: restore %q: %w", g.Name, err)
		}
		if slot != g.Slot {
			return nil, fmt.Errorf("%w: %q is slot %d, image has %d", ErrSlotMismatch, g.Name, slot, g.Slot)
		}
	}
	objs := make([]*vm.StringObject, len(img.Strings))
	for i, s := range img.Strings {
		objs[i] = v.Heap.CopyGoString(s)
	}
	return objs, nil
}

// Digest hashes the image contents, ignoring its ID, so two images of the
// same symbols compare equal.
func (img *Image) Digest() ([32]byte, error) {
	c := *img
	c.ID = ""
	data, err := cborEncMode.Marshal(&c)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Marshal serializes an image to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an image from CBOR bytes.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, img.Version)
	}
	return &img, nil
}

// WriteFile writes img to path, creating parent directories as needed.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return fmt.Errorf("image: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads an image written by WriteFile.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return Unmarshal(data)
}
