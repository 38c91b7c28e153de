package image

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/glint/compiler"
	"github.com/chazu/glint/vm"
)

func buildTestImage(t *testing.T) *Image {
	t.Helper()
	v, err := vm.NewVM(vm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { v.Close() })
	r := compiler.NewResolver(v, compiler.Options{})
	u, err := r.Resolve("main.gl", `
var greeting = "hello";
fun greet(name) { var msg = greeting; print msg + name; }
`)
	if err != nil {
		t.Fatal(err)
	}
	return Build(r, []*compiler.Unit{u})
}

func TestBuild(t *testing.T) {
	img := buildTestImage(t)

	if img.ID == "" || img.Version != FormatVersion {
		t.Errorf("ID = %q Version = %d", img.ID, img.Version)
	}
	if len(img.Globals) != 2 || img.Globals[0] != (Global{Name: "greeting", Slot: 1}) {
		t.Errorf("Globals = %+v", img.Globals)
	}
	if len(img.Strings) != 1 || img.Strings[0] != "hello" {
		t.Errorf("Strings = %v", img.Strings)
	}
	var greet *Function
	for i := range img.Functions {
		if img.Functions[i].Name == "greet" {
			greet = &img.Functions[i]
		}
	}
	if greet == nil || greet.Params != 1 || len(greet.Locals) != 2 || greet.Locals[1] != "msg" ||
		greet.Path != "greet" || greet.Parent != compiler.ScriptName {
		t.Errorf("greet = %+v", greet)
	}
}

func TestImage_CBORRoundTrip(t *testing.T) {
	img := buildTestImage(t)
	data, err := Marshal(img)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != img.ID || len(got.Globals) != len(img.Globals) || len(got.Functions) != len(img.Functions) {
		t.Errorf("round trip mismatch: %+v vs %+v", got, img)
	}

	d1, _ := img.Digest()
	d2, _ := got.Digest()
	if d1 != d2 {
		t.Error("Digest changed across round trip")
	}
}

func TestDigestIgnoresID(t *testing.T) {
	a := buildTestImage(t)
	b := buildTestImage(t)
	if a.ID == b.ID {
		t.Fatal("two builds share an ID")
	}
	da, _ := a.Digest()
	db, _ := b.Digest()
	if da != db {
		t.Error("identical symbols produced different digests")
	}
}

func TestUnmarshalRejectsVersion1(t *testing.T) {
	data, err := Marshal(&Image{ID: "old", Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestUnmarshalVersion(t *testing.T) {
	data, err := Marshal(&Image{ID: "x", Version: FormatVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("error = %v, want ErrUnsupportedVersion", err)
	}
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage decoded without error")
	}
}

func TestRestore(t *testing.T) {
	img := buildTestImage(t)

	v, err := vm.NewVM(vm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	objs, err := img.Restore(v)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if slot, ok, _ := v.GlobalSlot("greet"); !ok || slot != 2 {
		t.Errorf("greet slot = %d, %v", slot, ok)
	}
	if len(objs) != 1 || vm.Render(objs[0]) != "hello" || v.Heap.Count() != 1 {
		t.Errorf("restored strings = %v, heap %d", objs, v.Heap.Count())
	}
}

func TestRestoreSlotMismatch(t *testing.T) {
	img := buildTestImage(t)

	v, err := vm.NewVM(vm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	v.DeclareGlobal("greet") // takes slot 1

	if _, err := img.Restore(v); !errors.Is(err, ErrSlotMismatch) {
		t.Errorf("error = %v, want ErrSlotMismatch", err)
	}
}

func TestWriteReadFile(t *testing.T) {
	img := buildTestImage(t)
	path := filepath.Join(t.TempDir(), "out", "symbols.cbor")
	if err := WriteFile(path, img); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.ID != img.ID {
		t.Errorf("ID = %q, want %q", got.ID, img.ID)
	}
}
