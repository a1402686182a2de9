package fileio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/compiler"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

const source = `
int x;
process p { x = x + 1; }
main { }
`

func TestSaveAndLoadSource(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.fileio")
	defer teardown()
	//
	path := filepath.Join(t.TempDir(), "inc.nsb")
	if err := Save(path, source); err != nil {
		t.Fatal(err)
	}
	res, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsProgram() || res.Source != source {
		t.Errorf("expected source text to be loaded unchanged")
	}
}

func TestSaveAndLoadProgram(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.fileio")
	defer teardown()
	//
	compiled, err := compiler.Compile(source)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "inc.nsbx")
	if err := SaveProgram(path, compiled.Program); err != nil {
		t.Fatal(err)
	}
	res, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsProgram() {
		t.Fatal("expected a compiled program to be loaded")
	}
	h1, _ := compiled.Program.Fingerprint()
	h2, _ := res.Program.Fingerprint()
	if h1 != h2 {
		t.Errorf("expected loaded program to equal saved one")
	}
}

func TestLoadErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.fileio")
	defer teardown()
	//
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.nsbx")
	if err := os.WriteFile(corrupt, []byte(`{"format":"something else"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.nsb"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		path string
		kind gobaci.ErrKind
	}{
		{"", gobaci.EmptyPath},
		{"   ", gobaci.EmptyPath},
		{filepath.Join(dir, "prog.txt"), gobaci.InvalidExtension},
		{filepath.Join(dir, "missing.nsb"), gobaci.FileNotFound},
		{filepath.Join(dir, "nodir", "missing.nsb"), gobaci.DirectoryNotFound},
		{filepath.Join(dir, "dir.nsb"), gobaci.NotARegularFile},
		{corrupt, gobaci.CorruptProgram},
	} {
		_, err := Load(c.path)
		var lerr *gobaci.LoadError
		if !errors.As(err, &lerr) {
			t.Errorf("%q: expected load error, have %v", c.path, err)
			continue
		}
		if lerr.Kind() != c.kind || lerr.Severity() != gobaci.Error {
			t.Errorf("%q: expected %s, have %s", c.path, c.kind, lerr.Kind())
		}
	}
}

func TestLoadRejectsOversizedFrames(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.fileio")
	defer teardown()
	//
	path := filepath.Join(t.TempDir(), "huge.nsbx")
	huge := program.New(program.Image{
		Code: []program.Instruction{
			{Op: program.Call, Addr: program.CodeAddr(1), Imm: 0, Len: 1 << 30},
			{Op: program.Halt},
		},
		Main: program.Entry{Name: "main", Monitor: -1},
	})
	if err := SaveProgram(path, huge); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var lerr *gobaci.LoadError
	if !errors.As(err, &lerr) || lerr.Kind() != gobaci.CorruptProgram {
		t.Errorf("expected oversized frame to be rejected as corrupt program, have %v", err)
	}
}

func TestSaveErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "baci.fileio")
	defer teardown()
	//
	dir := t.TempDir()
	for _, c := range []struct {
		path string
		kind gobaci.ErrKind
	}{
		{"", gobaci.EmptyPath},
		{filepath.Join(dir, "prog.nsbx"), gobaci.InvalidExtension},
		{filepath.Join(dir, "nodir", "prog.nsb"), gobaci.DirectoryNotFound},
		{dir + string(filepath.Separator) + "x\x00.nsb", gobaci.InvalidPath},
	} {
		err := Save(c.path, source)
		var serr *gobaci.SaveError
		if !errors.As(err, &serr) || serr.Kind() != c.kind {
			t.Errorf("%q: expected save error %s, have %v", c.path, c.kind, err)
		}
	}
}
