/*
Package fileio is the file collaborator of the BACI toolchain. It loads
source files (extension ".nsb") and compiled programs (extension ".nsbx"),
and saves both.

All failures are reported as *gobaci.LoadError or *gobaci.SaveError, with a
Kind telling what went wrong. I/O is local and synchronous; there are no
retries.

----------------------------------------------------------------------

BSD License

Copyright (c) 2017-21, Norbert Pillmayer

All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions
are met:

1. Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.

2. Redistributions in binary form must reproduce the above copyright
notice, this list of conditions and the following disclaimer in the
documentation and/or other materials provided with the distribution.

3. Neither the name of this software or the names of its contributors
may be used to endorse or promote products derived from this software
without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE. */
package fileio

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/npillmayer/gobaci"
	"github.com/npillmayer/gobaci/program"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.fileio'.
func tracer() tracing.Trace {
	return tracing.Select("baci.fileio")
}

// File extensions.
const (
	SourceExt  = ".nsb"
	ProgramExt = ".nsbx"
)

// LoadResult holds the content of a loaded file: either source text or a
// compiled program, never both.
type LoadResult struct {
	Path    string
	Source  string
	Program *program.Program
}

// IsProgram is a predicate: has a compiled program been loaded?
func (r LoadResult) IsProgram() bool {
	return r.Program != nil
}

// Load reads a source file or a compiled program, depending on the extension
// of path. Compiled programs are validated.
func Load(path string) (LoadResult, error) {
	ext, kind := checkPath(path)
	if kind != gobaci.Unknown {
		return LoadResult{}, &gobaci.LoadError{Reason: kind, Path: path}
	}
	info, err := os.Stat(path)
	if err != nil {
		return LoadResult{}, &gobaci.LoadError{Reason: statKind(path, err), Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return LoadResult{}, &gobaci.LoadError{Reason: gobaci.NotARegularFile, Path: path}
	}
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, &gobaci.LoadError{Reason: openKind(err), Path: path, Err: err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return LoadResult{}, &gobaci.LoadError{Reason: gobaci.ReadFailed, Path: path, Err: err}
	}
	tracer().Infof("loaded %d bytes from %s", len(data), path)
	if ext == SourceExt {
		return LoadResult{Path: path, Source: string(data)}, nil
	}
	prog, err := program.Decode(bytes.NewReader(data))
	if err != nil {
		return LoadResult{}, &gobaci.LoadError{Reason: gobaci.CorruptProgram, Path: path, Err: err}
	}
	return LoadResult{Path: path, Program: prog}, nil
}

// Save writes source text to a file with extension ".nsb".
func Save(path string, text string) error {
	return save(path, SourceExt, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// SaveProgram writes a compiled program to a file with extension ".nsbx".
func SaveProgram(path string, prog *program.Program) error {
	return save(path, ProgramExt, prog.Encode)
}

func save(path string, want string, write func(io.Writer) error) error {
	ext, kind := checkPath(path)
	if kind != gobaci.Unknown {
		return &gobaci.SaveError{Reason: kind, Path: path}
	}
	if ext != want {
		return &gobaci.SaveError{Reason: gobaci.InvalidExtension, Path: path}
	}
	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return &gobaci.SaveError{Reason: gobaci.NotARegularFile, Path: path}
	}
	if _, err := os.Stat(dirOf(path)); err != nil {
		return &gobaci.SaveError{Reason: statKind(path, err), Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &gobaci.SaveError{Reason: openKind(err), Path: path, Err: err}
	}
	if err := write(f); err != nil {
		f.Close()
		return &gobaci.SaveError{Reason: gobaci.WriteFailed, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &gobaci.SaveError{Reason: gobaci.WriteFailed, Path: path, Err: err}
	}
	tracer().Infof("saved %s", path)
	return nil
}

// --- Error classification ------------------------------------------------------

// checkPath validates a path syntactically and returns its extension. If the
// path is not acceptable, the kind of error is returned, Unknown otherwise.
func checkPath(path string) (string, gobaci.ErrKind) {
	if strings.TrimSpace(path) == "" {
		return "", gobaci.EmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return "", gobaci.InvalidPath
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != SourceExt && ext != ProgramExt {
		return "", gobaci.InvalidExtension
	}
	return ext, gobaci.Unknown
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

// statKind tells a missing directory from a missing file.
func statKind(path string, err error) gobaci.ErrKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return gobaci.PermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		if info, derr := os.Stat(dirOf(path)); derr != nil || !info.IsDir() {
			return gobaci.DirectoryNotFound
		}
		return gobaci.FileNotFound
	}
	return gobaci.OpenFailed
}

func openKind(err error) gobaci.ErrKind {
	if errors.Is(err, fs.ErrPermission) {
		return gobaci.PermissionDenied
	}
	return gobaci.OpenFailed
}
