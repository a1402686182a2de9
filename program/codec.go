package program

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatVersion is the version of the serialized program format.
const FormatVersion = 1

type envelope struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Image   Image  `json:"image"`
}

const formatName = "gobaci-program"

// Encode writes the program as JSON to w.
func (p *Program) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	env := envelope{Format: formatName, Version: FormatVersion, Image: p.img}
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encoding program: %w", err)
	}
	return nil
}

// Decode reads a program previously written by Encode. The program is
// validated before it is returned.
func Decode(r io.Reader) (*Program, error) {
	var env envelope
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if env.Format != formatName {
		return nil, fmt.Errorf("decoding program: not a program file (format %q)", env.Format)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("decoding program: unsupported format version %d", env.Version)
	}
	prog := New(env.Image)
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	tracer().Debugf("decoded program with %d instructions", prog.Len())
	return prog, nil
}
