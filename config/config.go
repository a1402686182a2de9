/*
Package config collects the settings of a BACI run from the global
configuration (schuko/gconf) or from any other key-value source.

Keys:

   baci.step-limit      maximum number of steps of a run, 0 = unlimited
   baci.quantum         consecutive steps granted to a thread (default 1)
   baci.random          randomized interleaving (default false)
   baci.seed            seed for randomized interleaving
   baci.fatal-faults    every runtime error stops the run (default false)
   baci.max-call-depth  nesting limit for routine calls
   baci.trace-steps     record thread states for every step
   baci.trace-level     trace level for the baci.* tracers

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
package config

import (
	"fmt"

	"github.com/npillmayer/gobaci/runtime"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.config'.
func tracer() tracing.Trace {
	return tracing.Select("baci.config")
}

// Configuration keys.
const (
	KeyStepLimit    = "baci.step-limit"
	KeyQuantum      = "baci.quantum"
	KeyRandom       = "baci.random"
	KeySeed         = "baci.seed"
	KeyFatalFaults  = "baci.fatal-faults"
	KeyMaxCallDepth = "baci.max-call-depth"
	KeyTraceSteps   = "baci.trace-steps"
	KeyTraceLevel   = "baci.trace-level"
)

// Source is a key-value configuration source. Missing keys yield zero values.
type Source interface {
	GetInt(key string) int
	GetBool(key string) bool
	GetString(key string) string
}

// Settings configure a run.
type Settings struct {
	StepLimit    int
	Quantum      int
	Random       bool
	Seed         int64
	FatalFaults  bool
	MaxCallDepth int
	TraceSteps   bool
	TraceLevel   string
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		Quantum:      1,
		MaxCallDepth: runtime.DefaultMaxCallDepth,
		TraceLevel:   "Error",
	}
}

// FromSource reads settings from src. Zero values select defaults.
func FromSource(src Source) Settings {
	s := Default()
	if n := src.GetInt(KeyStepLimit); n > 0 {
		s.StepLimit = n
	}
	if n := src.GetInt(KeyQuantum); n > 0 {
		s.Quantum = n
	}
	s.Random = src.GetBool(KeyRandom)
	s.Seed = int64(src.GetInt(KeySeed))
	s.FatalFaults = src.GetBool(KeyFatalFaults)
	if n := src.GetInt(KeyMaxCallDepth); n > 0 {
		s.MaxCallDepth = n
	}
	s.TraceSteps = src.GetBool(KeyTraceSteps)
	if l := src.GetString(KeyTraceLevel); l != "" {
		s.TraceLevel = l
	}
	tracer().Debugf("settings: %s", s)
	return s
}

// FromGlobal reads settings from the global configuration.
func FromGlobal() Settings {
	return FromSource(Global())
}

// Global returns the global configuration as a Source.
func Global() Source {
	return globalSource{}
}

// Options converts settings into runtime options.
func (s Settings) Options() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithStepLimit(s.StepLimit),
		runtime.WithQuantum(s.Quantum),
		runtime.WithFatalFaults(s.FatalFaults),
		runtime.WithMaxCallDepth(s.MaxCallDepth),
		runtime.WithTrace(s.TraceSteps),
	}
	if s.Random {
		opts = append(opts, runtime.WithRandom(s.Seed))
	}
	return opts
}

func (s Settings) String() string {
	return fmt.Sprintf("step-limit=%d quantum=%d random=%v seed=%d fatal-faults=%v max-call-depth=%d trace-steps=%v",
		s.StepLimit, s.Quantum, s.Random, s.Seed, s.FatalFaults, s.MaxCallDepth, s.TraceSteps)
}

// --- Sources -----------------------------------------------------------------

// globalSource reads from schuko's global configuration. An uninitialized
// global configuration reads as empty.
type globalSource struct{}

func (globalSource) GetInt(key string) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return gconf.GetInt(key)
}

func (globalSource) GetBool(key string) (b bool) {
	defer func() {
		if recover() != nil {
			b = false
		}
	}()
	return gconf.GetBool(key)
}

func (globalSource) GetString(key string) (str string) {
	defer func() {
		if recover() != nil {
			str = ""
		}
	}()
	return gconf.GetString(key)
}

// Map is a Source backed by a map, as used for command line overrides and
// tests.
type Map map[string]interface{}

// GetInt is part of interface Source.
func (m Map) GetInt(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// GetBool is part of interface Source.
func (m Map) GetBool(key string) bool {
	b, _ := m[key].(bool)
	return b
}

// GetString is part of interface Source.
func (m Map) GetString(key string) string {
	s, _ := m[key].(string)
	return s
}

// Has is a predicate: is key set in m, even to a zero value?
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// keyed is implemented by sources able to tell an unset key from a key set
// to its zero value.
type keyed interface {
	Has(key string) bool
}

// Overlay is a Source which consults its sources in order. A source able to
// tell whether it carries a key decides as soon as it does, even with a zero
// value. Other sources decide with their first non-zero value.
type Overlay []Source

func (o Overlay) lookup(key string, nonZero func(Source) bool) Source {
	for _, src := range o {
		if k, ok := src.(keyed); ok {
			if k.Has(key) {
				return src
			}
			continue
		}
		if nonZero(src) {
			return src
		}
	}
	return nil
}

// GetInt is part of interface Source.
func (o Overlay) GetInt(key string) int {
	if src := o.lookup(key, func(s Source) bool { return s.GetInt(key) != 0 }); src != nil {
		return src.GetInt(key)
	}
	return 0
}

// GetBool is part of interface Source.
func (o Overlay) GetBool(key string) bool {
	if src := o.lookup(key, func(s Source) bool { return s.GetBool(key) }); src != nil {
		return src.GetBool(key)
	}
	return false
}

// GetString is part of interface Source.
func (o Overlay) GetString(key string) string {
	if src := o.lookup(key, func(s Source) bool { return s.GetString(key) != "" }); src != nil {
		return src.GetString(key)
	}
	return ""
}
