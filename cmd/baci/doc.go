/*
Command baci compiles and runs BACI programs.

Usage:

   baci [flags] file.nsb|file.nsbx

Source files (.nsb) are compiled first, compiled programs (.nsbx) are run
directly. With flag -i, baci starts an interactive step debugger, where
threads, variables and synchronization objects may be inspected after every
step.

Exit codes: 0 if all threads terminated, 1 for load and compile errors,
2 for a deadlock, 3 for a fatal runtime error, 4 if the run has been stopped
or the step limit has been reached.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

package main

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'baci.cli'
func tracer() tracing.Trace {
	return tracing.Select("baci.cli")
}
