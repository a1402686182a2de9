/*
Package compiler translates BACI source text into programs.

The compiler is a single-pass recursive descent parser which checks types,
builds the symbol table and emits instructions on the fly. Control structures
compile to conditional and unconditional jumps, which are patched as soon as
their targets are known. Calls are patched at the end of compilation, when the
frame sizes of all routines are known; this includes calls in statement
position to routines which are declared further down in the source.

Compilation stops at the first error, which is returned as a
*gobaci.CompileError carrying the offending source position. No program is
produced in this case. A successful compilation may produce warnings, e.g.
for variables which are never used.

	result, err := compiler.Compile(source)
	if err != nil {
		var cerr *gobaci.CompileError
		errors.As(err, &cerr)
		…
	}
	prog := result.Program

Compiling the same source text twice yields identical programs.

________________________________________________________________________________

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package compiler
