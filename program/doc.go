/*
Package program defines the executable form of BACI programs.

A Program is a flat sequence of instructions for a stack machine, together
with the initial data image (the globals) and descriptors for the entry
points of threads and routines and for all synchronization objects. Programs
are produced by the compiler, or built programmatically from an Image, and are
immutable afterwards.

Symbol Table and Scope Tree

This package implements data structures for scope trees and symbol tables
attached to them. The compiler uses them during static analysis; a program
keeps a flat copy of all symbols in order of declaration.

________________________________________________________________________________

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package program
