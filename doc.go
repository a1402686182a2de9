/*
Package gobaci is a toolchain for teaching concurrent programming.

Programs are written in a small imperative language in the tradition of BACI
(Ben-Ari Concurrent Interpreter), with process blocks, semaphores and
monitors. They are compiled to a flat instruction sequence and executed on a
virtual machine which simulates concurrency on a single host thread. Every
interleaving is chosen by a deterministic scheduler, so race conditions,
deadlocks and mutual exclusion can be replayed step by step.

■ scanner: Package scanner tokenizes source text, using a lexmachine DFA.

■ compiler: Package compiler translates a token stream into a program, checking
declarations and types along the way.

■ program: Package program defines instructions, addresses, symbols and the
immutable Program container.

■ runtime: Package runtime implements threads, the scheduler and the interpreter,
together with the shared VM state of semaphores and monitors.

■ fileio, drawing, config: collaborators for loading and saving, for drawing
side effects and for run configuration.

The base package contains data types which are used throughout all the other
packages: tokens, spans, positions and the error taxonomy.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package gobaci
