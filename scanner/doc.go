/*
Package scanner provides the lexical analyser for the BACI language.

The scanner is built on top of the lexmachine scanner generator. The DFA is
compiled once per process and shared between all scanners.

For more information on lexmachine, see e.g.
https://hackthology.com/how-to-tokenize-complex-strings-with-lexmachine.html

A scanner is instantiated for each concrete input text:

	lexer, err := scanner.NewLexer()
	if err != nil {
		// do error handling
	}
	scan, err := lexer.Scanner("process p { write(1); }")

Tokens are read on demand until EOF. Input which does not form a legal
token is delivered as a token of type scanner.Error, carrying the offending
text and its position; scanning resumes behind it. After EOF has been
reached, every further call to NextToken returns EOF again.

	for token := scan.NextToken(); token.TokType() != scanner.EOF; token = scan.NextToken() {
		…
	}

Reset restarts a scanner at the beginning of its input.

________________________________________________________________________________

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package scanner
