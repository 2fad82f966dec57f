// This file is part of ilocc - https://github.com/FabioAzevedoGomes/ProjetoCompiladores
//
// Copyright 2021 Fábio de Azevedo Gomes
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// ilocc compiles a small imperative, statically typed, C-like language
// into x86-64 assembly in AT&T syntax.
//
// The compiler reads the source program from standard input (or from the
// file named as the first argument) and writes the assembly to standard
// output. On success the exit status is 0; the first compilation error
// aborts the run with the error's numeric code as exit status:
//
//	10	undeclared identifier
//	11	identifier redeclaration
//	20-22	identifier used against its declared nature
//	30-33	type errors (conversions, string sizes)
//	40-42	call arity and argument type errors
//	50-53	input/output/return/shift parameter errors
//
// Usage:
//
//	ilocc [flags] [source-file]
//
// The flags are:
//
//	-o, --output filename
//		write the generated assembly to filename
//	--iloc
//		dump the intermediate ILOC code instead of assembly
//	--regcount n
//		physical register budget per function (default 8)
//
// The pipeline is: the parser drives the semantic builder bottom-up,
// producing an AST whose value nodes already carry their ILOC chains; the
// driver prelude is prepended to the root; and the backend allocates
// registers per function and rewrites the chain as x86-64.
package main
