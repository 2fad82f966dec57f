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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ast"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/parse"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/regalloc"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/x86"
)

var (
	outFileName string
	dumpILOC    bool
	regCount    int
)

// atExit reports the error and turns it into the process exit code: the
// diagnostic's own code for compilation errors, 1 for everything else.
func atExit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	if diag, ok := errors.Cause(err).(*lang.Error); ok {
		os.Exit(diag.Code())
	}
	os.Exit(1)
}

func compile(name string, in io.Reader, out io.Writer) error {
	root, builder, err := parse.Parse(name, in)
	if err != nil {
		return err
	}
	if err := builder.AddDriverCode(root); err != nil {
		return err
	}
	if dumpILOC {
		_, err := io.WriteString(out, ast.ExportCode(root))
		return errors.Wrap(err, "writing intermediate code")
	}
	emitter := x86.NewWithBudget(builder.Scopes.Global(), regCount)
	return emitter.Generate(ast.RootCode(root), out)
}

func main() {
	flag.StringVarP(&outFileName, "output", "o", "", "write assembly to `filename` instead of standard output")
	flag.BoolVar(&dumpILOC, "iloc", false, "dump the intermediate ILOC code instead of assembly")
	flag.IntVar(&regCount, "regcount", regalloc.RegCount, "physical register budget per function")
	flag.Parse()

	in := io.Reader(os.Stdin)
	name := "stdin"
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			atExit(errors.Wrap(err, "opening source file"))
		}
		defer f.Close()
		in, name = f, flag.Arg(0)
	}

	out := io.Writer(os.Stdout)
	if outFileName != "" {
		f, err := os.Create(outFileName)
		if err != nil {
			atExit(errors.Wrap(err, "creating output file"))
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	err := compile(name, bufio.NewReader(in), w)
	if err == nil {
		err = errors.Wrap(w.Flush(), "flushing output")
	}
	atExit(err)
}
