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

package lang

import "fmt"

// ErrKind identifies a class of compilation error. The numeric value of
// each kind doubles as the process exit code reported for it.
type ErrKind int

// Compilation error kinds.
const (
	ErrUndeclared         ErrKind = 10
	ErrRedeclared         ErrKind = 11
	ErrWrongUsageVariable ErrKind = 20
	ErrWrongUsageVector   ErrKind = 21
	ErrWrongUsageFunction ErrKind = 22
	ErrWrongType          ErrKind = 30
	ErrStringToX          ErrKind = 31
	ErrCharToX            ErrKind = 32
	ErrStringSize         ErrKind = 33
	ErrMissingArgs        ErrKind = 40
	ErrExcessArgs         ErrKind = 41
	ErrWrongTypeArgs      ErrKind = 42
	ErrWrongParamInput    ErrKind = 50
	ErrWrongParamOutput   ErrKind = 51
	ErrWrongParamReturn   ErrKind = 52
	ErrWrongParamShift    ErrKind = 53
)

var errKindNames = map[ErrKind]string{
	ErrUndeclared:         "undeclared identifier",
	ErrRedeclared:         "identifier redeclaration",
	ErrWrongUsageVariable: "wrong usage of variable",
	ErrWrongUsageVector:   "wrong usage of vector",
	ErrWrongUsageFunction: "wrong usage of function",
	ErrWrongType:          "incompatible types",
	ErrStringToX:          "invalid conversion from string",
	ErrCharToX:            "invalid conversion from char",
	ErrStringSize:         "string size exceeded",
	ErrMissingArgs:        "missing arguments",
	ErrExcessArgs:         "excess arguments",
	ErrWrongTypeArgs:      "wrong argument type",
	ErrWrongParamInput:    "wrong parameter to input",
	ErrWrongParamOutput:   "wrong parameter to output",
	ErrWrongParamReturn:   "wrong parameter to return",
	ErrWrongParamShift:    "wrong shift amount",
}

func (k ErrKind) String() string {
	if s, ok := errKindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is a compilation diagnostic: the kind of error, the source line it
// was detected on, and a rendered description of the offending construct.
// The first Error raised terminates compilation; its kind's numeric value
// becomes the process exit code.
type Error struct {
	Kind ErrKind
	Line int
	Text string
}

// Errorf builds a diagnostic of the given kind at the given line, with a
// formatted description.
func Errorf(kind ErrKind, line int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Line: line, Text: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("on line %d: %s: %s", e.Line, e.Kind, e.Text)
}

// Code returns the numeric exit code for this diagnostic.
func (e *Error) Code() int { return int(e.Kind) }
