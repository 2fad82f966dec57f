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

// Package sym implements symbols, per-scope symbol tables and the scope
// stack used by the semantic checks.
//
// Each static scope owns one Table mapping identifier names to Symbol
// records. Tables carry a "next free offset" cursor: inserting a
// non-function symbol assigns the cursor as the symbol's offset and
// advances it by the symbol's occupied size; function symbols take no
// frame slot. The Stack keeps the global table at the bottom and
// propagates nested-block cursors back to the parent on exit, so nested
// blocks extend the enclosing function's frame.
package sym

import (
	"fmt"
	"strings"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
)

// Nature distinguishes what an identifier names, orthogonally to its type.
type Nature int

// Symbol natures. None is used for literal symbols inserted into the
// global table for data-segment emission.
const (
	None Nature = iota
	Identifier
	Vector
	Function
)

var natureNames = [...]string{
	"literal",
	"variable",
	"vector",
	"function",
}

func (n Nature) String() string {
	if n < 0 || int(n) >= len(natureNames) {
		return "INVALID_NATURE"
	}
	return natureNames[n]
}

// Symbol is one entry of a symbol table.
type Symbol struct {
	Lexval *lang.Lexval
	Nature Nature
	Type   lang.Type
	Line   int // declaration line; updated for repeating literals

	Count int // element count (1 for scalars, N for vectors and strings)
	Size  int // Count × Type.Size(), kept in sync by SetType and UpdateSize

	Global bool
	Offset int // byte offset within the owning frame or data segment

	Label  *string   // entry label, minted when the first call or declaration of the function is lowered
	Params []*Symbol // ordered parameter list for functions
}

// New creates a symbol from its describing data.
func New(lv *lang.Lexval, nature Nature, typ lang.Type, count int, global bool) *Symbol {
	return &Symbol{
		Lexval: lv,
		Nature: nature,
		Type:   typ,
		Line:   lv.Line,
		Count:  count,
		Size:   count * typ.Size(),
		Global: global,
		Offset: -1,
	}
}

// Name returns the symbol's identifier (or literal spelling).
func (s *Symbol) Name() string { return s.Lexval.Text() }

// SetType assigns the symbol's type, keeping its occupied size in sync.
func (s *Symbol) SetType(t lang.Type) {
	s.Type = t
	s.Size = s.Count * t.Size()
}

// UpdateSize checks the given element count against the current one and
// updates it when allowed: either the symbol was never sized (strings
// declared without an initializer occupy a single byte until first
// assignment) or the new count fits the declared one.
func (s *Symbol) UpdateSize(count int) bool {
	if s.Size == 1 || count <= s.Count {
		s.Count = count
		s.Size = count * s.Type.Size()
		return true
	}
	return false
}

// AddParameter appends a parameter to the symbol's ordered parameter list.
func (s *Symbol) AddParameter(p *Symbol) {
	s.Params = append(s.Params, p)
}

// Declaration reconstructs an approximation of the symbol's declaration,
// used in diagnostics.
func (s *Symbol) Declaration() string {
	if s.Lexval.Category != lang.Identifier {
		return s.Name()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Type, s.Name())
	switch s.Nature {
	case Vector:
		fmt.Fprintf(&b, "[%d]", s.Count)
	case Function:
		b.WriteByte('(')
		for i, p := range s.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Declaration())
		}
		b.WriteByte(')')
	}
	return b.String()
}
