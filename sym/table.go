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

package sym

import (
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
)

// Table is a single scope's symbol table.
type Table struct {
	symbols map[string]*Symbol
	order   []*Symbol // declaration order, for data-segment emission

	cursor int // next free byte offset in the owning frame
	global bool
}

// NewTable creates a symbol table whose offset cursor starts at the given
// address.
func NewTable(start int, global bool) *Table {
	return &Table{
		symbols: make(map[string]*Symbol),
		cursor:  start,
		global:  global,
	}
}

// Global reports whether this is the global symbol table.
func (t *Table) Global() bool { return t.global }

// Cursor returns the table's next free offset.
func (t *Table) Cursor() int { return t.cursor }

// SetCursor overwrites the table's next free offset. Used when a nested
// block hands its frame usage back to the enclosing scope.
func (t *Table) SetCursor(addr int) { t.cursor = addr }

// Insert declares a symbol in the table, assigning it the current cursor
// as offset. Non-function symbols advance the cursor by their occupied
// size; functions take no frame slot. Inserting a name that already exists
// fails with a Redeclared diagnostic carrying both declarations.
func (t *Table) Insert(s *Symbol) error {
	if prev, ok := t.symbols[s.Name()]; ok {
		return lang.Errorf(lang.ErrRedeclared, s.Line,
			"%q was already declared on line %d as %q", s.Name(), prev.Line, prev.Declaration())
	}
	s.Offset = t.cursor
	s.Global = s.Global || t.global
	t.symbols[s.Name()] = s
	t.order = append(t.order, s)
	if s.Nature != Function {
		t.cursor += s.Size
	}
	return nil
}

// Lookup finds a symbol by name in this table only.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	s, ok := t.symbols[name]
	return s, ok
}

// ByOffset finds the non-function symbol assigned the given offset, or nil.
func (t *Table) ByOffset(off int) *Symbol {
	for _, s := range t.order {
		if s.Offset == off && s.Nature != Function {
			return s
		}
	}
	return nil
}

// Symbols returns the table's symbols in declaration order.
func (t *Table) Symbols() []*Symbol { return t.order }
