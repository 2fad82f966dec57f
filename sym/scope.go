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

// Stack is the stack of symbol tables tracking the current static scope.
// The bottom table is the global scope; depth 1 is a function body; deeper
// tables are unnamed nested blocks.
type Stack struct {
	tables []*Table
}

// NewStack creates a scope stack holding only the global table.
func NewStack() *Stack {
	return &Stack{tables: []*Table{NewTable(0, true)}}
}

// Depth returns the number of scopes above the global one.
func (st *Stack) Depth() int { return len(st.tables) - 1 }

// Top returns the currently active symbol table.
func (st *Stack) Top() *Table { return st.tables[len(st.tables)-1] }

// Global returns the bottom (global) symbol table.
func (st *Stack) Global() *Table { return st.tables[0] }

// Enter pushes a new scope. A function body starts a fresh frame at offset
// 0; any other nested scope continues from the enclosing scope's cursor so
// that sibling blocks share the function's frame space.
func (st *Stack) Enter() {
	start := 0
	if st.Depth() > 0 {
		start = st.Top().Cursor()
	}
	st.tables = append(st.tables, NewTable(start, false))
}

// Leave pops the current scope and returns its table. When leaving a
// nested block the parent's cursor is overwritten with the popped cursor,
// keeping frame space monotonically extended within a function.
func (st *Stack) Leave() *Table {
	if len(st.tables) == 1 {
		return nil
	}
	top := st.Top()
	st.tables = st.tables[:len(st.tables)-1]
	if st.Depth() > 0 {
		st.Top().SetCursor(top.Cursor())
	}
	return top
}

// Declare inserts a symbol into the active table, or into the global one
// when globally is set.
func (st *Stack) Declare(s *Symbol, globally bool) error {
	if globally {
		s.Global = true
		return st.Global().Insert(s)
	}
	return st.Top().Insert(s)
}

// Lookup walks the scope stack outward looking for a symbol. A missing
// identifier is an Undeclared diagnostic; missing literals return nil with
// no error, since literals are only declared on first occurrence.
func (st *Stack) Lookup(lv *lang.Lexval) (*Symbol, error) {
	for i := len(st.tables) - 1; i >= 0; i-- {
		if s, ok := st.tables[i].Lookup(lv.Text()); ok {
			return s, nil
		}
	}
	if lv.Category == lang.Literal {
		return nil, nil
	}
	return nil, lang.Errorf(lang.ErrUndeclared, lv.Line, "%q was never declared", lv.Text())
}
