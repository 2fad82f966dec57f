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

package sym_test

import (
	"testing"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

func id(line int, name string) *lang.Lexval {
	return lang.NameLexval(line, lang.Identifier, name)
}

func TestTable_offsets(t *testing.T) {
	table := sym.NewTable(0, true)

	x := sym.New(id(1, "x"), sym.Identifier, lang.Int, 1, false)
	v := sym.New(id(2, "v"), sym.Vector, lang.Int, 4, false)
	f := sym.New(id(3, "f"), sym.Function, lang.Int, 1, false)
	y := sym.New(id(4, "y"), sym.Identifier, lang.Float, 1, false)

	for _, s := range []*sym.Symbol{x, v, f, y} {
		if err := table.Insert(s); err != nil {
			t.Fatalf("Insert(%s): unexpected error %v", s.Name(), err)
		}
	}

	data := []struct {
		s      *sym.Symbol
		offset int
		size   int
	}{
		{x, 0, 4},
		{v, 4, 16},
		{f, 20, 4}, // functions take no frame slot
		{y, 20, 8},
	}
	for _, d := range data {
		if d.s.Offset != d.offset || d.s.Size != d.size {
			t.Errorf("%s: expected offset %d size %d, got offset %d size %d",
				d.s.Name(), d.offset, d.size, d.s.Offset, d.s.Size)
		}
	}
	if table.Cursor() != 28 {
		t.Errorf("Expected cursor 28, got %d", table.Cursor())
	}
	if got := table.ByOffset(4); got != v {
		t.Errorf("ByOffset(4): expected v, got %v", got)
	}
	if got := table.ByOffset(20); got != y {
		t.Errorf("ByOffset(20): expected y (functions skipped), got %v", got)
	}
}

func TestTable_sizeInvariant(t *testing.T) {
	s := sym.New(id(1, "s"), sym.Identifier, lang.Any, 1, false)
	s.SetType(lang.String)
	if s.Size != s.Count*lang.String.Size() {
		t.Fatalf("size invariant broken after SetType: %d != %d", s.Size, s.Count)
	}
	if !s.UpdateSize(12) {
		t.Fatal("first UpdateSize on an unsized string should succeed")
	}
	if s.Count != 12 || s.Size != 12 {
		t.Fatalf("expected count 12 size 12, got count %d size %d", s.Count, s.Size)
	}
	if s.UpdateSize(20) {
		t.Fatal("growing past the declared count should fail")
	}
	if !s.UpdateSize(8) {
		t.Fatal("shrinking within the declared count should succeed")
	}
}

func TestTable_redeclared(t *testing.T) {
	table := sym.NewTable(0, false)
	if err := table.Insert(sym.New(id(1, "x"), sym.Identifier, lang.Int, 1, false)); err != nil {
		t.Fatal(err)
	}
	err := table.Insert(sym.New(id(5, "x"), sym.Identifier, lang.Float, 1, false))
	if err == nil {
		t.Fatal("expected a redeclaration error")
	}
	diag, ok := err.(*lang.Error)
	if !ok {
		t.Fatalf("expected *lang.Error, got %T", err)
	}
	if diag.Kind != lang.ErrRedeclared || diag.Code() != 11 {
		t.Errorf("expected kind Redeclared code 11, got %v code %d", diag.Kind, diag.Code())
	}
	if diag.Line != 5 {
		t.Errorf("expected the new declaration's line 5, got %d", diag.Line)
	}
}

func TestStack_scopes(t *testing.T) {
	st := sym.NewStack()
	if !st.Top().Global() || st.Depth() != 0 {
		t.Fatal("fresh stack should sit at the global scope")
	}

	// a function body starts a fresh frame
	st.Enter()
	if st.Top().Cursor() != 0 {
		t.Fatalf("function scope cursor should start at 0, got %d", st.Top().Cursor())
	}
	if err := st.Declare(sym.New(id(1, "a"), sym.Identifier, lang.Int, 1, false), false); err != nil {
		t.Fatal(err)
	}

	// a nested block continues the enclosing frame and hands its cursor back
	st.Enter()
	if st.Top().Cursor() != 4 {
		t.Fatalf("nested scope should continue at 4, got %d", st.Top().Cursor())
	}
	if err := st.Declare(sym.New(id(2, "b"), sym.Identifier, lang.Float, 1, false), false); err != nil {
		t.Fatal(err)
	}
	st.Leave()
	if st.Top().Cursor() != 12 {
		t.Fatalf("parent cursor should be extended to 12, got %d", st.Top().Cursor())
	}

	// balanced enter/leave restores the previous top
	before := st.Top()
	cursor := before.Cursor()
	st.Enter()
	st.Leave()
	if st.Top() != before || st.Top().Cursor() != cursor {
		t.Fatal("enter/leave should restore the previous scope and cursor")
	}

	st.Leave()
	if st.Depth() != 0 {
		t.Fatalf("expected to be back at global scope, got depth %d", st.Depth())
	}
}

func TestStack_lookup(t *testing.T) {
	st := sym.NewStack()
	global := sym.New(id(1, "g"), sym.Identifier, lang.Int, 1, true)
	if err := st.Declare(global, true); err != nil {
		t.Fatal(err)
	}
	st.Enter()
	local := sym.New(id(2, "l"), sym.Identifier, lang.Float, 1, false)
	if err := st.Declare(local, false); err != nil {
		t.Fatal(err)
	}

	// lookup walks outward
	if s, err := st.Lookup(id(3, "g")); err != nil || s != global {
		t.Errorf("expected to find g in global scope, got %v, %v", s, err)
	}
	if s, err := st.Lookup(id(3, "l")); err != nil || s != local {
		t.Errorf("expected to find l in current scope, got %v, %v", s, err)
	}

	// missing identifiers are fatal, missing literals are not
	_, err := st.Lookup(id(4, "missing"))
	diag, ok := err.(*lang.Error)
	if !ok || diag.Kind != lang.ErrUndeclared || diag.Code() != 10 {
		t.Errorf("expected Undeclared code 10, got %v", err)
	}
	if s, err := st.Lookup(lang.IntLexval(4, 99)); s != nil || err != nil {
		t.Errorf("absent literal should return nil, nil; got %v, %v", s, err)
	}

	// shadowing: the innermost declaration wins
	shadow := sym.New(id(5, "g"), sym.Identifier, lang.Bool, 1, false)
	if err := st.Declare(shadow, false); err != nil {
		t.Fatal(err)
	}
	if s, _ := st.Lookup(id(6, "g")); s != shadow {
		t.Error("expected the inner declaration to shadow the global one")
	}
}
