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

package ir_test

import (
	"strings"
	"testing"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
)

func TestInstr_String(t *testing.T) {
	names := ir.NewNames()
	r0 := names.Register()
	r1 := names.Register()
	l0 := names.Label()
	rfp := names.Lit("rfp")

	data := []struct {
		instr *ir.Instr
		want  string
	}{
		{ir.New(ir.Nop), "\tnop "},
		{ir.New(ir.Halt), "\thalt "},
		{ir.New(ir.JumpI, l0), "\tjumpI => L0"},
		{ir.New(ir.Jump, r0), "\tjump => r0"},
		{ir.New(ir.Load, r0, r1), "\tload r0 => r1"},
		{ir.New(ir.LoadI, names.Lit("5"), r0), "\tloadI 5 => r0"},
		{ir.New(ir.Store, r0, r1), "\tstore r0 => r1"},
		{ir.New(ir.I2I, r0, r1), "\ti2i r0 => r1"},
		{ir.New(ir.StoreAI, r0, rfp, names.Lit("12")), "\tstoreAI r0 => rfp, 12"},
		{ir.New(ir.Cbr, r0, names.Hole(), names.Hole()), "\tcbr r0 => H0, H1"},
		{ir.New(ir.Add, r0, r1, r0), "\tadd r0, r1 => r0"},
		{ir.New(ir.AddI, rfp, names.Lit("0"), r0), "\taddI rfp, 0 => r0"},
		{ir.New(ir.CmpLT, r0, r1, r0), "\tcmp_LT r0, r1 => r0"},
	}
	for _, d := range data {
		if got := d.instr.String(); got != d.want {
			t.Errorf("Expected: %q\nGot: %q", d.want, got)
		}
	}
}

func TestInstr_label(t *testing.T) {
	names := ir.NewNames()
	l := names.Label()
	i := ir.New(ir.Nop)
	i.SetLabel(l)
	if got := i.String(); got != "L0:\n\tnop " {
		t.Errorf("Expected labelled nop, got %q", got)
	}
}

func TestInstr_chain(t *testing.T) {
	a := ir.New(ir.Nop)
	b := ir.New(ir.Halt)
	c := ir.New(ir.Nop)

	a.Append(b)
	b.AddAfter(c)
	if a.Len() != 3 {
		t.Fatalf("Expected chain of 3, got %d", a.Len())
	}
	if a.Next != b || b.Next != c || c.Prev != b || b.Prev != a {
		t.Fatal("chain links are inconsistent")
	}
	if a.Prev != nil || c.Next != nil {
		t.Fatal("chain ends should be nil")
	}

	d := ir.New(ir.Nop)
	b.AddBefore(d)
	if a.Next != d || d.Next != b {
		t.Fatal("AddBefore should splice between a and b")
	}
}

func TestInstr_Copy_sharesNames(t *testing.T) {
	names := ir.NewNames()
	h := names.Hole()
	l := names.Label()
	orig := ir.New(ir.JumpI, h)
	orig.Append(ir.New(ir.Nop))

	cp := orig.Copy()
	if cp == orig || cp.Next == orig.Next {
		t.Fatal("Copy should produce fresh instructions")
	}
	if cp.Arg1 != orig.Arg1 {
		t.Fatal("Copy must share argument pointers")
	}

	// patching the hole retargets the copy as well
	ir.Patch([]*string{h}, l)
	if !strings.Contains(cp.String(), "L0") {
		t.Errorf("patched hole should show through the copy, got %q", cp.String())
	}
}

func TestPatch(t *testing.T) {
	names := ir.NewNames()
	h1 := names.Hole()
	h2 := names.Hole()
	l := names.Label()
	ir.Patch([]*string{h1, h2}, l)
	if *h1 != "L0" || *h2 != "L0" {
		t.Errorf("Expected both holes patched to L0, got %q and %q", *h1, *h2)
	}
}

func TestIsTemp(t *testing.T) {
	names := ir.NewNames()
	data := []struct {
		arg  *string
		want bool
	}{
		{names.Register(), true},
		{names.Lit("r10"), true},
		{names.Lit("rfp"), false},
		{names.Lit("rsp"), false},
		{names.Lit("rbss"), false},
		{names.Lit("rpc"), false},
		{names.Label(), false},
		{names.Lit("42"), false},
		{names.Lit("r"), false},
		{nil, false},
	}
	for _, d := range data {
		if got := ir.IsTemp(d.arg); got != d.want {
			name := "<nil>"
			if d.arg != nil {
				name = *d.arg
			}
			t.Errorf("IsTemp(%s): expected %v, got %v", name, d.want, got)
		}
	}
}

func TestInstr_liveness(t *testing.T) {
	names := ir.NewNames()
	a := names.Register()

	i1 := ir.New(ir.LoadI, names.Lit("1"), a)
	i2 := ir.New(ir.Nop)
	i3 := ir.New(ir.Store, a, a)
	i1.Append(i2)
	i1.Append(i3)

	// adding live-out propagates forward through the chain
	i1.AddLiveOut(a)
	if len(i1.LiveOut()) != 1 {
		t.Fatal("a should be live-out of i1")
	}
	if len(i2.LiveIn()) != 1 || len(i2.LiveOut()) != 1 {
		t.Fatal("a should have propagated into i2")
	}
	if len(i3.LiveIn()) != 1 || len(i3.LiveOut()) != 1 {
		t.Fatal("a should have propagated into i3")
	}

	// removing from the last use trims the range forward
	i3.RemoveLiveOut(a)
	if len(i3.LiveOut()) != 0 {
		t.Fatal("a should no longer be live-out of i3")
	}
	if len(i3.LiveIn()) != 1 {
		t.Fatal("a should still be live-in at its last use")
	}
	if len(i2.Live()) != 1 {
		t.Fatal("a should still be live during i2")
	}
}

func TestNames(t *testing.T) {
	names := ir.NewNames()
	if r := names.Register(); *r != "r0" {
		t.Errorf("Expected r0, got %s", *r)
	}
	if r := names.Register(); *r != "r1" {
		t.Errorf("Expected r1, got %s", *r)
	}
	if l := names.Label(); *l != "L0" {
		t.Errorf("Expected L0, got %s", *l)
	}
	if h := names.Hole(); *h != "H0" {
		t.Errorf("Expected H0, got %s", *h)
	}
	if b := names.Base(true); *b != "rbss" {
		t.Errorf("Expected rbss, got %s", *b)
	}
	if b := names.Base(false); *b != "rfp" {
		t.Errorf("Expected rfp, got %s", *b)
	}
	if n := names.Int(42); *n != "42" {
		t.Errorf("Expected 42, got %s", *n)
	}
}
