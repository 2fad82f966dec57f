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

// Package ir implements the ILOC-style three-address intermediate
// representation emitted by the lowering pass.
//
// Instructions form a doubly-linked chain and render one per line in ILOC
// syntax:
//
//	opcode arg1, arg2 => arg3	(most operations)
//	opcode arg1 => arg2, arg3	(stores and conditional branch)
//	opcode arg1 => arg2		(simple load/store and copies)
//	opcode => arg1			(jumps)
//
// Arguments are pointers into the Names bag: temporaries rN, labels LN,
// back-patch holes HN, the reserved names rfp, rsp, rbss and rpc, or
// literal integer spellings. Holes are placeholders patched in place once
// the target label is known; since every argument aliases the single bag
// entry, rewriting it retargets all uses at once.
package ir

import (
	"strings"
)

// Opcode is an ILOC operation code.
type Opcode int

// ILOC opcodes.
const (
	Nop Opcode = iota
	Add
	Sub
	Mult
	Div
	AddI
	SubI
	RsubI
	MultI
	DivI
	RdivI
	Lshift
	LshiftI
	Rshift
	RshiftI
	Load
	LoadI
	LoadAI
	LoadA0
	Store
	StoreAI
	StoreAO
	I2I
	CmpLT
	CmpLE
	CmpEQ
	CmpGE
	CmpGT
	CmpNE
	And
	Or
	Cbr
	JumpI
	Jump
	Halt
)

var opnames = [...]string{
	"nop",
	"add",
	"sub",
	"mult",
	"div",
	"addI",
	"subI",
	"rsubI",
	"multI",
	"divI",
	"rdivI",
	"lshift",
	"lshiftI",
	"rshift",
	"rshiftI",
	"load",
	"loadI",
	"loadAI",
	"loadA0",
	"store",
	"storeAI",
	"storeAO",
	"i2i",
	"cmp_LT",
	"cmp_LE",
	"cmp_EQ",
	"cmp_GE",
	"cmp_GT",
	"cmp_NE",
	"and",
	"or",
	"cbr",
	"jumpI",
	"jump",
	"halt",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opnames) {
		return "???"
	}
	return opnames[op]
}

// Instr is one three-address instruction in a doubly-linked chain.
type Instr struct {
	Op               Opcode
	Arg1, Arg2, Arg3 *string

	Label *string

	Prev, Next *Instr

	liveIn  []*string
	liveOut []*string
}

// New creates an unlinked instruction with up to three arguments.
func New(op Opcode, args ...*string) *Instr {
	i := &Instr{Op: op}
	if len(args) > 0 {
		i.Arg1 = args[0]
	}
	if len(args) > 1 {
		i.Arg2 = args[1]
	}
	if len(args) > 2 {
		i.Arg3 = args[2]
	}
	return i
}

// SetLabel labels this instruction.
func (i *Instr) SetLabel(l *string) { i.Label = l }

// AddBefore inserts instruction n immediately before i.
func (i *Instr) AddBefore(n *Instr) {
	if n == nil {
		return
	}
	if i.Prev != nil {
		n.Prev = i.Prev
		i.Prev.Next = n
	}
	n.Next = i
	i.Prev = n
}

// AddAfter inserts instruction n immediately after i.
func (i *Instr) AddAfter(n *Instr) {
	if n == nil {
		return
	}
	if i.Next != nil {
		i.Next.Prev = n
		n.Next = i.Next
	}
	i.Next = n
	n.Prev = i
}

// Append links instruction n (and the chain hanging off it) after the last
// instruction of the chain starting at i.
func (i *Instr) Append(n *Instr) {
	if n == nil {
		return
	}
	last := i
	for last.Next != nil {
		last = last.Next
	}
	last.AddAfter(n)
}

// Len returns the number of instructions in the chain starting at i.
func (i *Instr) Len() int {
	n := 0
	for c := i; c != nil; c = c.Next {
		n++
	}
	return n
}

// Copy deep-copies the instruction chain starting at i. Argument and label
// pointers are shared by design: names are owned by the bag, and holes must
// keep aliasing so patching retargets every copy.
func (i *Instr) Copy() *Instr {
	head := &Instr{Op: i.Op, Arg1: i.Arg1, Arg2: i.Arg2, Arg3: i.Arg3, Label: i.Label}
	prev := head
	for c := i.Next; c != nil; c = c.Next {
		n := &Instr{Op: c.Op, Arg1: c.Arg1, Arg2: c.Arg2, Arg3: c.Arg3, Label: c.Label}
		prev.Next = n
		n.Prev = prev
		prev = n
	}
	return head
}

// String renders the instruction in ILOC syntax, preceded by its label
// when it has one.
func (i *Instr) String() string {
	var b strings.Builder
	if i.Label != nil {
		b.WriteString(*i.Label)
		b.WriteString(":\n")
	}
	b.WriteByte('\t')
	b.WriteString(i.Op.String())
	b.WriteByte(' ')
	switch i.Op {
	case Nop, Halt:
		// no operands
	case Jump, JumpI:
		b.WriteString("=> ")
		b.WriteString(*i.Arg1)
	case Load, LoadI, Store, I2I:
		b.WriteString(*i.Arg1)
		b.WriteString(" => ")
		b.WriteString(*i.Arg2)
	case StoreAI, StoreAO, Cbr:
		b.WriteString(*i.Arg1)
		b.WriteString(" => ")
		b.WriteString(*i.Arg2)
		b.WriteString(", ")
		b.WriteString(*i.Arg3)
	default:
		b.WriteString(*i.Arg1)
		b.WriteString(", ")
		b.WriteString(*i.Arg2)
		b.WriteString(" => ")
		b.WriteString(*i.Arg3)
	}
	return b.String()
}

// CodeString renders the whole chain starting at i, one instruction per
// line.
func (i *Instr) CodeString() string {
	var b strings.Builder
	for c := i; c != nil; c = c.Next {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// IsTemp reports whether an argument names a true IR temporary: an 'r'
// prefix that is not one of the reserved registers rfp, rsp, rbss, rpc.
func IsTemp(arg *string) bool {
	if arg == nil || len(*arg) < 2 {
		return false
	}
	s := *arg
	if s[0] != 'r' {
		return false
	}
	switch s[1] {
	case 'f', 's', 'b', 'p':
		return false
	}
	return true
}

// Temps returns the instruction's arguments that name IR temporaries.
func (i *Instr) Temps() []*string {
	var temps []*string
	for _, a := range []*string{i.Arg1, i.Arg2, i.Arg3} {
		if IsTemp(a) {
			temps = append(temps, a)
		}
	}
	return temps
}

func contains(set []*string, t *string) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

func remove(set []*string, t *string) []*string {
	for n, v := range set {
		if v == t {
			return append(set[:n], set[n+1:]...)
		}
	}
	return set
}

// AddLiveIn marks t live on entry to this instruction.
func (i *Instr) AddLiveIn(t *string) {
	if !contains(i.liveIn, t) {
		i.liveIn = append(i.liveIn, t)
	}
}

// AddLiveOut marks t live on exit from this instruction and propagates the
// range forward: t becomes live-in and live-out of every following
// instruction until the end of the chain.
func (i *Instr) AddLiveOut(t *string) {
	if contains(i.liveOut, t) {
		return
	}
	i.liveOut = append(i.liveOut, t)
	if i.Next != nil {
		i.Next.AddLiveIn(t)
		i.Next.AddLiveOut(t)
	}
}

// RemoveLiveIn removes t from this instruction's live-in set.
func (i *Instr) RemoveLiveIn(t *string) {
	i.liveIn = remove(i.liveIn, t)
}

// RemoveLiveOut removes t from this instruction's live-out set and
// propagates the removal forward, trimming the range that AddLiveOut
// extended past the temp's last use.
func (i *Instr) RemoveLiveOut(t *string) {
	if !contains(i.liveOut, t) {
		return
	}
	i.liveOut = remove(i.liveOut, t)
	if i.Next != nil {
		i.Next.RemoveLiveIn(t)
		i.Next.RemoveLiveOut(t)
	}
}

// LiveIn returns the temporaries live on entry to this instruction.
func (i *Instr) LiveIn() []*string { return i.liveIn }

// LiveOut returns the temporaries live on exit from this instruction.
func (i *Instr) LiveOut() []*string { return i.liveOut }

// Live returns the temporaries live during this instruction: the union of
// its live-in and live-out sets.
func (i *Instr) Live() []*string {
	live := make([]*string, 0, len(i.liveIn)+len(i.liveOut))
	live = append(live, i.liveIn...)
	for _, t := range i.liveOut {
		if !contains(live, t) {
			live = append(live, t)
		}
	}
	return live
}
