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

// Package x86 rewrites the annotated ILOC chain into x86-64 assembly in
// AT&T syntax. The output is partitioned into a data segment (.comm for
// globals and vectors, labelled .long entries for literals), a code
// segment (one block per function with the conventional pushq/movq
// prologue and popq/ret epilogue), and an end segment carrying the .ident
// and GNU-stack notes.
package x86

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/regalloc"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

// Emitter translates an ILOC program into x86-64 assembly.
type Emitter struct {
	global *sym.Table
	k      int

	functions map[*string]*sym.Symbol
	current   *sym.Symbol
	index     int

	registers map[*string]string
}

// New creates an emitter over the program's global symbol table, using the
// default register budget.
func New(global *sym.Table) *Emitter {
	return &Emitter{global: global, k: regalloc.RegCount}
}

// NewWithBudget creates an emitter with an explicit register budget.
func NewWithBudget(global *sym.Table, k int) *Emitter {
	return &Emitter{global: global, k: k}
}

// Generate writes the complete assembly program for the instruction chain.
func (e *Emitter) Generate(first *ir.Instr, w io.Writer) error {
	e.functions = make(map[*string]*sym.Symbol)
	var b strings.Builder
	e.dataSegment(&b)
	b.WriteByte('\n')
	if err := e.codeSegment(first, &b); err != nil {
		return err
	}
	b.WriteByte('\n')
	e.endSegment(&b)
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing assembly")
}

// dataSegment emits globals, vectors and literals in declaration order and
// registers the label-to-function map consulted while walking the code.
func (e *Emitter) dataSegment(b *strings.Builder) {
	b.WriteString("# =======================\n")
	b.WriteString("#  Start of Data Segment\n")
	b.WriteString("# =======================\n")
	b.WriteString("  \t.text\n")

	symbols := append([]*sym.Symbol{}, e.global.Symbols()...)
	sort.SliceStable(symbols, func(i, j int) bool { return symbols[i].Offset < symbols[j].Offset })

	for _, s := range symbols {
		switch s.Nature {
		case sym.Identifier, sym.Vector:
			fmt.Fprintf(b, "\t.comm %s,%d\n", s.Name(), s.Size)
		case sym.None:
			if v, ok := literalValue(s.Lexval); ok {
				fmt.Fprintf(b, "__%s:\n", s.Name())
				fmt.Fprintf(b, "\t.long %d\t# Literal: %s\n", v, s.Name())
			}
		case sym.Function:
			if s.Label != nil {
				e.functions[s.Label] = s
			}
		}
	}
}

// literalValue converts an integer-representable literal to the value of
// its .long entry.
func literalValue(lv *lang.Lexval) (int, bool) {
	switch lv.Field {
	case lang.FieldInt:
		return lv.Int, true
	case lang.FieldBool:
		if lv.Bool {
			return 1, true
		}
		return 0, true
	case lang.FieldChar:
		return int(lv.Char), true
	default:
		return 0, false
	}
}

// boundary reports whether an instruction opens a function other than the
// one currently being emitted.
func (e *Emitter) boundary(i *ir.Instr) bool {
	if i.Label == nil {
		return false
	}
	fn, ok := e.functions[i.Label]
	return ok && fn != e.current
}

// codeSegment walks the chain past the driver prelude and translates each
// function. Function entries are recognized by their labels; the ILOC
// prologue pair (i2i rsp => rfp; addI rsp, N => rsp) is replaced by the
// conventional pushq/movq sequence, and the canonical return sequence
// collapses into a movl to %eax followed by popq/ret.
func (e *Emitter) codeSegment(first *ir.Instr, b *strings.Builder) error {
	b.WriteString("# =======================\n")
	b.WriteString("#  Start of Code Segment\n")
	b.WriteString("# =======================\n")

	cur := first
	for cur != nil && cur.Op != ir.Halt {
		cur = cur.Next
	}
	if cur == nil {
		return errors.New("driver prelude missing from instruction chain")
	}

	for cur = cur.Next; cur != nil; cur = cur.Next {
		if fn, ok := e.functions[cur.Label]; cur.Label != nil && ok {
			if e.current != nil {
				e.functionEnd(b)
			}
			e.current = fn
			if err := e.functionStart(cur, b); err != nil {
				return err
			}
			// skip the ILOC frame setup the pushq/movq pair replaces
			cur = cur.Next.Next
		} else if cur.Label != nil {
			fmt.Fprintf(b, "%s: \n", *cur.Label)
		}

		if e.startsReturn(cur) {
			fmt.Fprintf(b, "\tmovl %s, %%eax\n", e.argument(cur.Arg1))
			for cur.Op != ir.Jump {
				cur = cur.Next
			}
		}

		fmt.Fprintf(b, "\t%s\n", e.translate(cur))
	}

	if e.current != nil {
		e.functionEnd(b)
	}
	return nil
}

// endSegment emits the trailing metadata.
func (e *Emitter) endSegment(b *strings.Builder) {
	b.WriteString("# =======================\n")
	b.WriteString("#           END \n")
	b.WriteString("# =======================\n")
	b.WriteString("\t.ident \"INF01147\"\n")
	b.WriteString("\t.section\t.note.GNU-stack,\"\",@progbits")
}

// functionStart emits the function header and runs register allocation
// over its instruction range.
func (e *Emitter) functionStart(first *ir.Instr, b *strings.Builder) error {
	fmt.Fprintf(b, "\n# =======================\n")
	fmt.Fprintf(b, "#  Start of function %q\n", e.current.Name())
	fmt.Fprintf(b, "# =======================\n")
	fmt.Fprintf(b, "\t.globl %s\n", e.current.Name())
	fmt.Fprintf(b, "\t.type  %s, @function\n", e.current.Name())
	fmt.Fprintf(b, "%s:\n", e.current.Name())
	fmt.Fprintf(b, ".LFB%d:\n", e.index)
	b.WriteString("\tpushq %rbp\n")
	b.WriteString("\tmovq %rsp, %rbp\n")

	registers, err := regalloc.Allocate(first, e.boundary, e.k)
	if err != nil {
		return errors.Wrapf(err, "allocating registers for %q", e.current.Name())
	}
	e.registers = registers
	return nil
}

// functionEnd emits the size metadata closing the current function.
func (e *Emitter) functionEnd(b *strings.Builder) {
	fmt.Fprintf(b, "\n.LFE%d:\n", e.index)
	fmt.Fprintf(b, "\t.size %s, .-%s\n", e.current.Name(), e.current.Name())
	e.index++
}

// startsReturn recognizes the head of the canonical return sequence: the
// store of the return value into the frame's return slot, immediately
// followed by the reloads of the saved machine state.
func (e *Emitter) startsReturn(i *ir.Instr) bool {
	if i == nil || i.Op != ir.StoreAI || i.Arg2 == nil || *i.Arg2 != "rfp" {
		return false
	}
	n := i.Next
	return n != nil && n.Op == ir.LoadAI && *n.Arg2 == "0"
}

// argument translates an ILOC argument: allocated temporaries map to their
// physical register, reserved registers to their machine counterparts,
// labels stay, and anything else is an immediate.
func (e *Emitter) argument(arg *string) string {
	s := *arg
	switch {
	case ir.IsTemp(arg):
		if reg, ok := e.registers[arg]; ok {
			return reg
		}
		return "%r?"
	case s == "rfp":
		return "%rbp"
	case s == "rsp":
		return "%rsp"
	case s == "rbss":
		return "(%rip)"
	case s == "rpc":
		return "%rip"
	case len(s) > 0 && s[0] == 'L':
		return s
	default:
		return "$" + s
	}
}

// memoryOperand renders the data-segment or frame operand named by an
// addI rbss/rfp, offset instruction, using the symbol table to recover the
// global's name.
func (e *Emitter) memoryOperand(i *ir.Instr, offset string) string {
	if *i.Arg1 == "rbss" {
		if s := e.global.ByOffset(atoi(offset)); s != nil {
			if s.Nature == sym.None {
				return fmt.Sprintf("__%s(%%rip)", s.Name())
			}
			return fmt.Sprintf("%s(%%rip)", s.Name())
		}
		return fmt.Sprintf("%s(%%rip)", offset)
	}
	return fmt.Sprintf("-%s(%%rbp)", offset)
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// translate rewrites one ILOC instruction into its x86-64 counterpart.
// Each emitted block is prefixed with the originating TAC as a comment.
func (e *Emitter) translate(i *ir.Instr) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# TAC: %s\n\t", strings.TrimSpace(i.String()))

	switch i.Op {
	case ir.Nop, ir.Halt:
		b.WriteString("nop")

	case ir.Add, ir.AddI:
		e.translateAdd(i, &b)

	case ir.Sub, ir.SubI:
		if e.argument(i.Arg1) == e.argument(i.Arg3) {
			fmt.Fprintf(&b, "subq %s, %s", e.argument(i.Arg2), e.argument(i.Arg1))
		} else {
			fmt.Fprintf(&b, "movq %s, %s\n", e.argument(i.Arg1), e.argument(i.Arg3))
			fmt.Fprintf(&b, "\tsubq %s, %s", e.argument(i.Arg2), e.argument(i.Arg3))
		}

	case ir.RsubI:
		fmt.Fprintf(&b, "movq %s, %s\n", e.argument(i.Arg2), e.argument(i.Arg3))
		fmt.Fprintf(&b, "\tsubq %s, %s", e.argument(i.Arg1), e.argument(i.Arg3))

	case ir.Mult, ir.MultI:
		fmt.Fprintf(&b, "movq %s, %%rax\n", e.argument(i.Arg1))
		fmt.Fprintf(&b, "\timulq %s, %%rax\n", e.argument(i.Arg2))
		fmt.Fprintf(&b, "\tmovq %%rax, %s", e.argument(i.Arg3))

	case ir.Div, ir.DivI:
		fmt.Fprintf(&b, "movq %s, %%rax\n", e.argument(i.Arg1))
		b.WriteString("\tcqto\n")
		fmt.Fprintf(&b, "\tidivq %s\n", e.argument(i.Arg2))
		fmt.Fprintf(&b, "\tmovq %%rax, %s", e.argument(i.Arg3))

	case ir.Store, ir.Load:
		// covered by the addI addressing special case
		b.WriteString("nop")

	case ir.StoreAI:
		fmt.Fprintf(&b, "movq %s, %s(%s)", e.argument(i.Arg1), *i.Arg3, e.argument(i.Arg2))

	case ir.LoadI:
		fmt.Fprintf(&b, "movq %s, %s", e.argument(i.Arg1), e.argument(i.Arg2))

	case ir.LoadAI:
		fmt.Fprintf(&b, "movq %s(%s), %s", *i.Arg2, e.argument(i.Arg1), e.argument(i.Arg3))

	case ir.I2I:
		fmt.Fprintf(&b, "movq %s, %s", e.argument(i.Arg1), e.argument(i.Arg2))

	case ir.CmpLT, ir.CmpLE, ir.CmpEQ, ir.CmpGE, ir.CmpGT, ir.CmpNE:
		fmt.Fprintf(&b, "cmp %s, %s", e.argument(i.Arg2), e.argument(i.Arg1))

	case ir.Cbr:
		op := "jmp"
		if i.Prev != nil {
			switch i.Prev.Op {
			case ir.CmpEQ:
				op = "je "
			case ir.CmpGE:
				op = "jge"
			case ir.CmpGT:
				op = "jg "
			case ir.CmpLE:
				op = "jle"
			case ir.CmpLT:
				op = "jl "
			case ir.CmpNE:
				op = "jne"
			}
		}
		fmt.Fprintf(&b, "%s %s\n", op, *i.Arg2)
		fmt.Fprintf(&b, "\tjmp %s", *i.Arg3)

	case ir.JumpI:
		if fn, ok := e.functions[i.Arg1]; ok {
			fmt.Fprintf(&b, "call %s", fn.Name())
		} else {
			fmt.Fprintf(&b, "jmp %s", *i.Arg1)
		}

	case ir.Jump:
		b.WriteString("popq %rbp\n\tret ")

	case ir.Lshift, ir.LshiftI:
		fmt.Fprintf(&b, "movq %s, %%rcx\n", e.argument(i.Arg2))
		fmt.Fprintf(&b, "\tsalq %%cl, %s", e.argument(i.Arg1))

	case ir.Rshift, ir.RshiftI:
		fmt.Fprintf(&b, "movq %s, %%rcx\n", e.argument(i.Arg2))
		fmt.Fprintf(&b, "\tsarq %%cl, %s", e.argument(i.Arg1))

	default:
		fmt.Fprintf(&b, "nop # no translation for %s", i.Op)
	}
	return b.String()
}

// translateAdd handles add and addI, including the addressing idiom where
// an addI over rbss or rfp feeds the following load or store: those pairs
// collapse into a single memory-direct movl.
func (e *Emitter) translateAdd(i *ir.Instr, b *strings.Builder) {
	a1, a2, a3 := e.argument(i.Arg1), e.argument(i.Arg2), e.argument(i.Arg3)
	switch {
	case a1 == a3:
		fmt.Fprintf(b, "addq %s, %s", a2, a1)
	case a2 == a3:
		fmt.Fprintf(b, "addq %s, %s", a1, a2)
	case *i.Arg1 == "rbss" || *i.Arg1 == "rfp":
		mem := e.memoryOperand(i, *i.Arg2)
		next := i.Next
		switch {
		case next != nil && next.Op == ir.Load:
			fmt.Fprintf(b, "movl %s, %sd", mem, e.argument(next.Arg2))
		case next != nil && next.Op == ir.Store:
			fmt.Fprintf(b, "movl %sd, %s", e.argument(next.Arg1), mem)
		default:
			fmt.Fprintf(b, "leaq %s, %s", mem, a3)
		}
	default:
		fmt.Fprintf(b, "movq %s, %s\n", a1, a3)
		fmt.Fprintf(b, "\taddq %s, %s", a2, a3)
	}
}
