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

// Package ast implements the annotated abstract syntax tree and the
// semantic builder that constructs it.
//
// Nodes thread three distinct links: Children hold the fixed operands of a
// construct (an if keeps its condition and branches as children), Next
// chains elements of a list (argument lists, comma-separated declarations),
// and NextCmd chains statements sequentially within a block. Each node
// carries its checked language type, and value-producing nodes carry the
// intermediate-code chain generated for them together with the temporary
// holding their result.
package ast

import (
	"fmt"
	"strings"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
)

// Kind discriminates what statement or expression a node represents.
type Kind int

// Node kinds.
const (
	Operand Kind = iota
	VectorAccess
	FunctionDeclaration
	FunctionCall
	InitVariable
	AttribVariable
	IO
	Shift
	BreakContinue
	Return
	If
	For
	While
	Unop
	Binop
	Ternop
)

// Node is one vertex of the annotated AST.
type Node struct {
	Lexval *lang.Lexval
	Kind   Kind
	Type   lang.Type

	Children []*Node
	Next     *Node // next element in a sibling list
	NextCmd  *Node // next command in a block

	lval    bool
	address bool
	value   bool

	code *ir.Instr
	temp *string

	trueList  []*string
	falseList []*string
}

// NewNode creates a node from its lexical value, type, kind and l-value
// status.
func NewNode(lv *lang.Lexval, typ lang.Type, kind Kind, lval bool) *Node {
	return &Node{Lexval: lv, Type: typ, Kind: kind, lval: lval}
}

// Name returns the node's token text.
func (n *Node) Name() string { return n.Lexval.Text() }

// Line returns the source line the node's token was read on.
func (n *Node) Line() int { return n.Lexval.Line }

// Child returns the indexed child. Out-of-range indexes clamp to the last
// child; a node without children returns nil.
func (n *Node) Child(i int) *Node {
	if len(n.Children) == 0 {
		return nil
	}
	if i >= len(n.Children) {
		i = len(n.Children) - 1
	}
	return n.Children[i]
}

// InsertChild appends a child node, ignoring nil.
func (n *Node) InsertChild(c *Node) {
	if c != nil {
		n.Children = append(n.Children, c)
	}
}

// InsertNext links the next element of a sibling list.
func (n *Node) InsertNext(next *Node) { n.Next = next }

// InsertCommand links the next command after this one and concatenates its
// code chain onto this node's chain.
func (n *Node) InsertCommand(cmd *Node) {
	if cmd == nil {
		return
	}
	n.NextCmd = cmd
	next := cmd.Code()
	if n.code != nil {
		n.code.Append(next)
	} else {
		n.code = next
	}
}

// Code returns a copy of the node's instruction chain. Temporary and label
// names are shared with the original; only the list structure is fresh, so
// callers may splice the copy into their own chains.
func (n *Node) Code() *ir.Instr {
	if n.code == nil {
		return nil
	}
	return n.code.Copy()
}

// Temp returns the name of the temporary holding this node's address or
// value.
func (n *Node) Temp() *string { return n.temp }

// IsLval reports whether the node was built in l-value position.
func (n *Node) IsLval() bool { return n.lval }

// HasAddress reports that the node's temporary holds a memory address.
func (n *Node) HasAddress() bool { return n.address }

// HasValue reports that the node's temporary holds a value.
func (n *Node) HasValue() bool { return n.value }

func (n *Node) setTemp(t *string) { n.temp = t }

func (n *Node) setAddress() {
	n.value = false
	n.address = true
}

func (n *Node) setValue() {
	n.address = false
	n.value = true
}

// SetRval flips a node built in l-value position to r-value. If its code
// was already generated as an address computation, a load is appended so
// the temporary holds the value instead.
func (n *Node) SetRval() {
	n.lval = false
	if n.address {
		n.code.Append(ir.New(ir.Load, n.temp, n.temp))
		n.setValue()
	}
}

// TrueList returns the holes awaiting the label executed when the
// expression is true.
func (n *Node) TrueList() []*string { return n.trueList }

// FalseList returns the holes awaiting the label executed when the
// expression is false.
func (n *Node) FalseList() []*string { return n.falseList }

// ClearTrueList empties the true list so patched holes are never reused.
func (n *Node) ClearTrueList() { n.trueList = nil }

// ClearFalseList empties the false list so patched holes are never reused.
func (n *Node) ClearFalseList() { n.falseList = nil }

func reconstruct(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Reconstruct()
}

// Reconstruct renders an approximation of the source text this node was
// built from, used in diagnostics.
func (n *Node) Reconstruct() string {
	var b strings.Builder
	switch n.Kind {
	case Operand:
		b.WriteString(n.Name())
	case VectorAccess:
		fmt.Fprintf(&b, "%s[%s]", n.Child(0).Name(), reconstruct(n.Child(1)))
	case Unop, IO, Return:
		fmt.Fprintf(&b, "%s %s", n.Name(), reconstruct(n.Child(0)))
	case Binop, InitVariable, AttribVariable, Shift:
		fmt.Fprintf(&b, "%s %s %s", reconstruct(n.Child(0)), n.Name(), reconstruct(n.Child(1)))
	case Ternop:
		fmt.Fprintf(&b, "%s ? %s : %s", reconstruct(n.Child(1)), reconstruct(n.Child(0)), reconstruct(n.Child(2)))
	case FunctionCall:
		fmt.Fprintf(&b, "%s( %s )", n.Name(), reconstruct(n.Child(0)))
	case If, While:
		fmt.Fprintf(&b, "%s ( %s ) ...", n.Name(), reconstruct(n.Child(0)))
	case For:
		fmt.Fprintf(&b, "%s ( %s : %s : %s ) ...", n.Name(),
			reconstruct(n.Child(0)), reconstruct(n.Child(1)), reconstruct(n.Child(2)))
	default:
		b.WriteString(n.Name())
	}
	if n.Next != nil {
		b.WriteString(", ")
		b.WriteString(n.Next.Reconstruct())
	}
	return b.String()
}
