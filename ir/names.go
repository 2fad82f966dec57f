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

package ir

import "strconv"

// Names is the bag owning every generated register, label and hole name,
// plus the literal spellings referenced by instructions. Appending is the
// only mutation besides patching, and instructions only ever hold pointers
// into the bag, so chains may freely share them.
type Names struct {
	registers int
	labels    int
	holes     int

	owned []*string
}

// NewNames creates an empty name bag.
func NewNames() *Names {
	return &Names{}
}

func (n *Names) keep(s string) *string {
	p := new(string)
	*p = s
	n.owned = append(n.owned, p)
	return p
}

// Register returns a fresh temporary register name rN.
func (n *Names) Register() *string {
	p := n.keep("r" + strconv.Itoa(n.registers))
	n.registers++
	return p
}

// Label returns a fresh label name LN.
func (n *Names) Label() *string {
	p := n.keep("L" + strconv.Itoa(n.labels))
	n.labels++
	return p
}

// Hole returns a fresh back-patch hole HN: a label placeholder whose value
// is rewritten by Patch once the target is known. Each hole must be used as
// a patch target exactly once.
func (n *Names) Hole() *string {
	p := n.keep("H" + strconv.Itoa(n.holes))
	n.holes++
	return p
}

// Base returns the base register for addressing a symbol: rbss for globals,
// rfp for frame locals.
func (n *Names) Base(global bool) *string {
	if global {
		return n.keep("rbss")
	}
	return n.keep("rfp")
}

// Lit interns an arbitrary spelling (a literal value, an offset, or a
// reserved register name) in the bag.
func (n *Names) Lit(s string) *string {
	return n.keep(s)
}

// Int interns the decimal spelling of v.
func (n *Names) Int(v int) *string {
	return n.keep(strconv.Itoa(v))
}

// Patch rewrites every hole in the list to the given label. The rewrite is
// in place: all instructions holding one of the hole pointers observe the
// new label.
func Patch(holes []*string, label *string) {
	for _, h := range holes {
		*h = *label
	}
}
