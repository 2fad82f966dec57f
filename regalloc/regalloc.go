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

package regalloc

import (
	"github.com/pkg/errors"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
)

// RegCount is the physical register budget per function, and the index of
// the first numbered x86-64 register the colours map onto (%r8 through
// %r15).
const RegCount = 8

// Boundary reports whether an instruction starts the next function, ending
// the region the allocator may walk. A nil instruction always bounds.
type Boundary func(*ir.Instr) bool

// Allocate runs the liveness analysis over one function's instruction
// chain, builds its interference graph and colours it. It returns the
// temp-to-register map, or an error when the colouring does not fit the
// budget of k registers.
//
// Liveness is computed in a single forward walk: a temp's first encounter
// marks it live-out of that instruction, which propagates it into every
// following instruction; after the walk the temp is removed again from its
// recorded last use onward, trimming the range to [first use, last use).
func Allocate(first *ir.Instr, boundary Boundary, k int) (map[*string]string, error) {
	var temps []*string
	lastUse := make(map[*string]*ir.Instr)

	for cur := first; !bounds(boundary, cur); cur = cur.Next {
		for _, t := range cur.Temps() {
			if _, seen := lastUse[t]; seen {
				lastUse[t] = cur
				continue
			}
			lastUse[t] = cur
			temps = append(temps, t)
			cur.AddLiveOut(t)
		}
	}

	for _, t := range temps {
		lastUse[t].RemoveLiveOut(t)
	}

	g := interferenceGraph(first, boundary, temps)
	if !g.Minimize(k) {
		return nil, errors.Errorf("function needs %d registers but only %d are available",
			g.UsedColors(), k)
	}
	return g.Mapping(RegCount), nil
}

// interferenceGraph builds the register-interference graph for a
// liveness-annotated instruction sequence: one vertex per temp, one edge
// per pair of temporaries simultaneously live at some instruction.
func interferenceGraph(first *ir.Instr, boundary Boundary, temps []*string) *Graph {
	g := NewGraph()
	for _, t := range temps {
		g.AddVertex(t)
	}
	for cur := first; !bounds(boundary, cur); cur = cur.Next {
		live := cur.Live()
		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				g.AddEdge(live[i], live[j])
			}
		}
	}
	return g
}

func bounds(boundary Boundary, i *ir.Instr) bool {
	if i == nil {
		return true
	}
	return boundary != nil && boundary(i)
}
