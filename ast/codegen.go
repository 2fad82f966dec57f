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

package ast

import (
	"github.com/pkg/errors"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

// Frame layout constants, in units of size(int) bytes: slots 0, 4 and 8
// hold the return address, the caller's rsp and the caller's rfp; the
// parameter area follows, then the return-value slot, then locals.
const (
	intSize    = 4
	frameMeta  = 3 * intSize
	callFixedK = 5 // instructions from the rpc read to past the jump, zero-arg call
)

var arithmeticOps = map[string]ir.Opcode{
	"+": ir.Add,
	"-": ir.Sub,
	"*": ir.Mult,
	"/": ir.Div,
}

var logicOps = map[string]ir.Opcode{
	"<":  ir.CmpLT,
	"<=": ir.CmpLE,
	"==": ir.CmpEQ,
	">=": ir.CmpGE,
	">":  ir.CmpGT,
	"!=": ir.CmpNE,
	"&&": ir.And,
	"||": ir.Or,
}

func isLogic(n *Node) bool {
	_, ok := logicOps[n.Name()]
	return ok
}

// genCode generates the node's intermediate code according to its kind.
func (n *Node) genCode(b *Builder) error {
	var err error
	switch n.Kind {
	case Operand:
		if n.Lexval.Category == lang.Literal {
			n.genLiteral(b)
			return nil
		}
		if n.lval {
			err = n.genLvalVariable(b)
		} else {
			err = n.genRvalVariable(b)
		}
	case VectorAccess:
		if n.lval {
			err = n.genLvalVector(b)
		} else {
			err = n.genRvalVector(b)
		}
	case InitVariable, AttribVariable:
		err = n.genStore(b)
	case Unop:
		err = n.genUnop(b)
	case Binop:
		err = n.genBinop(b)
	case Ternop:
		err = n.genTernop(b)
	case If:
		if len(n.Children) == 2 {
			n.genIf(b)
		} else {
			n.genIfElse(b)
		}
	case For:
		n.genFor(b)
	case While:
		n.genWhile(b)
	case Shift:
		op := ir.Rshift
		if n.Name() == "<<" {
			op = ir.Lshift
		}
		n.genShift(b, op)
	case FunctionCall:
		err = n.genFunctionCall(b)
	case FunctionDeclaration:
		err = n.genFunctionDeclaration(b)
	case Return:
		err = n.genReturn(b)
	case IO, BreakContinue:
		// no lowering
	}
	return err
}

// branchCode returns a child's code chain, substituting a nop for empty
// blocks so labels always have an instruction to land on.
func branchCode(n *Node) *ir.Instr {
	if n == nil || n.code == nil {
		return ir.New(ir.Nop)
	}
	return n.Code()
}

// genLiteral loads a literal as an immediate.
func (n *Node) genLiteral(b *Builder) {
	t1 := b.Names.Register()
	n.code = ir.New(ir.LoadI, b.Names.Lit(n.Lexval.Text()), t1)
	n.setTemp(t1)
	n.setValue()
}

// genLvalVariable computes a variable's address: addI base, offset => t1
// with the base register picked by the symbol's global status.
func (n *Node) genLvalVariable(b *Builder) error {
	s, err := b.GetSymbol(n.Lexval)
	if err != nil {
		return err
	}
	t1 := b.Names.Register()
	n.code = ir.New(ir.AddI, b.Names.Base(s.Global), b.Names.Int(s.Offset), t1)
	n.setTemp(t1)
	n.setAddress()
	return nil
}

// genRvalVariable computes the address and loads the value through it.
func (n *Node) genRvalVariable(b *Builder) error {
	if err := n.genLvalVariable(b); err != nil {
		return err
	}
	n.code.Append(ir.New(ir.Load, n.temp, n.temp))
	n.setValue()
	return nil
}

// genLvalVector computes the address of an indexed vector element:
// index code; addI rbss, base => t2; multI ti, w => t3; add t2, t3 => t4.
func (n *Node) genLvalVector(b *Builder) error {
	vec, err := b.GetSymbol(n.Child(0).Lexval)
	if err != nil {
		return err
	}
	index := n.Child(1)
	t2 := b.Names.Register()
	t3 := b.Names.Register()
	t4 := b.Names.Register()

	code := index.Code()
	code.Append(ir.New(ir.AddI, b.Names.Lit("rbss"), b.Names.Int(vec.Offset), t2))
	code.Append(ir.New(ir.MultI, index.Temp(), b.Names.Int(vec.Type.Size()), t3))
	code.Append(ir.New(ir.Add, t2, t3, t4))

	n.code = code
	n.setTemp(t4)
	n.setAddress()
	return nil
}

// genRvalVector computes the element address and loads through it.
func (n *Node) genRvalVector(b *Builder) error {
	if err := n.genLvalVector(b); err != nil {
		return err
	}
	n.code.Append(ir.New(ir.Load, n.temp, n.temp))
	n.setValue()
	return nil
}

// genStore lowers initializations and attributions: lval address code,
// rval code, store. A logic rval is first materialized into a register by
// patching its true and false lists into a {loadI 1; jumpI; loadI 0; nop}
// conversion block.
func (n *Node) genStore(b *Builder) error {
	lval, rval := n.Child(0), n.Child(1)
	if n.Kind == InitVariable {
		// the lval identifier could not be lowered before its declaration
		// assigned it a type and an offset
		if err := lval.genCode(b); err != nil {
			return err
		}
	}
	code := lval.Code()
	code.Append(rval.Code())

	t1 := lval.Temp()
	var t2 *string
	if isLogic(rval) {
		t2 = b.Names.Register()
		code.Append(boolToValue(b, rval, t2))
	} else {
		t2 = rval.Temp()
	}
	code.Append(ir.New(ir.Store, t2, t1))
	n.code = code
	return nil
}

// boolToValue builds the conversion block materializing a logic
// expression's outcome in t: its true list lands on loadI 1, its false
// list on loadI 0, and both fall through to a labelled nop.
func boolToValue(b *Builder, logic *Node, t *string) *ir.Instr {
	l1 := b.Names.Label()
	l2 := b.Names.Label()
	l3 := b.Names.Label()

	loadTrue := ir.New(ir.LoadI, b.Names.Int(1), t)
	jumpEnd := ir.New(ir.JumpI, l3)
	loadFalse := ir.New(ir.LoadI, b.Names.Int(0), t)
	nop := ir.New(ir.Nop)
	loadTrue.SetLabel(l1)
	loadFalse.SetLabel(l2)
	nop.SetLabel(l3)

	ir.Patch(logic.TrueList(), l1)
	ir.Patch(logic.FalseList(), l2)
	logic.ClearTrueList()
	logic.ClearFalseList()

	loadTrue.Append(jumpEnd)
	jumpEnd.Append(loadFalse)
	loadFalse.Append(nop)
	return loadTrue
}

// genUnop lowers ! by swapping the operand's true and false lists, and
// unary - as a reverse subtraction from zero.
func (n *Node) genUnop(b *Builder) error {
	operand := n.Child(0)
	switch n.Name() {
	case "!":
		n.code = operand.Code()
		n.trueList = operand.FalseList()
		n.falseList = operand.TrueList()
	case "-":
		t2 := b.Names.Register()
		code := operand.Code()
		code.Append(ir.New(ir.RsubI, operand.Temp(), b.Names.Int(0), t2))
		n.code = code
		n.setTemp(t2)
		n.setValue()
	}
	return nil
}

// genBinop dispatches between the arithmetic and logic lowerings.
func (n *Node) genBinop(b *Builder) error {
	if op, ok := arithmeticOps[n.Name()]; ok {
		n.genArithmetic(b, op)
		return nil
	}
	if op, ok := logicOps[n.Name()]; ok {
		switch op {
		case ir.And:
			n.genAnd(b)
		case ir.Or:
			n.genOr(b)
		default:
			n.genComparison(b, op)
		}
		return nil
	}
	return errors.Errorf("operation is neither arithmetic nor logic: %s", n.Name())
}

// genArithmetic lowers an arithmetic binop: left code, right code,
// op tl, tr => t3.
func (n *Node) genArithmetic(b *Builder, op ir.Opcode) {
	l, r := n.Child(0), n.Child(1)
	t3 := b.Names.Register()
	code := l.Code()
	code.Append(r.Code())
	code.Append(ir.New(op, l.Temp(), r.Temp(), t3))
	n.code = code
	n.setTemp(t3)
	n.setValue()
}

// genComparison lowers a comparison: op tl, tr => t3; cbr t3 -> H1, H2,
// seeding the node's true and false lists with fresh holes.
func (n *Node) genComparison(b *Builder, op ir.Opcode) {
	l, r := n.Child(0), n.Child(1)
	h1 := b.Names.Hole()
	h2 := b.Names.Hole()
	t3 := b.Names.Register()

	code := l.Code()
	code.Append(r.Code())
	code.Append(ir.New(op, l.Temp(), r.Temp(), t3))
	code.Append(ir.New(ir.Cbr, t3, h1, h2))

	n.trueList = append(n.trueList, h1)
	n.falseList = append(n.falseList, h2)
	n.code = code
	n.setTemp(t3)
	n.setValue()
}

// genAnd lowers short-circuit &&: the left operand's true list is patched
// to a fresh label opening the right operand's code; the node keeps the
// right's true list and the union of both false lists.
func (n *Node) genAnd(b *Builder) {
	l, r := n.Child(0), n.Child(1)
	l1 := b.Names.Label()

	ir.Patch(l.TrueList(), l1)
	l.ClearTrueList()
	n.trueList = r.TrueList()
	n.falseList = append(append([]*string{}, l.FalseList()...), r.FalseList()...)

	lcode := l.Code()
	rcode := r.Code()
	rcode.SetLabel(l1)
	lcode.Append(rcode)
	n.code = lcode
}

// genOr lowers short-circuit ||, symmetrically on the false lists.
func (n *Node) genOr(b *Builder) {
	l, r := n.Child(0), n.Child(1)
	l1 := b.Names.Label()

	ir.Patch(l.FalseList(), l1)
	l.ClearFalseList()
	n.falseList = r.FalseList()
	n.trueList = append(append([]*string{}, l.TrueList()...), r.TrueList()...)

	lcode := l.Code()
	rcode := r.Code()
	rcode.SetLabel(l1)
	lcode.Append(rcode)
	n.code = lcode
}

// genTernop lowers ?: by patching the condition into the two arms,
// materializing logic arms into values, copying the taken arm's result
// into a shared temporary and joining at a labelled nop. Children are
// ordered [then, condition, else].
func (n *Node) genTernop(b *Builder) error {
	then, cond, els := n.Child(0), n.Child(1), n.Child(2)

	t3 := b.Names.Register()
	l1 := b.Names.Label()
	l2 := b.Names.Label()
	l3 := b.Names.Label()

	ir.Patch(cond.TrueList(), l1)
	ir.Patch(cond.FalseList(), l2)
	cond.ClearTrueList()
	cond.ClearFalseList()

	condCode := cond.Code()
	thenCode := then.Code()
	elseCode := els.Code()

	var t1, t2 *string
	var thenConv, elseConv *ir.Instr
	if isLogic(then) {
		t1 = b.Names.Register()
		thenConv = boolToValue(b, then, t1)
	} else {
		t1 = then.Temp()
	}
	if isLogic(els) {
		t2 = b.Names.Register()
		elseConv = boolToValue(b, els, t2)
	} else {
		t2 = els.Temp()
	}

	copyThen := ir.New(ir.I2I, t1, t3)
	jumpExit := ir.New(ir.JumpI, l3)
	copyElse := ir.New(ir.I2I, t2, t3)
	nop := ir.New(ir.Nop)

	thenCode.SetLabel(l1)
	elseCode.SetLabel(l2)
	nop.SetLabel(l3)

	code := condCode
	code.Append(thenCode)
	code.Append(thenConv)
	code.Append(copyThen)
	code.Append(jumpExit)
	code.Append(elseCode)
	code.Append(elseConv)
	code.Append(copyElse)
	code.Append(nop)

	n.code = code
	n.setTemp(t3)
	n.setValue()
	return nil
}

// genIf lowers an if without else: the condition's true list lands on the
// then code, the false list on the trailing labelled nop.
func (n *Node) genIf(b *Builder) {
	cond := n.Child(0)
	l1 := b.Names.Label()
	l2 := b.Names.Label()

	ir.Patch(cond.TrueList(), l1)
	ir.Patch(cond.FalseList(), l2)
	cond.ClearTrueList()
	cond.ClearFalseList()

	code := cond.Code()
	thenCode := branchCode(n.Child(1))
	nop := ir.New(ir.Nop)
	thenCode.SetLabel(l1)
	nop.SetLabel(l2)
	code.Append(thenCode)
	code.Append(nop)
	n.code = code
}

// genIfElse lowers an if-else: then and else blocks get the condition's
// labels, a jump between them skips the else, and a labelled nop joins.
func (n *Node) genIfElse(b *Builder) {
	cond := n.Child(0)
	l1 := b.Names.Label()
	l2 := b.Names.Label()
	l3 := b.Names.Label()

	ir.Patch(cond.TrueList(), l1)
	ir.Patch(cond.FalseList(), l2)
	cond.ClearTrueList()
	cond.ClearFalseList()

	code := cond.Code()
	thenCode := branchCode(n.Child(1))
	elseCode := branchCode(n.Child(2))
	jumpExit := ir.New(ir.JumpI, l3)
	nop := ir.New(ir.Nop)
	thenCode.SetLabel(l1)
	elseCode.SetLabel(l2)
	nop.SetLabel(l3)

	code.Append(thenCode)
	code.Append(jumpExit)
	code.Append(elseCode)
	code.Append(nop)
	n.code = code
}

// genFor lowers a for: initial attribution, condition (loop-back label),
// body, loop attribution, jump back, labelled exit nop. Children are
// ordered [init, condition, loop, body].
func (n *Node) genFor(b *Builder) {
	cond := n.Child(1)
	l1 := b.Names.Label()
	l2 := b.Names.Label()
	l3 := b.Names.Label()

	ir.Patch(cond.TrueList(), l1)
	ir.Patch(cond.FalseList(), l2)
	cond.ClearTrueList()
	cond.ClearFalseList()

	code := branchCode(n.Child(0))
	condCode := cond.Code()
	bodyCode := branchCode(n.Child(3))
	loopCode := branchCode(n.Child(2))
	jumpBack := ir.New(ir.JumpI, l3)
	nop := ir.New(ir.Nop)

	condCode.SetLabel(l3)
	bodyCode.SetLabel(l1)
	nop.SetLabel(l2)

	code.Append(condCode)
	code.Append(bodyCode)
	code.Append(loopCode)
	code.Append(jumpBack)
	code.Append(nop)
	n.code = code
}

// genWhile lowers a while: condition (loop-back label), body, jump back,
// labelled exit nop.
func (n *Node) genWhile(b *Builder) {
	cond := n.Child(0)
	l1 := b.Names.Label()
	l2 := b.Names.Label()
	l3 := b.Names.Label()

	ir.Patch(cond.TrueList(), l1)
	ir.Patch(cond.FalseList(), l2)
	cond.ClearTrueList()
	cond.ClearFalseList()

	code := cond.Code()
	bodyCode := branchCode(n.Child(1))
	jumpBack := ir.New(ir.JumpI, l3)
	nop := ir.New(ir.Nop)

	code.SetLabel(l3)
	bodyCode.SetLabel(l1)
	nop.SetLabel(l2)

	code.Append(bodyCode)
	code.Append(jumpBack)
	code.Append(nop)
	n.code = code
}

// genShift lowers an in-place shift: compute the lval address and the
// amount, load, shift, store back.
func (n *Node) genShift(b *Builder, op ir.Opcode) {
	id, amount := n.Child(0), n.Child(1)
	t1 := id.Temp()
	t2 := amount.Temp()
	t3 := b.Names.Register()

	code := id.Code()
	code.Append(amount.Code())
	code.Append(ir.New(ir.Load, t1, t3))
	code.Append(ir.New(op, t3, t2, t3))
	code.Append(ir.New(ir.Store, t3, t1))
	n.code = code
}

// entryLabel returns the function symbol's entry label, minting one on
// first demand so calls lowered before the declaration's prologue (the
// function's own recursion included) share it.
func (b *Builder) entryLabel(fn *sym.Symbol) *string {
	if fn.Label == nil {
		fn.Label = b.Names.Label()
	}
	return fn.Label
}

// genFunctionDeclaration lowers a function: prologue establishing the
// frame, parameter mirroring into the local area, the body, and an
// artificial return 0 so every function ends with the canonical epilogue.
func (n *Node) genFunctionDeclaration(b *Builder) error {
	fn, err := b.GetSymbol(n.Lexval)
	if err != nil {
		return err
	}

	paramsSize := len(fn.Params) * intSize
	callOffset := frameMeta + paramsSize + intSize
	localSize := b.Scopes.Top().Cursor()

	rfp := b.Names.Lit("rfp")
	rsp := b.Names.Lit("rsp")
	l1 := b.entryLabel(fn)

	prologue := ir.New(ir.I2I, rsp, rfp)
	prologue.SetLabel(l1)
	prologue.Append(ir.New(ir.AddI, rsp, b.Names.Int(localSize), rsp))

	ti := b.Names.Register()
	loadOffset := frameMeta
	storeOffset := callOffset
	for range fn.Params {
		prologue.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(loadOffset), ti))
		prologue.Append(ir.New(ir.StoreAI, ti, rfp, b.Names.Int(storeOffset)))
		loadOffset += intSize
		storeOffset += intSize
	}

	if body := n.Child(0); body != nil {
		prologue.Append(body.Code())
	}

	if n.Name() == "main" {
		b.main = fn
	}

	// artificial return 0, in case the programmer left it out
	t1 := b.Names.Register()
	t2 := b.Names.Register()
	t3 := b.Names.Register()
	t4 := b.Names.Register()
	returnOffset := frameMeta + paramsSize

	prologue.Append(ir.New(ir.LoadI, b.Names.Int(0), t1))
	prologue.Append(ir.New(ir.StoreAI, t1, rfp, b.Names.Int(returnOffset)))
	prologue.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(0), t2))
	prologue.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(4), t3))
	prologue.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(8), t4))
	prologue.Append(ir.New(ir.I2I, t3, rsp))
	prologue.Append(ir.New(ir.I2I, t4, rfp))
	prologue.Append(ir.New(ir.Jump, t2))

	n.code = prologue
	return nil
}

// genFunctionCall lowers a call: compute the return address from rpc, save
// it and the machine state, stack the arguments into the callee's frame,
// jump, and read the return value back out of the callee's frame.
func (n *Node) genFunctionCall(b *Builder) error {
	fn, err := b.GetSymbol(n.Lexval)
	if err != nil {
		return err
	}
	l1 := b.entryLabel(fn)

	rfp := b.Names.Lit("rfp")
	rsp := b.Names.Lit("rsp")
	rpc := b.Names.Lit("rpc")
	t1 := b.Names.Register()

	returnOffset := frameMeta + len(fn.Params)*intSize
	returnAddrK := callFixedK
	paramOffset := frameMeta

	saveRsp := ir.New(ir.StoreAI, rsp, rsp, b.Names.Int(4))
	saveRsp.Append(ir.New(ir.StoreAI, rfp, rsp, b.Names.Int(8)))

	arg := n.Child(0)
	for range fn.Params {
		argCode := arg.Code()
		saveRsp.Append(argCode)
		saveRsp.Append(ir.New(ir.StoreAI, arg.Temp(), rsp, b.Names.Int(paramOffset)))
		returnAddrK += argCode.Len() + 1
		paramOffset += intSize
		arg = arg.Next
	}

	code := ir.New(ir.AddI, rpc, b.Names.Int(returnAddrK), t1)
	code.Append(ir.New(ir.StoreAI, t1, rsp, b.Names.Int(0)))
	code.Append(saveRsp)
	code.Append(ir.New(ir.JumpI, l1))
	code.Append(ir.New(ir.LoadAI, rsp, b.Names.Int(returnOffset), t1))

	n.code = code
	n.setTemp(t1)
	n.setValue()
	return nil
}

// genReturn lowers a return: the value is computed and saved into the
// frame's return slot, the caller's state is restored, and control jumps
// to the saved return address.
func (n *Node) genReturn(b *Builder) error {
	fn := b.CurrentFunction()
	if fn == nil {
		return errors.New("return outside of a function body")
	}
	expr := n.Child(0)

	rfp := b.Names.Lit("rfp")
	rsp := b.Names.Lit("rsp")
	t1 := expr.Temp()
	t2 := b.Names.Register()
	t3 := b.Names.Register()
	t4 := b.Names.Register()
	returnOffset := frameMeta + len(fn.Params)*intSize

	code := expr.Code()
	code.Append(ir.New(ir.StoreAI, t1, rfp, b.Names.Int(returnOffset)))
	code.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(0), t2))
	code.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(4), t3))
	code.Append(ir.New(ir.LoadAI, rfp, b.Names.Int(8), t4))
	code.Append(ir.New(ir.I2I, t3, rsp))
	code.Append(ir.New(ir.I2I, t4, rfp))
	code.Append(ir.New(ir.Jump, t2))
	n.code = code
	return nil
}

// AddDriverCode prepends the program prelude to the root's chain: the
// reserved registers are seeded, global literals are stored into the data
// segment, main is called the same way any function is, and a halt follows
// its return. The user's code comes after the halt.
func (b *Builder) AddDriverCode(root *Node) error {
	if b.main == nil {
		return errors.New("program has no main function")
	}

	rspStart := b.Scopes.Global().Cursor()
	rbssStart := 0

	rfp := b.Names.Lit("rfp")
	rsp := b.Names.Lit("rsp")
	rbss := b.Names.Lit("rbss")
	rpc := b.Names.Lit("rpc")
	t1 := b.Names.Register()
	t2 := b.Names.Register()

	code := ir.New(ir.LoadI, b.Names.Int(rspStart), rsp)
	code.Append(ir.New(ir.LoadI, b.Names.Int(rspStart), rfp))
	code.Append(ir.New(ir.LoadI, b.Names.Int(rbssStart), rbss))

	for _, s := range b.Scopes.Global().Symbols() {
		if s.Lexval.Category != lang.Literal {
			continue
		}
		code.Append(ir.New(ir.LoadI, b.Names.Lit(s.Lexval.Text()), t2))
		code.Append(ir.New(ir.StoreAI, t2, rbss, b.Names.Int(s.Offset)))
	}

	code.Append(ir.New(ir.AddI, rpc, b.Names.Int(callFixedK), t1))
	code.Append(ir.New(ir.StoreAI, t1, rsp, b.Names.Int(0)))
	code.Append(ir.New(ir.StoreAI, rsp, rsp, b.Names.Int(4)))
	code.Append(ir.New(ir.StoreAI, rfp, rsp, b.Names.Int(8)))
	code.Append(ir.New(ir.JumpI, b.main.Label))
	code.Append(ir.New(ir.Halt))

	code.Append(root.code)
	root.code = code
	return nil
}

// ExportCode renders the root's full instruction chain in ILOC syntax.
func ExportCode(root *Node) string {
	if root == nil || root.code == nil {
		return ""
	}
	return root.code.CodeString()
}

// RootCode exposes the root's chain (not a copy) to the assembly backend.
func RootCode(root *Node) *ir.Instr {
	return root.code
}
