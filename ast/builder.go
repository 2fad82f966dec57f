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
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ir"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

// MaxShift is the largest accepted shift amount.
const MaxShift = 16

// Builder constructs the annotated AST. Every constructor performs the
// semantic checks relevant to its node and, for nodes carrying a runtime
// value, generates the node's intermediate code. The first failed check
// aborts construction with a *lang.Error diagnostic.
//
// The builder owns the scope stack, the IR name bag, the batched variable
// list consumed by DeclareVariables, and the current- and main-function
// pointers read by the return and driver lowerings.
type Builder struct {
	Scopes *sym.Stack
	Names  *ir.Names

	function *sym.Symbol // function whose body is being built
	main     *sym.Symbol

	vars  []*sym.Symbol // symbols batched for bulk declaration
	inits []*Node       // initialization nodes batched for bulk typing
}

// NewBuilder creates a builder with a fresh global scope and name bag.
func NewBuilder() *Builder {
	return &Builder{
		Scopes: sym.NewStack(),
		Names:  ir.NewNames(),
	}
}

// CurrentFunction returns the symbol of the function being built, or nil
// at global scope.
func (b *Builder) CurrentFunction() *sym.Symbol { return b.function }

// Main returns the symbol of the main function, once declared.
func (b *Builder) Main() *sym.Symbol { return b.main }

// SCOPE MANAGEMENT

// EnterScope pushes a new scope. Entering a function body declares the
// parameter symbols batched by AddToVarList into the new scope, in order.
func (b *Builder) EnterScope() error {
	enteringFunction := b.Scopes.Depth() == 0
	b.Scopes.Enter()
	if enteringFunction {
		for _, p := range b.vars {
			if err := b.Scopes.Declare(p, false); err != nil {
				return err
			}
		}
		b.vars = nil
	}
	return nil
}

// LeaveScope pops the current scope. Leaving a function body clears the
// current-function pointer.
func (b *Builder) LeaveScope() {
	if b.Scopes.Depth() == 1 {
		b.function = nil
	}
	b.Scopes.Leave()
}

// SYMBOL TABLE MANAGEMENT

// DeclareSymbol inserts a symbol into the active scope, or into the global
// one when globally is set.
func (b *Builder) DeclareSymbol(s *sym.Symbol, globally bool) error {
	return b.Scopes.Declare(s, globally)
}

// AddToVarList batches a symbol for bulk declaration and, when this is an
// initialization, the node to be type checked once the declared type is
// known.
func (b *Builder) AddToVarList(s *sym.Symbol, init *Node) {
	b.vars = append(b.vars, s)
	if init != nil {
		b.inits = append(b.inits, init)
	}
}

// DeclareVariables consumes the batched variable list: each symbol gets
// the given type and is declared in the active scope, and any batched
// initialization of it is checked for assignment compatibility, including
// string length against the declared size. Matching initializations are
// then typed and lowered.
func (b *Builder) DeclareVariables(t lang.Type) error {
	for _, s := range b.vars {
		s.SetType(t)
		if err := b.Scopes.Declare(s, false); err != nil {
			return err
		}
		for _, init := range b.inits {
			if init.Child(0).Name() != s.Name() {
				continue
			}
			rval := init.Child(1)
			if !lang.Compatible(t, rval.Type) {
				return lang.Errorf(lang.ErrWrongType, init.Line(),
					"lval has type %s but rval has type %s: %s", t, rval.Type, init.Reconstruct())
			}
			if t == lang.String {
				size := 0
				if rval.Lexval.Category == lang.Literal {
					size = len(rval.Lexval.Text())
				} else {
					rsym, err := b.GetSymbol(rval.Lexval)
					if err != nil {
						return err
					}
					size = rsym.Size
				}
				if !s.UpdateSize(size) {
					return lang.Errorf(lang.ErrStringSize, init.Line(),
						"%q holds %d characters but is given %d: %s", s.Name(), s.Count, size, init.Reconstruct())
				}
			}
			init.Child(0).Type = t
			init.Type = t
			if err := init.genCode(b); err != nil {
				return err
			}
		}
	}
	b.vars = nil
	b.inits = nil
	return nil
}

// DeclareFunction declares a function symbol with the given return type in
// the global table and attaches the batched parameter symbols, in order,
// as its parameter list. The batched list is left in place: EnterScope
// consumes it when the body scope opens.
func (b *Builder) DeclareFunction(id *Node, ret lang.Type) error {
	s := sym.New(id.Lexval, sym.Function, ret, 1, true)
	if err := b.Scopes.Declare(s, true); err != nil {
		return err
	}
	for _, p := range b.vars {
		s.AddParameter(p)
	}
	b.function = s
	return nil
}

// GetSymbol looks a lexical value up through the scope stack. Only absent
// literals return nil without error.
func (b *Builder) GetSymbol(lv *lang.Lexval) (*sym.Symbol, error) {
	return b.Scopes.Lookup(lv)
}

// OPERAND NODES

// CreateDeclaration builds a bare node with no symbol-table effects and no
// code; declaration happens later through DeclareVariables, and call or
// function-declaration constructors adopt the node afterwards.
func (b *Builder) CreateDeclaration(lv *lang.Lexval, typ lang.Type, kind Kind) *Node {
	return NewNode(lv, typ, kind, true)
}

// CreateID builds a node for an identifier reference. The identifier's
// type comes from the symbol table; missing identifiers are fatal.
func (b *Builder) CreateID(lv *lang.Lexval, kind Kind, lval bool) (*Node, error) {
	s, err := b.GetSymbol(lv)
	if err != nil {
		return nil, err
	}
	n := NewNode(lv, s.Type, kind, lval)
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateLiteral builds a node for a literal. The literal's first
// occurrence inserts a symbol of nature None into the global table so the
// data segment can emit it; later occurrences only refresh the recorded
// line.
func (b *Builder) CreateLiteral(lv *lang.Lexval, typ lang.Type) (*Node, error) {
	s, err := b.GetSymbol(lv)
	if err != nil {
		return nil, err
	}
	if s != nil {
		s.Line = lv.Line
	} else {
		count := 1
		if typ == lang.String {
			count = 0
		}
		s = sym.New(lv, sym.None, typ, count, true)
		if err := b.Scopes.Declare(s, true); err != nil {
			return nil, err
		}
	}
	n := NewNode(lv, typ, Operand, false)
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateCommand builds a node from raw token data, used for keywords and
// operators that have no scanner-produced lexical value of their own.
func (b *Builder) CreateCommand(cat lang.Category, name string, typ lang.Type, kind Kind, line int) *Node {
	return NewNode(lang.NameLexval(line, cat, name), typ, kind, true)
}

// INSTRUCTION NODES

// CreateIf builds an if (or if-else) command. The condition must be
// bool-compatible; branches stay attached as children so NextCmd threading
// remains unambiguous.
func (b *Builder) CreateIf(condition, then, els *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "if", lang.NA, If, condition.Line())
	n.InsertChild(condition)
	n.InsertChild(then)
	n.InsertChild(els)
	if err := b.checkID(condition); err != nil {
		return nil, err
	}
	if err := b.checkCompatibility(lang.Bool, condition.Type, n); err != nil {
		return nil, err
	}
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateFor builds a for command from its four parts, in order:
// initial attribution, stop condition, loop attribution and body.
func (b *Builder) CreateFor(init, condition, loop, body *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "for", lang.NA, For, init.Line())
	n.InsertChild(init)
	n.InsertChild(condition)
	n.InsertChild(loop)
	n.InsertChild(body)
	if err := b.checkID(condition); err != nil {
		return nil, err
	}
	if err := b.checkCompatibility(lang.Bool, condition.Type, n); err != nil {
		return nil, err
	}
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateWhile builds a while command.
func (b *Builder) CreateWhile(condition, body *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "while", lang.NA, While, condition.Line())
	n.InsertChild(condition)
	n.InsertChild(body)
	if err := b.checkID(condition); err != nil {
		return nil, err
	}
	if err := b.checkCompatibility(lang.Bool, condition.Type, n); err != nil {
		return nil, err
	}
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateVectorAccess builds an indexed vector access. The identifier must
// name a vector and the index must be int-compatible; the node's type is
// the vector's element type. The access is built in l-value position and
// flipped by SetRval when it turns out to be read.
func (b *Builder) CreateVectorAccess(id, index *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "[]", lang.Any, VectorAccess, id.Line())
	n.InsertChild(id)
	n.InsertChild(index)
	if err := b.checkID(n); err != nil {
		return nil, err
	}
	if err := b.checkCompatibility(lang.Int, index.Type, n); err != nil {
		return nil, err
	}
	s, err := b.GetSymbol(id.Lexval)
	if err != nil {
		return nil, err
	}
	n.Type = s.Type
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateInput builds an input command. The argument must be a writable
// identifier of an int- or float-compatible type.
func (b *Builder) CreateInput(id *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "input", lang.NA, IO, id.Line())
	n.InsertChild(id)
	if err := b.checkID(id); err != nil {
		return nil, err
	}
	if id.Lexval.Category != lang.Identifier {
		return nil, lang.Errorf(lang.ErrWrongParamInput, id.Line(),
			"input expects a variable, got %q", id.Name())
	}
	if err := b.checkIONumeric(id, lang.ErrWrongParamInput); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateOutput builds an output command. The argument must be int- or
// float-compatible.
func (b *Builder) CreateOutput(out *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "output", lang.NA, IO, out.Line())
	n.InsertChild(out)
	if err := b.checkID(out); err != nil {
		return nil, err
	}
	if err := b.checkIONumeric(out, lang.ErrWrongParamOutput); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateBreak builds a break command.
func (b *Builder) CreateBreak(line int) *Node {
	return b.CreateCommand(lang.Reserved, "break", lang.NA, BreakContinue, line)
}

// CreateContinue builds a continue command.
func (b *Builder) CreateContinue(line int) *Node {
	return b.CreateCommand(lang.Reserved, "continue", lang.NA, BreakContinue, line)
}

// CreateReturn builds a return command. The returned expression must be
// compatible with the current function's return type.
func (b *Builder) CreateReturn(retval *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "return", retval.Type, Return, retval.Line())
	n.InsertChild(retval)
	if err := b.checkID(retval); err != nil {
		return nil, err
	}
	if b.function != nil && !lang.Compatible(b.function.Type, retval.Type) {
		return nil, lang.Errorf(lang.ErrWrongParamReturn, retval.Line(),
			"function %q returns %s, cannot return %s: %s",
			b.function.Name(), b.function.Type, retval.Type, n.Reconstruct())
	}
	if err := n.genCode(b); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateShift builds a shift command: the identifier shifted in place by a
// literal amount. Amounts above MaxShift are rejected.
func (b *Builder) CreateShift(id, op, amount *Node) (*Node, error) {
	op.Kind = Shift
	op.InsertChild(id)
	op.InsertChild(amount)
	op.Type = id.Type
	if err := b.checkID(id); err != nil {
		return nil, err
	}
	if amount.Lexval.Int > MaxShift {
		return nil, lang.Errorf(lang.ErrWrongParamShift, op.Line(),
			"expected shift amount up to %d but got %d: %s", MaxShift, amount.Lexval.Int, op.Reconstruct())
	}
	if err := op.genCode(b); err != nil {
		return nil, err
	}
	return op, nil
}

// CreateAttribution builds an attribution command. Lval and rval types
// must be compatible; string attributions additionally check the rval's
// computed length against the lval's declared size, sizing a still
// unsized string on first assignment.
func (b *Builder) CreateAttribution(lval, op, rval *Node) (*Node, error) {
	op.Kind = AttribVariable
	op.InsertChild(lval)
	op.InsertChild(rval)
	op.Type = lval.Type
	if err := b.checkID(lval); err != nil {
		return nil, err
	}
	if err := b.checkID(rval); err != nil {
		return nil, err
	}
	if !lang.Compatible(lval.Type, rval.Type) {
		return nil, b.conversionError(lval.Type, rval.Type, op)
	}
	if lval.Type == lang.String {
		lsym, err := b.GetSymbol(lval.Lexval)
		if err != nil {
			return nil, err
		}
		size, err := b.stringSize(rval)
		if err != nil {
			return nil, err
		}
		if !lsym.UpdateSize(size) {
			return nil, lang.Errorf(lang.ErrStringSize, op.Line(),
				"%q holds %d characters but is given %d: %s", lsym.Name(), lsym.Count, size, op.Reconstruct())
		}
	}
	if err := op.genCode(b); err != nil {
		return nil, err
	}
	return op, nil
}

// CreateInitialization builds a variable initialization. No type checks
// run here: the declared type is not known until DeclareVariables consumes
// the batch this node is saved into.
func (b *Builder) CreateInitialization(lval, op, rval *Node) (*Node, error) {
	op.Kind = InitVariable
	op.InsertChild(lval)
	op.InsertChild(rval)
	if err := b.checkID(rval); err != nil {
		return nil, err
	}
	return op, nil
}

// CreateUnop builds a unary operation.
func (b *Builder) CreateUnop(op, operand *Node) (*Node, error) {
	op.Kind = Unop
	op.InsertChild(operand)
	if err := b.checkID(operand); err != nil {
		return nil, err
	}
	if err := b.checkCompatibility(op.Type, operand.Type, op); err != nil {
		return nil, err
	}
	op.Type = lang.Infer(op.Type, operand.Type)
	if err := op.genCode(b); err != nil {
		return nil, err
	}
	return op, nil
}

// CreateBinop builds a binary operation, or completes a ternary started by
// CreateTernop when op is the partially built ?: node (left operand is the
// condition, right operand the else branch).
func (b *Builder) CreateBinop(l, op, r *Node) (*Node, error) {
	op.InsertChild(l)
	op.InsertChild(r)
	if err := b.checkID(l); err != nil {
		return nil, err
	}
	if err := b.checkID(r); err != nil {
		return nil, err
	}
	if op.Kind == Ternop {
		if err := b.checkCompatibility(lang.Bool, l.Type, op); err != nil {
			return nil, err
		}
		if err := b.checkCompatibility(op.Child(0).Type, r.Type, op); err != nil {
			return nil, err
		}
		op.Type = lang.Infer(op.Child(0).Type, r.Type)
	} else {
		op.Kind = Binop
		if err := b.checkCompatibility(l.Type, r.Type, op); err != nil {
			return nil, err
		}
		if err := b.checkCompatibility(lang.Infer(l.Type, r.Type), op.Type, op); err != nil {
			return nil, err
		}
		op.Type = lang.Infer(l.Type, r.Type)
	}
	if err := op.genCode(b); err != nil {
		return nil, err
	}
	return op, nil
}

// CreateTernop partially builds a ternary operation around its then
// branch. CreateBinop finishes it with the condition and else branch.
func (b *Builder) CreateTernop(then *Node) (*Node, error) {
	n := b.CreateCommand(lang.Reserved, "?:", lang.Any, Ternop, then.Line())
	n.InsertChild(then)
	if err := b.checkID(then); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateFunctionDeclaration finishes a function declaration: the body
// becomes the first child and the prologue/epilogue code is generated.
// Must run while the body scope is still active, so the frame size is
// known.
func (b *Builder) CreateFunctionDeclaration(id, body *Node) (*Node, error) {
	id.InsertChild(body)
	if err := id.genCode(b); err != nil {
		return nil, err
	}
	return id, nil
}

// CreateFunctionCall builds a call. Arity and per-argument types are
// checked against the function's parameter list; the node's type becomes
// the function's return type.
func (b *Builder) CreateFunctionCall(id, args *Node) (*Node, error) {
	id.InsertChild(args)
	id.Kind = FunctionCall
	if err := b.checkID(id); err != nil {
		return nil, err
	}
	s, err := b.GetSymbol(id.Lexval)
	if err != nil {
		return nil, err
	}
	id.Type = s.Type
	if err := b.checkArguments(id, s); err != nil {
		return nil, err
	}
	if err := id.genCode(b); err != nil {
		return nil, err
	}
	return id, nil
}

// CHECKS

// checkID verifies that an identifier, vector access or function call node
// uses its symbol according to the symbol's declared nature.
func (b *Builder) checkID(n *Node) error {
	var lv *lang.Lexval
	var want sym.Nature
	switch n.Kind {
	case Operand:
		lv, want = n.Lexval, sym.Identifier
	case FunctionCall:
		lv, want = n.Lexval, sym.Function
	case VectorAccess:
		lv, want = n.Child(0).Lexval, sym.Vector
	default:
		return nil
	}
	if lv.Category != lang.Identifier {
		return nil
	}
	s, err := b.GetSymbol(lv)
	if err != nil {
		return err
	}
	if s.Nature != want {
		var kind lang.ErrKind
		switch s.Nature {
		case sym.Vector:
			kind = lang.ErrWrongUsageVector
		case sym.Function:
			kind = lang.ErrWrongUsageFunction
		default:
			kind = lang.ErrWrongUsageVariable
		}
		return lang.Errorf(kind, n.Line(),
			"%q is a %s, used as a %s: %s", s.Name(), s.Nature, want, n.Reconstruct())
	}
	return nil
}

// conversionError picks the diagnostic kind for an incompatible pair:
// string and char conversions have dedicated kinds, everything else is the
// generic type error.
func (b *Builder) conversionError(t1, t2 lang.Type, n *Node) error {
	kind := lang.ErrWrongType
	switch {
	case t1 == lang.String || t2 == lang.String:
		kind = lang.ErrStringToX
	case t1 == lang.Char || t2 == lang.Char:
		kind = lang.ErrCharToX
	}
	return lang.Errorf(kind, n.Line(), "cannot convert between %s and %s: %s", t1, t2, n.Reconstruct())
}

// checkCompatibility fails with a conversion diagnostic when the two types
// cannot appear together.
func (b *Builder) checkCompatibility(t1, t2 lang.Type, n *Node) error {
	if !lang.Compatible(t1, t2) {
		return b.conversionError(t1, t2, n)
	}
	return nil
}

// checkIONumeric enforces the int-or-float contract of input and output
// arguments.
func (b *Builder) checkIONumeric(n *Node, kind lang.ErrKind) error {
	if lang.Compatible(n.Type, lang.Int) || lang.Compatible(n.Type, lang.Float) {
		return nil
	}
	return lang.Errorf(kind, n.Line(),
		"expected int- or float-compatible argument, got %s: %s", n.Type, n.Reconstruct())
}

// checkArguments matches a call's argument list against the function's
// parameters: first arity, then per-argument compatibility.
func (b *Builder) checkArguments(call *Node, fn *sym.Symbol) error {
	argc := 0
	for a := call.Child(0); a != nil; a = a.Next {
		argc++
	}
	switch {
	case argc > len(fn.Params):
		return lang.Errorf(lang.ErrExcessArgs, call.Line(),
			"%q takes %d arguments but %d were given: %s", fn.Name(), len(fn.Params), argc, call.Reconstruct())
	case argc < len(fn.Params):
		return lang.Errorf(lang.ErrMissingArgs, call.Line(),
			"%q takes %d arguments but %d were given: %s", fn.Name(), len(fn.Params), argc, call.Reconstruct())
	}
	at := 0
	for a := call.Child(0); a != nil; a = a.Next {
		if !lang.Compatible(a.Type, fn.Params[at].Type) {
			return lang.Errorf(lang.ErrWrongTypeArgs, call.Line(),
				"argument %d of %q has type %s, expected %s: %s",
				at, fn.Name(), a.Type, fn.Params[at].Type, call.Reconstruct())
		}
		at++
	}
	return nil
}

// stringSize computes the length of the string produced by an expression
// without evaluating it: literals contribute their spelling, identifiers
// their declared size, and concatenations the sum of their sides.
func (b *Builder) stringSize(n *Node) (int, error) {
	switch n.Kind {
	case Operand:
		if n.Lexval.Category == lang.Literal {
			return len(n.Lexval.Text()), nil
		}
		s, err := b.GetSymbol(n.Lexval)
		if err != nil {
			return 0, err
		}
		return s.Size, nil
	case Binop:
		left, err := b.stringSize(n.Child(0))
		if err != nil {
			return 0, err
		}
		right, err := b.stringSize(n.Child(1))
		if err != nil {
			return 0, err
		}
		return left + right, nil
	default:
		return 0, nil
	}
}
