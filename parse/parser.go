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

// Package parse implements the front end: a recursive-descent parser that
// tokenizes the source with text/scanner and drives the ast.Builder
// operations bottom-up.
//
// The accepted surface is a small C-like language: global variables and
// vectors, typed functions, local declarations with literal
// initialization, attribution with <=, input/output, in-place shifts,
// break/continue/return, if-then-else, for and while loops, ternary ?:,
// short-circuit && and ||, comparisons and the usual arithmetic.
package parse

import (
	"io"
	"strconv"
	"text/scanner"

	"github.com/pkg/errors"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ast"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

var types = map[string]lang.Type{
	"int":    lang.Int,
	"float":  lang.Float,
	"bool":   lang.Bool,
	"char":   lang.Char,
	"string": lang.String,
}

// composite two-character operators
var composite = map[string]bool{
	"<=": true, ">=": true, "==": true, "!=": true,
	"&&": true, "||": true, "<<": true, ">>": true,
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokChar
	tokString
	tokOp
)

// parser holds the scanning state and the builder being driven.
type parser struct {
	s scanner.Scanner
	b *ast.Builder

	kind tokenKind
	text string
	line int

	scanErr error // first tokenization error reported by the scanner
}

// Parse reads a whole program and returns the AST root (the first function
// declaration) together with the builder that owns its symbol tables. The
// name parameter is only used to report error positions.
func Parse(name string, r io.Reader) (*ast.Node, *ast.Builder, error) {
	p := &parser{b: ast.NewBuilder()}
	p.s.Init(r)
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanChars | scanner.ScanStrings | scanner.SkipComments | scanner.ScanComments
	p.s.Filename = name
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.scanErr == nil {
			p.scanErr = errors.Errorf("%s: %s", s.Position, msg)
		}
	}
	p.next()

	root, err := p.program()
	if err != nil {
		return nil, nil, err
	}
	if p.scanErr != nil {
		return nil, nil, p.scanErr
	}
	return root, p.b, nil
}

// next advances to the following token, folding two-character operators
// into a single tokOp.
func (p *parser) next() {
	tok := p.s.Scan()
	p.line = p.s.Position.Line
	switch tok {
	case scanner.EOF:
		p.kind, p.text = tokEOF, ""
	case scanner.Ident:
		p.kind, p.text = tokIdent, p.s.TokenText()
	case scanner.Int:
		p.kind, p.text = tokInt, p.s.TokenText()
	case scanner.Float:
		p.kind, p.text = tokFloat, p.s.TokenText()
	case scanner.Char:
		p.kind, p.text = tokChar, p.s.TokenText()
	case scanner.String:
		p.kind, p.text = tokString, p.s.TokenText()
	default:
		op := string(tok)
		if composite[op+string(p.s.Peek())] {
			op += string(p.s.Next())
		}
		p.kind, p.text = tokOp, op
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("%s: %s", p.s.Position, errors.Errorf(format, args...))
}

func (p *parser) isOp(op string) bool { return p.kind == tokOp && p.text == op }

func (p *parser) accept(op string) bool {
	if p.isOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(op string) error {
	if !p.accept(op) {
		return p.errorf("expected %q, got %q", op, p.text)
	}
	return nil
}

func (p *parser) keyword(kw string) bool { return p.kind == tokIdent && p.text == kw }

// typeName consumes a type keyword.
func (p *parser) typeName() (lang.Type, error) {
	if p.kind == tokIdent {
		if t, ok := types[p.text]; ok {
			p.next()
			return t, nil
		}
	}
	return lang.Any, p.errorf("expected a type, got %q", p.text)
}

// ident consumes an identifier into a lexical value.
func (p *parser) ident() (*lang.Lexval, error) {
	if p.kind != tokIdent {
		return nil, p.errorf("expected an identifier, got %q", p.text)
	}
	if _, isType := types[p.text]; isType {
		return nil, p.errorf("cannot use type %q as identifier", p.text)
	}
	lv := lang.NameLexval(p.line, lang.Identifier, p.text)
	p.next()
	return lv, nil
}

// program parses the sequence of global declarations and functions; the
// returned root is the first function, with the rest threaded through
// NextCmd.
func (p *parser) program() (*ast.Node, error) {
	var funcs []*ast.Node
	for p.kind != tokEOF {
		if p.scanErr != nil {
			return nil, p.scanErr
		}
		t, err := p.typeName()
		if err != nil {
			return nil, err
		}
		lv, err := p.ident()
		if err != nil {
			return nil, err
		}
		if p.isOp("(") {
			fn, err := p.function(t, lv)
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
			continue
		}
		if err := p.globalRest(t, lv); err != nil {
			return nil, err
		}
	}
	if len(funcs) == 0 {
		return nil, errors.New("program declares no functions")
	}
	chain(funcs)
	return funcs[0], nil
}

// chain threads a command list through NextCmd, tail first so every
// node's code chain is complete before its predecessor copies it.
func chain(cmds []*ast.Node) {
	for i := len(cmds) - 2; i >= 0; i-- {
		cmds[i].InsertCommand(cmds[i+1])
	}
}

// globalRest parses the remainder of a global declaration whose type and
// first identifier were already consumed.
func (p *parser) globalRest(t lang.Type, lv *lang.Lexval) error {
	for {
		nature := sym.Identifier
		count := 1
		if p.accept("[") {
			if p.kind != tokInt {
				return p.errorf("expected vector size, got %q", p.text)
			}
			n, _ := strconv.Atoi(p.text)
			p.next()
			if err := p.expect("]"); err != nil {
				return err
			}
			nature = sym.Vector
			count = n
		}
		p.b.AddToVarList(sym.New(lv, nature, t, count, true), nil)
		if !p.accept(",") {
			break
		}
		var err error
		if lv, err = p.ident(); err != nil {
			return err
		}
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	return p.b.DeclareVariables(t)
}

// function parses a function declaration from its parameter list on.
func (p *parser) function(ret lang.Type, lv *lang.Lexval) (*ast.Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.isOp(")") {
		pt, err := p.typeName()
		if err != nil {
			return nil, err
		}
		plv, err := p.ident()
		if err != nil {
			return nil, err
		}
		p.b.AddToVarList(sym.New(plv, sym.Identifier, pt, 1, false), nil)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	fn := p.b.CreateDeclaration(lv, ret, ast.FunctionDeclaration)
	if err := p.b.DeclareFunction(fn, ret); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	node, err := p.b.CreateFunctionDeclaration(fn, body)
	if err != nil {
		return nil, err
	}
	p.b.LeaveScope()
	return node, nil
}

// block parses a braced command sequence in its own scope and returns the
// first command, or nil when the block is empty.
func (p *parser) block() (*ast.Node, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	if err := p.b.EnterScope(); err != nil {
		return nil, err
	}
	var cmds []*ast.Node
	for !p.isOp("}") {
		if p.kind == tokEOF {
			return nil, p.errorf("unexpected end of file inside block")
		}
		cmd, err := p.command()
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	p.next() // consume '}'
	if p.b.Scopes.Depth() > 1 {
		p.b.LeaveScope()
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	chain(cmds)
	return cmds[0], nil
}

// blockOr parses a block, substituting an inert command for empty blocks
// so control-flow constructs always have a child to label.
func (p *parser) blockOr() (*ast.Node, error) {
	line := p.line
	n, err := p.block()
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = p.b.CreateCommand(lang.Reserved, "{}", lang.NA, ast.BreakContinue, line)
	}
	return n, nil
}

// command parses one statement.
func (p *parser) command() (*ast.Node, error) {
	switch {
	case p.kind == tokIdent:
		if _, ok := types[p.text]; ok {
			return p.localDeclaration()
		}
		switch p.text {
		case "input":
			return p.inputCmd()
		case "output":
			return p.outputCmd()
		case "return":
			return p.returnCmd()
		case "break":
			line := p.line
			p.next()
			return p.b.CreateBreak(line), p.expect(";")
		case "continue":
			line := p.line
			p.next()
			return p.b.CreateContinue(line), p.expect(";")
		case "if":
			return p.ifCmd()
		case "for":
			return p.forCmd()
		case "while":
			return p.whileCmd()
		}
		n, err := p.assignmentOrCall()
		if err != nil {
			return nil, err
		}
		return n, p.expect(";")
	case p.isOp("{"):
		n, err := p.block()
		if err != nil {
			return nil, err
		}
		p.accept(";")
		return n, nil
	default:
		return nil, p.errorf("unexpected %q at start of command", p.text)
	}
}

// localDeclaration parses `type id (<= literal|id)? (, ...)* ;`.
func (p *parser) localDeclaration() (*ast.Node, error) {
	t, err := p.typeName()
	if err != nil {
		return nil, err
	}
	var inits []*ast.Node
	for {
		lv, err := p.ident()
		if err != nil {
			return nil, err
		}
		s := sym.New(lv, sym.Identifier, lang.Any, 1, false)
		var init *ast.Node
		if p.isOp("<=") {
			opLv := p.line
			p.next()
			rval, err := p.initValue()
			if err != nil {
				return nil, err
			}
			lval := p.b.CreateDeclaration(lv, lang.Any, ast.Operand)
			op := p.b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.InitVariable, opLv)
			init, err = p.b.CreateInitialization(lval, op, rval)
			if err != nil {
				return nil, err
			}
			inits = append(inits, init)
		}
		p.b.AddToVarList(s, init)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if err := p.b.DeclareVariables(t); err != nil {
		return nil, err
	}
	if len(inits) == 0 {
		return nil, nil
	}
	chain(inits)
	return inits[0], nil
}

// initValue parses the right side of an initialization: a literal or an
// already-declared identifier.
func (p *parser) initValue() (*ast.Node, error) {
	if p.kind == tokIdent {
		if lit, ok, err := p.maybeLiteral(); ok || err != nil {
			return lit, err
		}
		lv, err := p.ident()
		if err != nil {
			return nil, err
		}
		return p.b.CreateID(lv, ast.Operand, false)
	}
	if lit, ok, err := p.maybeLiteral(); ok || err != nil {
		return lit, err
	}
	return nil, p.errorf("expected literal or identifier, got %q", p.text)
}

// maybeLiteral parses a literal when the current token is one.
func (p *parser) maybeLiteral() (*ast.Node, bool, error) {
	line := p.line
	switch {
	case p.kind == tokInt:
		v, _ := strconv.Atoi(p.text)
		p.next()
		n, err := p.b.CreateLiteral(lang.IntLexval(line, v), lang.Int)
		return n, true, err
	case p.kind == tokFloat:
		v, _ := strconv.ParseFloat(p.text, 64)
		p.next()
		n, err := p.b.CreateLiteral(lang.FloatLexval(line, v), lang.Float)
		return n, true, err
	case p.kind == tokChar:
		c, _, _, err := strconv.UnquoteChar(p.text[1:len(p.text)-1], '\'')
		if err != nil {
			return nil, true, p.errorf("invalid char literal %s", p.text)
		}
		p.next()
		n, err := p.b.CreateLiteral(lang.CharLexval(line, byte(c)), lang.Char)
		return n, true, err
	case p.kind == tokString:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			return nil, true, p.errorf("invalid string literal %s", p.text)
		}
		p.next()
		n, err := p.b.CreateLiteral(lang.NameLexval(line, lang.Literal, s), lang.String)
		return n, true, err
	case p.keyword("true") || p.keyword("false"):
		v := p.text == "true"
		p.next()
		n, err := p.b.CreateLiteral(lang.BoolLexval(line, v), lang.Bool)
		return n, true, err
	default:
		return nil, false, nil
	}
}

// assignmentOrCall parses commands opening with an identifier: a call, an
// attribution or a shift.
func (p *parser) assignmentOrCall() (*ast.Node, error) {
	lv, err := p.ident()
	if err != nil {
		return nil, err
	}
	if p.isOp("(") {
		return p.call(lv)
	}

	var lval *ast.Node
	if p.accept("[") {
		index, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		id := p.b.CreateDeclaration(lv, lang.Any, ast.Operand)
		lval, err = p.b.CreateVectorAccess(id, index)
		if err != nil {
			return nil, err
		}
	} else {
		lval, err = p.b.CreateID(lv, ast.Operand, true)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case p.isOp("<="):
		opLine := p.line
		p.next()
		rval, err := p.expression()
		if err != nil {
			return nil, err
		}
		op := p.b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, opLine)
		return p.b.CreateAttribution(lval, op, rval)
	case p.isOp("<<") || p.isOp(">>"):
		opText := p.text
		opLine := p.line
		p.next()
		if p.kind != tokInt {
			return nil, p.errorf("expected shift amount, got %q", p.text)
		}
		amount, _, err := p.maybeLiteral()
		if err != nil {
			return nil, err
		}
		op := p.b.CreateCommand(lang.CompositeOp, opText, lang.Any, ast.Shift, opLine)
		return p.b.CreateShift(lval, op, amount)
	default:
		return nil, p.errorf("expected attribution or shift, got %q", p.text)
	}
}

// call parses `id(args)` with the identifier already consumed.
func (p *parser) call(lv *lang.Lexval) (*ast.Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []*ast.Node
	for !p.isOp(")") {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	for i := len(args) - 2; i >= 0; i-- {
		args[i].InsertNext(args[i+1])
	}
	id := p.b.CreateDeclaration(lv, lang.Any, ast.Operand)
	var first *ast.Node
	if len(args) > 0 {
		first = args[0]
	}
	return p.b.CreateFunctionCall(id, first)
}

func (p *parser) inputCmd() (*ast.Node, error) {
	p.next()
	lv, err := p.ident()
	if err != nil {
		return nil, err
	}
	id, err := p.b.CreateID(lv, ast.Operand, true)
	if err != nil {
		return nil, err
	}
	n, err := p.b.CreateInput(id)
	if err != nil {
		return nil, err
	}
	return n, p.expect(";")
}

func (p *parser) outputCmd() (*ast.Node, error) {
	p.next()
	out, err := p.expression()
	if err != nil {
		return nil, err
	}
	n, err := p.b.CreateOutput(out)
	if err != nil {
		return nil, err
	}
	return n, p.expect(";")
}

func (p *parser) returnCmd() (*ast.Node, error) {
	p.next()
	val, err := p.expression()
	if err != nil {
		return nil, err
	}
	n, err := p.b.CreateReturn(val)
	if err != nil {
		return nil, err
	}
	return n, p.expect(";")
}

func (p *parser) ifCmd() (*ast.Node, error) {
	p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if !p.keyword("then") {
		return nil, p.errorf("expected \"then\", got %q", p.text)
	}
	p.next()
	then, err := p.blockOr()
	if err != nil {
		return nil, err
	}
	var els *ast.Node
	if p.keyword("else") {
		p.next()
		if els, err = p.blockOr(); err != nil {
			return nil, err
		}
	}
	p.accept(";")
	return p.b.CreateIf(cond, then, els)
}

func (p *parser) forCmd() (*ast.Node, error) {
	p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	init, err := p.assignmentOrCall()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	loop, err := p.assignmentOrCall()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.blockOr()
	if err != nil {
		return nil, err
	}
	p.accept(";")
	return p.b.CreateFor(init, cond, loop, body)
}

func (p *parser) whileCmd() (*ast.Node, error) {
	p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if !p.keyword("do") {
		return nil, p.errorf("expected \"do\", got %q", p.text)
	}
	p.next()
	body, err := p.blockOr()
	if err != nil {
		return nil, err
	}
	p.accept(";")
	return p.b.CreateWhile(cond, body)
}

// EXPRESSIONS
//
// Precedence, loosest first: ?: , ||, &&, == !=, < > <= >=, + -, * /,
// unary - and !.

func (p *parser) expression() (*ast.Node, error) {
	cond, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.expression()
	if err != nil {
		return nil, err
	}
	tern, err := p.b.CreateTernop(then)
	if err != nil {
		return nil, err
	}
	return p.b.CreateBinop(cond, tern, els)
}

// binaryLevel parses a left-associative run of the given operators over
// the next tighter level.
func (p *parser) binaryLevel(ops []string, next func() (*ast.Node, error)) (*ast.Node, error) {
	l, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			if p.isOp(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return l, nil
		}
		opLine := p.line
		p.next()
		r, err := next()
		if err != nil {
			return nil, err
		}
		opNode := p.b.CreateCommand(lang.CompositeOp, matched, lang.Any, ast.Binop, opLine)
		if l, err = p.b.CreateBinop(l, opNode, r); err != nil {
			return nil, err
		}
	}
}

func (p *parser) orExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"||"}, p.andExpr)
}

func (p *parser) andExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"&&"}, p.eqExpr)
}

func (p *parser) eqExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"==", "!="}, p.relExpr)
}

func (p *parser) relExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"<=", ">=", "<", ">"}, p.addExpr)
}

func (p *parser) addExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"+", "-"}, p.mulExpr)
}

func (p *parser) mulExpr() (*ast.Node, error) {
	return p.binaryLevel([]string{"*", "/"}, p.unaryExpr)
}

func (p *parser) unaryExpr() (*ast.Node, error) {
	if p.isOp("-") || p.isOp("!") {
		opText := p.text
		opLine := p.line
		p.next()
		operand, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		op := p.b.CreateCommand(lang.SpecialChar, opText, lang.Any, ast.Unop, opLine)
		return p.b.CreateUnop(op, operand)
	}
	return p.primary()
}

func (p *parser) primary() (*ast.Node, error) {
	if p.accept("(") {
		n, err := p.expression()
		if err != nil {
			return nil, err
		}
		return n, p.expect(")")
	}
	if lit, ok, err := p.maybeLiteral(); ok || err != nil {
		return lit, err
	}
	if p.kind != tokIdent {
		return nil, p.errorf("unexpected %q in expression", p.text)
	}
	lv, err := p.ident()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isOp("("):
		return p.call(lv)
	case p.accept("["):
		index, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		id := p.b.CreateDeclaration(lv, lang.Any, ast.Operand)
		access, err := p.b.CreateVectorAccess(id, index)
		if err != nil {
			return nil, err
		}
		access.SetRval()
		return access, nil
	default:
		return p.b.CreateID(lv, ast.Operand, false)
	}
}
