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

package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ast"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

func ident(line int, name string) *lang.Lexval {
	return lang.NameLexval(line, lang.Identifier, name)
}

// declareGlobal declares one global scalar of the given type.
func declareGlobal(t *testing.T, b *ast.Builder, name string, typ lang.Type) {
	t.Helper()
	b.AddToVarList(sym.New(ident(1, name), sym.Identifier, typ, 1, true), nil)
	require.NoError(t, b.DeclareVariables(typ))
}

// errKind asserts that err is a diagnostic of the given kind.
func errKind(t *testing.T, err error, kind lang.ErrKind) {
	t.Helper()
	require.Error(t, err)
	diag, ok := err.(*lang.Error)
	require.Truef(t, ok, "expected *lang.Error, got %T: %v", err, err)
	assert.Equal(t, kind, diag.Kind)
	assert.Equal(t, int(kind), diag.Code())
}

func TestCreateID_undeclared(t *testing.T) {
	b := ast.NewBuilder()
	_, err := b.CreateID(ident(3, "ghost"), ast.Operand, false)
	errKind(t, err, lang.ErrUndeclared)
}

func TestDeclareVariables_redeclared(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "x", lang.Int)
	b.AddToVarList(sym.New(ident(2, "x"), sym.Identifier, lang.Float, 1, true), nil)
	errKind(t, b.DeclareVariables(lang.Float), lang.ErrRedeclared)
}

func TestCheckID_wrongUsage(t *testing.T) {
	b := ast.NewBuilder()

	// v is a vector, f is a function, x is a variable
	b.AddToVarList(sym.New(ident(1, "v"), sym.Vector, lang.Int, 4, true), nil)
	require.NoError(t, b.DeclareVariables(lang.Int))
	declareGlobal(t, b, "x", lang.Int)
	fn := b.CreateDeclaration(ident(1, "f"), lang.Int, ast.FunctionDeclaration)
	require.NoError(t, b.DeclareFunction(fn, lang.Int))

	// using the vector as a plain variable
	_, err := b.CreateID(ident(2, "v"), ast.Operand, false)
	require.NoError(t, err) // creation alone does not check usage
	v, err := b.CreateID(ident(2, "v"), ast.Operand, true)
	require.NoError(t, err)
	five, err := b.CreateLiteral(lang.IntLexval(2, 5), lang.Int)
	require.NoError(t, err)
	op := b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 2)
	_, err = b.CreateAttribution(v, op, five)
	errKind(t, err, lang.ErrWrongUsageVector)

	// using the function as a variable
	f, err := b.CreateID(ident(3, "f"), ast.Operand, true)
	require.NoError(t, err)
	op = b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 3)
	_, err = b.CreateAttribution(f, op, five)
	errKind(t, err, lang.ErrWrongUsageFunction)

	// calling the plain variable
	x := b.CreateDeclaration(ident(4, "x"), lang.Any, ast.Operand)
	_, err = b.CreateFunctionCall(x, nil)
	errKind(t, err, lang.ErrWrongUsageVariable)
}

func TestCreateAttribution_typeErrors(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "x", lang.Int)
	declareGlobal(t, b, "s", lang.String)

	x, err := b.CreateID(ident(2, "x"), ast.Operand, true)
	require.NoError(t, err)
	str, err := b.CreateLiteral(lang.NameLexval(2, lang.Literal, "oops"), lang.String)
	require.NoError(t, err)
	op := b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 2)
	_, err = b.CreateAttribution(x, op, str)
	errKind(t, err, lang.ErrStringToX)

	s, err := b.CreateID(ident(3, "s"), ast.Operand, true)
	require.NoError(t, err)
	c, err := b.CreateLiteral(lang.CharLexval(3, 'a'), lang.Char)
	require.NoError(t, err)
	op = b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 3)
	_, err = b.CreateAttribution(s, op, c)
	errKind(t, err, lang.ErrStringToX)
}

func TestCreateAttribution_stringSize(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "s", lang.String)

	// first assignment sizes the string
	s, err := b.CreateID(ident(2, "s"), ast.Operand, true)
	require.NoError(t, err)
	lit, err := b.CreateLiteral(lang.NameLexval(2, lang.Literal, "abcdef"), lang.String)
	require.NoError(t, err)
	op := b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 2)
	_, err = b.CreateAttribution(s, op, lit)
	require.NoError(t, err)

	ssym, err := b.GetSymbol(ident(2, "s"))
	require.NoError(t, err)
	assert.Equal(t, 6, ssym.Count)

	// a longer value no longer fits
	s2, err := b.CreateID(ident(3, "s"), ast.Operand, true)
	require.NoError(t, err)
	long, err := b.CreateLiteral(lang.NameLexval(3, lang.Literal, "abcdefghij"), lang.String)
	require.NoError(t, err)
	op = b.CreateCommand(lang.CompositeOp, "<=", lang.Any, ast.AttribVariable, 3)
	_, err = b.CreateAttribution(s2, op, long)
	errKind(t, err, lang.ErrStringSize)
}

func TestCreateShift_amount(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "x", lang.Int)

	x, err := b.CreateID(ident(2, "x"), ast.Operand, true)
	require.NoError(t, err)
	amount, err := b.CreateLiteral(lang.IntLexval(2, 17), lang.Int)
	require.NoError(t, err)
	op := b.CreateCommand(lang.CompositeOp, "<<", lang.Any, ast.Shift, 2)
	_, err = b.CreateShift(x, op, amount)
	errKind(t, err, lang.ErrWrongParamShift)

	// 16 is the boundary and passes
	x2, err := b.CreateID(ident(3, "x"), ast.Operand, true)
	require.NoError(t, err)
	ok, err := b.CreateLiteral(lang.IntLexval(3, 16), lang.Int)
	require.NoError(t, err)
	op = b.CreateCommand(lang.CompositeOp, "<<", lang.Any, ast.Shift, 3)
	_, err = b.CreateShift(x2, op, ok)
	assert.NoError(t, err)
}

func TestCreateFunctionCall_arguments(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "s", lang.String)

	// int f(int a, int b)
	b.AddToVarList(sym.New(ident(1, "a"), sym.Identifier, lang.Int, 1, false), nil)
	b.AddToVarList(sym.New(ident(1, "b"), sym.Identifier, lang.Int, 1, false), nil)
	fn := b.CreateDeclaration(ident(1, "f"), lang.Int, ast.FunctionDeclaration)
	require.NoError(t, b.DeclareFunction(fn, lang.Int))
	require.NoError(t, b.EnterScope())
	decl, err := b.CreateFunctionDeclaration(fn, nil)
	require.NoError(t, err)
	require.NotNil(t, decl)
	b.LeaveScope()

	one, err := b.CreateLiteral(lang.IntLexval(2, 1), lang.Int)
	require.NoError(t, err)

	// too few
	call := b.CreateDeclaration(ident(2, "f"), lang.Any, ast.Operand)
	_, err = b.CreateFunctionCall(call, one)
	errKind(t, err, lang.ErrMissingArgs)

	// too many
	a1, _ := b.CreateLiteral(lang.IntLexval(3, 1), lang.Int)
	a2, _ := b.CreateLiteral(lang.IntLexval(3, 2), lang.Int)
	a3, _ := b.CreateLiteral(lang.IntLexval(3, 3), lang.Int)
	a1.InsertNext(a2)
	a2.InsertNext(a3)
	call = b.CreateDeclaration(ident(3, "f"), lang.Any, ast.Operand)
	_, err = b.CreateFunctionCall(call, a1)
	errKind(t, err, lang.ErrExcessArgs)

	// wrong type at index 1
	b1, _ := b.CreateLiteral(lang.IntLexval(4, 1), lang.Int)
	b2, err := b.CreateID(ident(4, "s"), ast.Operand, false)
	require.NoError(t, err)
	b1.InsertNext(b2)
	call = b.CreateDeclaration(ident(4, "f"), lang.Any, ast.Operand)
	_, err = b.CreateFunctionCall(call, b1)
	errKind(t, err, lang.ErrWrongTypeArgs)

	// exact match succeeds and adopts the return type
	c1, _ := b.CreateLiteral(lang.IntLexval(5, 1), lang.Int)
	c2, _ := b.CreateLiteral(lang.IntLexval(5, 2), lang.Int)
	c1.InsertNext(c2)
	call = b.CreateDeclaration(ident(5, "f"), lang.Any, ast.Operand)
	n, err := b.CreateFunctionCall(call, c1)
	require.NoError(t, err)
	assert.Equal(t, ast.FunctionCall, n.Kind)
	assert.Equal(t, lang.Int, n.Type)
}

func TestCreateReturn_wrongType(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "s", lang.String)

	fn := b.CreateDeclaration(ident(1, "f"), lang.Int, ast.FunctionDeclaration)
	require.NoError(t, b.DeclareFunction(fn, lang.Int))
	require.NoError(t, b.EnterScope())

	sid, err := b.CreateID(ident(2, "s"), ast.Operand, false)
	require.NoError(t, err)
	_, err = b.CreateReturn(sid)
	errKind(t, err, lang.ErrWrongParamReturn)
}

func TestCreateInput_checks(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "s", lang.String)
	declareGlobal(t, b, "x", lang.Int)

	s, err := b.CreateID(ident(2, "s"), ast.Operand, true)
	require.NoError(t, err)
	_, err = b.CreateInput(s)
	errKind(t, err, lang.ErrWrongParamInput)

	x, err := b.CreateID(ident(3, "x"), ast.Operand, true)
	require.NoError(t, err)
	_, err = b.CreateInput(x)
	assert.NoError(t, err)

	lit, err := b.CreateLiteral(lang.IntLexval(4, 7), lang.Int)
	require.NoError(t, err)
	_, err = b.CreateInput(lit)
	errKind(t, err, lang.ErrWrongParamInput)

	_, err = b.CreateOutput(lit)
	assert.NoError(t, err)

	str, err := b.CreateLiteral(lang.NameLexval(5, lang.Literal, "no"), lang.String)
	require.NoError(t, err)
	_, err = b.CreateOutput(str)
	errKind(t, err, lang.ErrWrongParamOutput)
}

func TestCreateIf_conditionType(t *testing.T) {
	b := ast.NewBuilder()
	declareGlobal(t, b, "s", lang.String)

	cond, err := b.CreateID(ident(2, "s"), ast.Operand, false)
	require.NoError(t, err)
	then := b.CreateCommand(lang.Reserved, "{}", lang.NA, ast.BreakContinue, 2)
	_, err = b.CreateIf(cond, then, nil)
	errKind(t, err, lang.ErrStringToX)
}

func TestLiteral_reuseUpdatesLine(t *testing.T) {
	b := ast.NewBuilder()
	_, err := b.CreateLiteral(lang.IntLexval(2, 5), lang.Int)
	require.NoError(t, err)
	s, err := b.GetSymbol(lang.IntLexval(2, 5))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Line)

	_, err = b.CreateLiteral(lang.IntLexval(9, 5), lang.Int)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Line, "second occurrence should only refresh the line")

	// still a single symbol in the global table
	count := 0
	for _, gs := range b.Scopes.Global().Symbols() {
		if gs.Nature == sym.None {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
