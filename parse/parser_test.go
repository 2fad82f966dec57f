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

package parse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioAzevedoGomes/ProjetoCompiladores/ast"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/lang"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/parse"
	"github.com/FabioAzevedoGomes/ProjetoCompiladores/sym"
)

func compile(t *testing.T, src string) (*ast.Node, *ast.Builder) {
	t.Helper()
	root, b, err := parse.Parse("test", strings.NewReader(src))
	require.NoError(t, err)
	return root, b
}

func compileErr(t *testing.T, src string, kind lang.ErrKind) {
	t.Helper()
	_, _, err := parse.Parse("test", strings.NewReader(src))
	require.Error(t, err)
	diag, ok := err.(*lang.Error)
	require.Truef(t, ok, "expected *lang.Error, got %T: %v", err, err)
	assert.Equal(t, kind, diag.Kind)
}

func TestParse_globalsAndMain(t *testing.T) {
	root, b := compile(t, `
		int x;
		int v[4];
		int main() {
			x <= 5;
			return x;
		}
	`)
	require.NotNil(t, root)
	assert.Equal(t, ast.FunctionDeclaration, root.Kind)
	assert.Equal(t, "main", root.Name())

	global := b.Scopes.Global()
	x, ok := global.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, 0, x.Offset)
	assert.Equal(t, sym.Identifier, x.Nature)
	assert.Equal(t, lang.Int, x.Type)

	v, ok := global.Lookup("v")
	require.True(t, ok)
	assert.Equal(t, 4, v.Offset)
	assert.Equal(t, 16, v.Size)
	assert.Equal(t, sym.Vector, v.Nature)

	m, ok := global.Lookup("main")
	require.True(t, ok)
	assert.Equal(t, sym.Function, m.Nature)
	require.NotNil(t, b.Main())
	assert.Same(t, m, b.Main())

	code := root.Code().CodeString()
	assert.Contains(t, code, "loadI 5 =>")
	assert.Contains(t, code, "store ")
}

func TestParse_functionsAndCalls(t *testing.T) {
	root, b := compile(t, `
		int f(int a, int b) {
			return a + b;
		}
		int main() {
			int r;
			r <= f(1, 2);
			return r;
		}
	`)
	f, ok := b.Scopes.Global().Lookup("f")
	require.True(t, ok)
	require.Len(t, f.Params, 2)
	require.NotNil(t, f.Label)

	code := root.Code().CodeString()
	assert.Contains(t, code, "jumpI => "+*f.Label)
	assert.Contains(t, code, "storeAI rsp => rsp, 4")
	assert.Contains(t, code, "storeAI rfp => rsp, 8")
	// the two arguments land in the callee's parameter slots
	assert.Contains(t, code, "=> rsp, 12")
	assert.Contains(t, code, "=> rsp, 16")
	// the return value is read back from past the parameter area
	assert.Contains(t, code, "loadAI rsp, 20 =>")
}

func TestParse_controlFlow(t *testing.T) {
	root, _ := compile(t, `
		int main() {
			int i;
			int total;
			total <= 0;
			for (i <= 0 : i < 10 : i <= i + 1) {
				total <= total + i;
			};
			while (total > 0) do {
				total <= total - 1;
			};
			if (total == 0) then {
				total <= 1;
			} else {
				total <= 2;
			};
			return total;
		}
	`)
	code := root.Code().CodeString()
	assert.Contains(t, code, "cmp_LT")
	assert.Contains(t, code, "cmp_GT")
	assert.Contains(t, code, "cmp_EQ")
	assert.NotContains(t, code, " H", "all holes must be patched")
	assert.Contains(t, code, "jumpI")
}

func TestParse_shortCircuitAndTernary(t *testing.T) {
	root, _ := compile(t, `
		int main() {
			int a;
			int b;
			a <= 1;
			b <= 0;
			if (a > 0 && b < 3 || a == b) then {
				b <= a > 0 ? 1 : 2;
			};
			return b;
		}
	`)
	code := root.Code().CodeString()
	assert.Contains(t, code, "cmp_GT")
	assert.Contains(t, code, "cmp_LT")
	assert.Contains(t, code, "cmp_EQ")
	assert.Contains(t, code, "i2i")
	assert.NotContains(t, code, " H", "all holes must be patched")
}

func TestParse_localInitialization(t *testing.T) {
	root, _ := compile(t, `
		int main() {
			int x <= 5, y;
			y <= x;
			return y;
		}
	`)
	code := root.Code().CodeString()
	assert.Contains(t, code, "loadI 5 =>")
	assert.Contains(t, code, "addI rfp, 0 =>", "x lives at the frame start")
	assert.Contains(t, code, "addI rfp, 4 =>", "y follows x in the frame")
}

func TestParse_nestedScopes(t *testing.T) {
	_, b := compile(t, `
		int main() {
			int x;
			{
				int y;
				y <= 2;
			};
			x <= 1;
			return x;
		}
	`)
	// all scopes were left; only the global table remains
	assert.Equal(t, 0, b.Scopes.Depth())
}

func TestParse_shadowing(t *testing.T) {
	_, _ = compile(t, `
		int x;
		int main() {
			float x;
			x <= 1.0;
			return 0;
		}
	`)
}

func TestParse_errors(t *testing.T) {
	data := []struct {
		name string
		src  string
		kind lang.ErrKind
	}{
		{"undeclared", `int main() { y <= 1; return 0; }`, lang.ErrUndeclared},
		{"redeclared_global", "int x;\nfloat x;\nint main() { return 0; }", lang.ErrRedeclared},
		{"redeclared_local", `int main() { int a; int a; return 0; }`, lang.ErrRedeclared},
		{"vector_as_variable", `int v[4]; int main() { v <= 1; return 0; }`, lang.ErrWrongUsageVector},
		{"function_as_variable", `int f() { return 0; } int main() { f <= 1; return 0; }`, lang.ErrWrongUsageFunction},
		{"variable_called", `int x; int main() { x(); return 0; }`, lang.ErrWrongUsageVariable},
		{"string_to_int", `int x; string s; int main() { x <= s; return 0; }`, lang.ErrStringToX},
		{"char_to_int", `int x; int main() { x <= 'a'; return 0; }`, lang.ErrCharToX},
		{"string_size", `string s; int main() { s <= "ab"; s <= "abcdef"; return 0; }`, lang.ErrStringSize},
		{"missing_args", `int f(int a) { return a; } int main() { return f(); }`, lang.ErrMissingArgs},
		{"excess_args", `int f(int a) { return a; } int main() { return f(1, 2); }`, lang.ErrExcessArgs},
		{"wrong_type_args", `string s; int f(int a) { return a; } int main() { return f(s); }`, lang.ErrWrongTypeArgs},
		{"input_string", `string s; int main() { input s; return 0; }`, lang.ErrWrongParamInput},
		{"output_string", `string s; int main() { output s; return 0; }`, lang.ErrWrongParamOutput},
		{"return_type", `string s; int f() { return s; } int main() { return 0; }`, lang.ErrWrongParamReturn},
		{"shift_amount", `int x; int main() { x << 17; return 0; }`, lang.ErrWrongParamShift},
		{"init_type", `string s; int main() { int x <= "abc"; return 0; }`, lang.ErrWrongType},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			compileErr(t, d.src, d.kind)
		})
	}
}

func TestParse_syntaxErrors(t *testing.T) {
	data := []string{
		"int x;\nint main() { x + 1; return 0; }",
		`int main( { return 0; }`,
		`int main() { if a then {}; return 0; }`,
		`int 5x;`,
		``,
	}
	for _, src := range data {
		_, _, err := parse.Parse("test", strings.NewReader(src))
		if err == nil {
			t.Errorf("Expected a parse error for %q", src)
		}
		if _, ok := err.(*lang.Error); ok {
			t.Errorf("syntax errors must not carry semantic error codes: %v", err)
		}
	}
}

func TestParse_shiftAtBoundary(t *testing.T) {
	root, _ := compile(t, `
		int x;
		int main() {
			x <= 1;
			x << 16;
			x >> 2;
			return x;
		}
	`)
	code := root.Code().CodeString()
	assert.Contains(t, code, "lshift")
	assert.Contains(t, code, "rshift")
}
