package search

import (
	"strings"
	"testing"
)

func findChunk(t *testing.T, chunks []Chunk, name string) Chunk {
	t.Helper()
	for _, c := range chunks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no chunk named %q in %v", name, chunkNames(chunks))
	return Chunk{}
}

func chunkNames(chunks []Chunk) []string {
	names := make([]string, len(chunks))
	for i, c := range chunks {
		names[i] = c.Name
	}
	return names
}

func TestParseFunctionDeclaration(t *testing.T) {
	src := `/**
 * Adds two numbers together.
 */
function sum(a, b) {
  return a + b;
}
`
	chunks := Parse("math.js", []byte(src))
	c := findChunk(t, chunks, "sum")

	if c.Kind != "function" {
		t.Errorf("Kind = %q, want function", c.Kind)
	}
	if c.StartLine != 4 || c.EndLine != 6 {
		t.Errorf("span = %d-%d, want 4-6", c.StartLine, c.EndLine)
	}
	if len(c.Params) != 2 || c.Params[0] != "a" || c.Params[1] != "b" {
		t.Errorf("Params = %v, want [a b]", c.Params)
	}
	if c.Doc != "Adds two numbers together." {
		t.Errorf("Doc = %q", c.Doc)
	}
	if !strings.Contains(c.Content, "return a + b;") {
		t.Errorf("Content = %q", c.Content)
	}
}

func TestParseArrowAndFunctionExpression(t *testing.T) {
	src := `export const double = (n) => {
  return n * 2;
};
const handler = async function (req, res) {
  res.end();
};
`
	chunks := Parse("handlers.js", []byte(src))

	d := findChunk(t, chunks, "double")
	if d.Kind != "function" || len(d.Params) != 1 || d.Params[0] != "n" {
		t.Errorf("double = %+v", d)
	}

	h := findChunk(t, chunks, "handler")
	if len(h.Params) != 2 {
		t.Errorf("handler Params = %v, want 2 entries", h.Params)
	}
}

func TestParseSingleLineArrow(t *testing.T) {
	src := `const inc = (n) => n + 1;
function after() {
  return inc(1);
}
`
	chunks := Parse("inc.js", []byte(src))

	i := findChunk(t, chunks, "inc")
	if i.StartLine != 1 || i.EndLine != 1 {
		t.Errorf("inc span = %d-%d, want 1-1", i.StartLine, i.EndLine)
	}

	// The one-liner must not swallow the following declaration
	a := findChunk(t, chunks, "after")
	if a.StartLine != 2 {
		t.Errorf("after StartLine = %d, want 2", a.StartLine)
	}
	if len(a.Calls) != 1 || a.Calls[0] != "inc" {
		t.Errorf("after Calls = %v, want [inc]", a.Calls)
	}
}

func TestParseClassWithMethods(t *testing.T) {
	src := `export class Calculator extends Machine {
  /** Evaluates one expression. */
  evaluate(expr: string): number {
    return parse(expr);
  }

  static create(): Calculator {
    return new Calculator();
  }
}
`
	chunks := Parse("calc.ts", []byte(src))

	cls := findChunk(t, chunks, "Calculator")
	if cls.Kind != "class" {
		t.Errorf("Kind = %q, want class", cls.Kind)
	}
	if cls.Extends != "Machine" {
		t.Errorf("Extends = %q, want Machine", cls.Extends)
	}

	ev := findChunk(t, chunks, "Calculator.evaluate")
	if ev.Kind != "method" {
		t.Errorf("Kind = %q, want method", ev.Kind)
	}
	if ev.ReturnType != "number" {
		t.Errorf("ReturnType = %q, want number", ev.ReturnType)
	}
	if ev.Doc != "Evaluates one expression." {
		t.Errorf("Doc = %q", ev.Doc)
	}
	if len(ev.Calls) != 1 || ev.Calls[0] != "parse" {
		t.Errorf("Calls = %v, want [parse]", ev.Calls)
	}

	cr := findChunk(t, chunks, "Calculator.create")
	if cr.ReturnType != "Calculator" {
		t.Errorf("create ReturnType = %q", cr.ReturnType)
	}
}

func TestParseInterface(t *testing.T) {
	src := `export interface Shape extends Drawable {
  area(): number;
  name: string;
}
`
	chunks := Parse("shape.ts", []byte(src))
	c := findChunk(t, chunks, "Shape")

	if c.Kind != "interface" {
		t.Errorf("Kind = %q, want interface", c.Kind)
	}
	if c.Extends != "Drawable" {
		t.Errorf("Extends = %q", c.Extends)
	}
	if c.EndLine != 4 {
		t.Errorf("EndLine = %d, want 4", c.EndLine)
	}
}

func TestParseFallbackWholeFile(t *testing.T) {
	src := "const x = 1;\nconsole.log(x);\n"
	chunks := Parse("script.js", []byte(src))

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 fallback chunk", len(chunks))
	}
	if chunks[0].Kind != "file" || chunks[0].Name != "script.js" {
		t.Errorf("fallback chunk = %+v", chunks[0])
	}
	if chunks[0].StartLine != 1 {
		t.Errorf("StartLine = %d, want 1", chunks[0].StartLine)
	}
}

func TestParseEmptySource(t *testing.T) {
	if chunks := Parse("empty.js", []byte("  \n\t\n")); len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0 for blank source", len(chunks))
	}
}

func TestParseChunkIDsUnique(t *testing.T) {
	src := `function a() { return 1; }
function b() { return 2; }
function c() { return 3; }
`
	chunks := Parse("many.js", []byte(src))
	ids := make(map[string]bool)
	for _, c := range chunks {
		if ids[c.ID] {
			t.Fatalf("duplicate chunk id %q", c.ID)
		}
		ids[c.ID] = true
	}
	if len(ids) != 3 {
		t.Errorf("chunks = %d, want 3", len(ids))
	}
}

func TestSplitParams(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a, b", []string{"a", "b"}},
		{"a: number, b: string", []string{"a: number", "b: string"}},
		{"opts: {x: number, y: number}, z", []string{"opts: {x: number, y: number}", "z"}},
	}
	for _, tt := range tests {
		got := splitParams(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("splitParams(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitParams(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}
