package steps

import "testing"

func TestEvalExprBooleanComposition(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"and(true,true)", true},
		{"and(true,false)", false},
		{"or(false,false)", false},
		{"or(false,true)", true},
		{"not(true)", false},
		{"not(false)", true},
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{"", false},
		{"hello", true},
		{"and(or(true,false), not(false))", true},
	}
	for _, c := range cases {
		got, err := evalExpr(c.expr)
		if err != nil {
			t.Fatalf("evalExpr(%q) returned error: %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("evalExpr(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalExprFileExists(t *testing.T) {
	ok, err := evalExpr(`file_exists('/definitely/not/a/real/path/xyz')`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for a nonexistent path")
	}
}

func TestEvalExprMalformedReturnsError(t *testing.T) {
	cases := []string{
		"and(true",
		"bogus(true)",
		"and()",
		"not(true, false)",
	}
	for _, expr := range cases {
		if _, err := evalExpr(expr); err == nil {
			t.Errorf("evalExpr(%q): expected error, got none", expr)
		}
	}
}
