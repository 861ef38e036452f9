package lexer

import (
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `var x = 5;
function add(a, b) {
	return a + b;
}

if (x == 5) {
	x = x + 1;
} else {
	x = x - 1;
}

while (x < 10) {
	x = x + 1;
}

var arr = [1, 2, 3];
var o = {a: 1};

x != y
x < y
x > y
x <= y
x >= y
x === y
x !== y
x && y
x || y
!x
x ? y : 0
typeof x
delete o.a
"a" in o
new Foo()
this
x instanceof Foo
3.14
"hello world"
true
false
null
undefined
x++
x--
x << 1
x >> 1
x >>> 1
x & 1
x | 1
x ^ 1
~x
`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{VAR, "var"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{NUMBER, "5"},
		{SEMICOLON, ";"},
		{FUNCTION, "function"},
		{IDENT, "add"},
		{LPAREN, "("},
		{IDENT, "a"},
		{COMMA, ","},
		{IDENT, "b"},
		{RPAREN, ")"},
		{LBRACE, "{"},
		{RETURN, "return"},
		{IDENT, "a"},
		{PLUS, "+"},
		{IDENT, "b"},
		{SEMICOLON, ";"},
		{RBRACE, "}"},
		{IF, "if"},
		{LPAREN, "("},
		{IDENT, "x"},
		{EQ, "=="},
		{NUMBER, "5"},
		{RPAREN, ")"},
		{LBRACE, "{"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{IDENT, "x"},
		{PLUS, "+"},
		{NUMBER, "1"},
		{SEMICOLON, ";"},
		{RBRACE, "}"},
		{ELSE, "else"},
		{LBRACE, "{"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{IDENT, "x"},
		{MINUS, "-"},
		{NUMBER, "1"},
		{SEMICOLON, ";"},
		{RBRACE, "}"},
		{WHILE, "while"},
		{LPAREN, "("},
		{IDENT, "x"},
		{LT, "<"},
		{NUMBER, "10"},
		{RPAREN, ")"},
		{LBRACE, "{"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{IDENT, "x"},
		{PLUS, "+"},
		{NUMBER, "1"},
		{SEMICOLON, ";"},
		{RBRACE, "}"},
		{VAR, "var"},
		{IDENT, "arr"},
		{ASSIGN, "="},
		{LBRACKET, "["},
		{NUMBER, "1"},
		{COMMA, ","},
		{NUMBER, "2"},
		{COMMA, ","},
		{NUMBER, "3"},
		{RBRACKET, "]"},
		{SEMICOLON, ";"},
		{VAR, "var"},
		{IDENT, "o"},
		{ASSIGN, "="},
		{LBRACE, "{"},
		{IDENT, "a"},
		{COLON, ":"},
		{NUMBER, "1"},
		{RBRACE, "}"},
		{SEMICOLON, ";"},
		{IDENT, "x"},
		{NE, "!="},
		{IDENT, "y"},
		{IDENT, "x"},
		{LT, "<"},
		{IDENT, "y"},
		{IDENT, "x"},
		{GT, ">"},
		{IDENT, "y"},
		{IDENT, "x"},
		{LE, "<="},
		{IDENT, "y"},
		{IDENT, "x"},
		{GE, ">="},
		{IDENT, "y"},
		{IDENT, "x"},
		{SEQ, "==="},
		{IDENT, "y"},
		{IDENT, "x"},
		{SNE, "!=="},
		{IDENT, "y"},
		{IDENT, "x"},
		{AND, "&&"},
		{IDENT, "y"},
		{IDENT, "x"},
		{OR, "||"},
		{IDENT, "y"},
		{NOT, "!"},
		{IDENT, "x"},
		{IDENT, "x"},
		{QUESTION, "?"},
		{IDENT, "y"},
		{COLON, ":"},
		{NUMBER, "0"},
		{TYPEOF, "typeof"},
		{IDENT, "x"},
		{DELETE, "delete"},
		{IDENT, "o"},
		{DOT, "."},
		{IDENT, "a"},
		{STRING, "a"},
		{IN, "in"},
		{IDENT, "o"},
		{NEW, "new"},
		{IDENT, "Foo"},
		{LPAREN, "("},
		{RPAREN, ")"},
		{THIS, "this"},
		{IDENT, "x"},
		{INSTANCEOF, "instanceof"},
		{IDENT, "Foo"},
		{NUMBER, "3.14"},
		{STRING, "hello world"},
		{TRUE, "true"},
		{FALSE, "false"},
		{NULL, "null"},
		{UNDEFINED, "undefined"},
		{IDENT, "x"},
		{INC, "++"},
		{IDENT, "x"},
		{DEC, "--"},
		{IDENT, "x"},
		{SHL, "<<"},
		{NUMBER, "1"},
		{IDENT, "x"},
		{SHR, ">>"},
		{NUMBER, "1"},
		{IDENT, "x"},
		{USHR, ">>>"},
		{NUMBER, "1"},
		{IDENT, "x"},
		{AMP, "&"},
		{NUMBER, "1"},
		{IDENT, "x"},
		{PIPE, "|"},
		{NUMBER, "1"},
		{IDENT, "x"},
		{CARET, "^"},
		{NUMBER, "1"},
		{TILDE, "~"},
		{IDENT, "x"},
		{EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal=%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestLineAndColumn(t *testing.T) {
	input := `var x = 5;
var y = 10;`

	tests := []struct {
		expectedLine   int
		expectedColumn int
	}{
		{1, 1},  // var
		{1, 5},  // x
		{1, 7},  // =
		{1, 9},  // 5
		{1, 10}, // ;
		{2, 1},  // var
		{2, 5},  // y
		{2, 7},  // =
		{2, 9},  // 10
		{2, 11}, // ;
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Line != tt.expectedLine {
			t.Fatalf("tests[%d] - line wrong. expected=%d, got=%d",
				i, tt.expectedLine, tok.Line)
		}

		if tok.Column != tt.expectedColumn {
			t.Fatalf("tests[%d] - column wrong. expected=%d, got=%d",
				i, tt.expectedColumn, tok.Column)
		}
	}
}
