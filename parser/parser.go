package parser

import (
	"fmt"
	"strconv"

	"regvm/ast"
	"regvm/lexer"
)

// Precedence levels for operators, low to high.
const (
	_ int = iota
	LOWEST
	ASSIGNMENT  // = (right-associative; handled outside the table)
	OR          // ||
	AND         // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALS      // ==, !=, ===, !==
	LESSGREATER // <, >, <=, >=, instanceof, in
	SHIFT       // <<, >>, >>>
	SUM         // +, -
	PRODUCT     // *, /, %
	PREFIX      // -x, !x, typeof x, ++x
	CALL        // func(x), x[y], x.y
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:         OR,
	lexer.AND:        AND,
	lexer.PIPE:       BITOR,
	lexer.CARET:      BITXOR,
	lexer.AMP:        BITAND,
	lexer.EQ:         EQUALS,
	lexer.NE:         EQUALS,
	lexer.SEQ:        EQUALS,
	lexer.SNE:        EQUALS,
	lexer.LT:         LESSGREATER,
	lexer.GT:         LESSGREATER,
	lexer.LE:         LESSGREATER,
	lexer.GE:         LESSGREATER,
	lexer.INSTANCEOF: LESSGREATER,
	lexer.IN:         LESSGREATER,
	lexer.SHL:        SHIFT,
	lexer.SHR:        SHIFT,
	lexer.USHR:       SHIFT,
	lexer.PLUS:       SUM,
	lexer.MINUS:      SUM,
	lexer.ASTERISK:   PRODUCT,
	lexer.SLASH:      PRODUCT,
	lexer.PERCENT:    PRODUCT,
	lexer.LPAREN:     CALL,
	lexer.LBRACKET:   CALL,
	lexer.DOT:        CALL,
	lexer.INC:        CALL,
	lexer.DEC:        CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a Pratt parser over the token stream from lexer.Lexer.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.NULL, p.parseNullLiteral)
	p.registerPrefix(lexer.UNDEFINED, p.parseUndefinedLiteral)
	p.registerPrefix(lexer.THIS, p.parseThisExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.NOT, p.parsePrefixExpression)
	p.registerPrefix(lexer.TILDE, p.parsePrefixExpression)
	p.registerPrefix(lexer.TYPEOF, p.parsePrefixExpression)
	p.registerPrefix(lexer.DELETE, p.parsePrefixExpression)
	p.registerPrefix(lexer.INC, p.parsePrefixUpdateExpression)
	p.registerPrefix(lexer.DEC, p.parsePrefixUpdateExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(lexer.LBRACE, p.parseObjectLiteral)
	p.registerPrefix(lexer.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(lexer.NEW, p.parseNewExpression)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, tt := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH, lexer.PERCENT,
		lexer.EQ, lexer.NE, lexer.SEQ, lexer.SNE,
		lexer.LT, lexer.GT, lexer.LE, lexer.GE,
		lexer.AND, lexer.OR, lexer.AMP, lexer.PIPE, lexer.CARET,
		lexer.SHL, lexer.SHR, lexer.USHR,
		lexer.INSTANCEOF, lexer.IN,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)
	p.registerInfix(lexer.LBRACKET, p.parseComputedMemberExpression)
	p.registerInfix(lexer.DOT, p.parseMemberExpression)
	p.registerInfix(lexer.INC, p.parsePostfixUpdateExpression)
	p.registerInfix(lexer.DEC, p.parsePostfixUpdateExpression)

	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) peekError(t lexer.TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead at line %d, column %d",
		t, p.peekToken.Type, p.peekToken.Line, p.peekToken.Column)
	p.errors = append(p.errors, msg)
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) registerPrefix(tt lexer.TokenType, fn prefixParseFn) { p.prefixParseFns[tt] = fn }
func (p *Parser) registerInfix(tt lexer.TokenType, fn infixParseFn)   { p.infixParseFns[tt] = fn }

// ParseProgram parses an entire source file.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Statements = []ast.Statement{}

	for !p.curTokenIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.VAR:
		return p.parseVarStatement()
	case lexer.FUNCTION:
		return p.parseFunctionDeclaration()
	case lexer.RETURN:
		return p.parseReturnStatement()
	case lexer.BREAK:
		return p.parseBreakStatement()
	case lexer.CONTINUE:
		return p.parseContinueStatement()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.FOR:
		return p.parseForOrForInStatement()
	case lexer.WHILE:
		return p.parseWhileStatement()
	case lexer.WITH:
		return p.parseWithStatement()
	case lexer.LBRACE:
		return p.parseBlockStatement()
	case lexer.SEMICOLON:
		return &ast.ExpressionStatement{Token: p.curToken}
	case lexer.IDENT:
		if p.peekTokenIs(lexer.COLON) {
			return p.parseLabeledStatement()
		}
		return p.parseExpressionStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseVarStatement() *ast.VarStatement {
	stmt := &ast.VarStatement{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken()
		p.nextToken()
		stmt.Value = p.parseExpression(LOWEST)
	}

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	tok := p.curToken
	fn := p.parseFunctionLiteral().(*ast.FunctionLiteral)
	return &ast.FunctionDeclaration{Token: tok, Function: fn}
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}

	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		lit.Name = p.curToken.Literal
	}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	lit.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	lit.Body = p.parseBlockStatement()

	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	params := []*ast.Identifier{}

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params
	}

	p.nextToken()
	params = append(params, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	return params
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	p.nextToken()

	if !p.curTokenIs(lexer.SEMICOLON) && !p.curTokenIs(lexer.RBRACE) {
		stmt.ReturnValue = p.parseExpression(LOWEST)
	}

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Token: p.curToken}

	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		stmt.Label = p.curToken.Literal
	}

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{Token: p.curToken}

	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		stmt.Label = p.curToken.Literal
	}

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			stmt.Alternative = p.parseIfStatement()
		} else if p.peekTokenIs(lexer.LBRACE) {
			p.nextToken()
			stmt.Alternative = p.parseBlockStatement()
		}
	}

	return stmt
}

// parseForOrForInStatement disambiguates `for (var x in obj)` from a
// classic C-style `for (init; cond; post)` by looking ahead for `in` after
// the optional `var` and the identifier.
func (p *Parser) parseForOrForInStatement() ast.Statement {
	tok := p.curToken

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}

	hasVar := p.peekTokenIs(lexer.VAR)
	if hasVar {
		p.nextToken()
	}

	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken() // identifier becomes curToken
		if p.peekTokenIs(lexer.IN) {
			variable := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			p.nextToken() // consume IN
			p.nextToken() // move to object expression
			obj := p.parseExpression(LOWEST)
			if !p.expectPeek(lexer.RPAREN) {
				return nil
			}
			if !p.expectPeek(lexer.LBRACE) {
				return nil
			}
			body := p.parseBlockStatement()
			return &ast.ForInStatement{Token: tok, Variable: variable, Declared: hasVar, Object: obj, Body: body}
		}
		// Not a for-in: no rewind is needed, since curToken is the identifier.
		// After `var` it is the init clause's declared variable name; without
		// `var` the init clause is an ordinary expression starting at it.
		if hasVar {
			return p.parseClassicForStatement(tok, true, p.curToken, p.peekToken)
		}
		return p.parseClassicForStatement(tok, false, lexer.Token{}, lexer.Token{})
	}

	p.nextToken() // first token of the init clause, or `;` when it is empty
	return p.parseClassicForStatement(tok, hasVar, lexer.Token{}, lexer.Token{})
}

func (p *Parser) parseClassicForStatement(tok lexer.Token, hasVar bool, consumedIdent, consumedIdentPeek lexer.Token) ast.Statement {
	stmt := &ast.ForStatement{Token: tok}

	if consumedIdent.Type == lexer.IDENT {
		name := &ast.Identifier{Token: consumedIdent, Value: consumedIdent.Literal}
		var value ast.Expression
		if p.peekTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.nextToken()
			value = p.parseExpression(LOWEST)
		}
		if hasVar {
			stmt.Init = &ast.VarStatement{Token: consumedIdent, Name: name, Value: value}
		} else {
			var expr ast.Expression = name
			if value != nil {
				expr = &ast.AssignmentExpression{Token: consumedIdent, Target: name, Value: value}
			}
			stmt.Init = &ast.ExpressionStatement{Token: consumedIdent, Expression: expr}
		}
		if !p.expectPeek(lexer.SEMICOLON) {
			return nil
		}
	} else if p.curTokenIs(lexer.SEMICOLON) {
		// empty init
	} else {
		stmt.Init = p.parseSimpleStatement()
		if !p.curTokenIs(lexer.SEMICOLON) && !p.expectPeek(lexer.SEMICOLON) {
			return nil
		}
	}

	p.nextToken()
	if !p.curTokenIs(lexer.SEMICOLON) {
		stmt.Condition = p.parseExpression(LOWEST)
		if !p.expectPeek(lexer.SEMICOLON) {
			return nil
		}
	}

	p.nextToken()
	if !p.curTokenIs(lexer.RPAREN) {
		stmt.Post = p.parseSimpleStatement()
		if !p.expectPeek(lexer.RPAREN) {
			return nil
		}
	}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()

	return stmt
}

// parseSimpleStatement parses a bare expression (optionally an assignment)
// without consuming a trailing semicolon; used for for-loop init/post clauses.
func (p *Parser) parseSimpleStatement() ast.Statement {
	if p.curTokenIs(lexer.VAR) {
		stmt := &ast.VarStatement{Token: p.curToken}
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		if p.peekTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.nextToken()
			stmt.Value = p.parseExpression(LOWEST)
		}
		return stmt
	}
	expr := p.parseExpression(LOWEST)
	return &ast.ExpressionStatement{Token: p.curToken, Expression: expr}
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()

	return stmt
}

func (p *Parser) parseWithStatement() *ast.WithStatement {
	stmt := &ast.WithStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Object = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	p.nextToken()
	stmt.Body = p.parseStatement()

	return stmt
}

func (p *Parser) parseLabeledStatement() *ast.LabeledStatement {
	label := p.curToken.Literal
	tok := p.curToken
	p.nextToken() // consume ':'
	p.nextToken()
	body := p.parseStatement()
	return &ast.LabeledStatement{Token: tok, Label: label, Body: body}
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken.Type)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	// Assignment binds right-associatively and looser than everything else
	// the table models; handled here rather than via the precedence table so
	// `a = b = c` and `a.b = c` both fall out of the same recursive call.
	if precedence < ASSIGNMENT && p.peekTokenIs(lexer.ASSIGN) {
		switch leftExp.(type) {
		case *ast.Identifier, *ast.MemberExpression:
			tok := p.peekToken
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(LOWEST)
			leftExp = &ast.AssignmentExpression{Token: tok, Target: leftExp, Value: value}
		}
	}

	return leftExp
}

func (p *Parser) noPrefixParseFnError(t lexer.TokenType) {
	msg := fmt.Sprintf("no prefix parse function for %s found at line %d, column %d",
		t, p.curToken.Line, p.curToken.Column)
	p.errors = append(p.errors, msg)
}

// ---- Expression parse functions ----

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	lit := &ast.NumberLiteral{Token: p.curToken}
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as number", p.curToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parseNullLiteral() ast.Expression { return &ast.NullLiteral{Token: p.curToken} }
func (p *Parser) parseUndefinedLiteral() ast.Expression {
	return &ast.UndefinedLiteral{Token: p.curToken}
}
func (p *Parser) parseThisExpression() ast.Expression { return &ast.ThisExpression{Token: p.curToken} }

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parsePrefixUpdateExpression() ast.Expression {
	expr := &ast.UpdateExpression{Token: p.curToken, Operator: p.curToken.Literal, Prefix: true}
	p.nextToken()
	expr.Argument = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parsePostfixUpdateExpression(left ast.Expression) ast.Expression {
	return &ast.UpdateExpression{Token: p.curToken, Operator: p.curToken.Literal, Prefix: false, Argument: left}
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Function: function}
	exp.Arguments = p.parseExpressionList(lexer.RPAREN)
	return exp
}

func (p *Parser) parseNewExpression() ast.Expression {
	tok := p.curToken
	p.nextToken()
	callee := p.parseExpression(PREFIX)

	// The callee is parsed at PREFIX precedence, so a following `(` (CALL
	// precedence, which binds tighter) is consumed as a CallExpression; unwrap
	// it so the arguments belong to `new`, not a plain call of the constructed
	// object.
	if call, ok := callee.(*ast.CallExpression); ok {
		return &ast.NewExpression{Token: tok, Callee: call.Function, Arguments: call.Arguments}
	}
	return &ast.NewExpression{Token: tok, Callee: callee, Arguments: nil}
}

func (p *Parser) parseComputedMemberExpression(left ast.Expression) ast.Expression {
	exp := &ast.MemberExpression{Token: p.curToken, Object: left, Computed: true}
	p.nextToken()
	exp.Property = p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RBRACKET) {
		return nil
	}
	return exp
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	exp := &ast.MemberExpression{Token: p.curToken, Object: left, Computed: false}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	exp.Property = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	arr := &ast.ArrayLiteral{Token: p.curToken}
	arr.Elements = p.parseExpressionList(lexer.RBRACKET)
	return arr
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	obj := &ast.ObjectLiteral{Token: p.curToken}

	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()

		var key ast.Expression
		switch p.curToken.Type {
		case lexer.IDENT:
			key = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		case lexer.STRING:
			key = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
		default:
			p.errors = append(p.errors, fmt.Sprintf("expected object key, got %s", p.curToken.Type))
			return nil
		}

		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)

		obj.Keys = append(obj.Keys, key)
		obj.Values = append(obj.Values, value)

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		} else {
			break
		}
	}

	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}

	return obj
}

func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}
