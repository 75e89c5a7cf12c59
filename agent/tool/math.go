package tool

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	ToolMathEvaluate = "math.evaluate"
)

// Accepts digits, whitespace, decimal points, operators, and parentheses.
var mathExpressionPattern = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.]+$`)

type MathEvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// MathDescriptor describes the built-in arithmetic tool.
func MathDescriptor() Descriptor {
	return Descriptor{
		Name:        ToolMathEvaluate,
		Description: "Evaluate an arithmetic expression with + - * / % ^ and parentheses.",
		RequiredArgs: []Param{
			{Name: "expression", Type: ParamString, Description: "Expression to evaluate"},
		},
		ReturnType: "math_result",
		Invoke:     evaluateMathTool,
	}
}

func evaluateMathTool(_ context.Context, args map[string]any) (any, error) {
	expression, ok := args["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string")
	}
	expression = strings.TrimSpace(expression)

	result, err := EvaluateExpression(expression)
	if err != nil {
		return nil, err
	}
	return MathEvaluateOutput{Expression: expression, Result: result}, nil
}

// EvaluateExpression evaluates expression with the usual precedence; ^ is
// right-associative and binds tighter than unary minus on its left operand.
func EvaluateExpression(expression string) (float64, error) {
	if expression == "" {
		return 0, fmt.Errorf("expression is empty")
	}
	if !mathExpressionPattern.MatchString(expression) {
		return 0, fmt.Errorf("expression contains invalid characters")
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}
	ev := &evaluator{tokens: tokens}
	value, err := ev.binary(0)
	if err != nil {
		return 0, err
	}
	if ev.pos < len(ev.tokens) {
		return 0, fmt.Errorf("unexpected token %q", ev.tokens[ev.pos].text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

type mathToken struct {
	op   byte
	num  float64
	text string
}

func tokenize(expression string) ([]mathToken, error) {
	var tokens []mathToken
	for i := 0; i < len(expression); {
		ch := expression[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case (ch >= '0' && ch <= '9') || ch == '.':
			start := i
			for i < len(expression) && ((expression[i] >= '0' && expression[i] <= '9') || expression[i] == '.') {
				i++
			}
			raw := expression[start:i]
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", raw)
			}
			tokens = append(tokens, mathToken{num: value, text: raw})
		default:
			tokens = append(tokens, mathToken{op: ch, text: string(ch)})
			i++
		}
	}
	return tokens, nil
}

var binaryPrecedence = map[byte]int{
	'+': 1, '-': 1,
	'*': 2, '/': 2, '%': 2,
	'^': 4,
}

type evaluator struct {
	tokens []mathToken
	pos    int
}

func (e *evaluator) peekOp() (byte, bool) {
	if e.pos >= len(e.tokens) || e.tokens[e.pos].op == 0 {
		return 0, false
	}
	return e.tokens[e.pos].op, true
}

// binary implements precedence climbing over binaryPrecedence.
func (e *evaluator) binary(minPrec int) (float64, error) {
	left, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := e.peekOp()
		prec, isBinary := binaryPrecedence[op]
		if !ok || !isBinary || prec < minPrec {
			return left, nil
		}
		e.pos++

		next := prec + 1
		if op == '^' {
			next = prec
		}
		right, err := e.binary(next)
		if err != nil {
			return 0, err
		}
		if left, err = apply(op, left, right); err != nil {
			return 0, err
		}
	}
}

func (e *evaluator) unary() (float64, error) {
	if op, ok := e.peekOp(); ok && (op == '-' || op == '+') {
		e.pos++
		// unary minus sits between multiplicative operators and ^
		value, err := e.binary(3)
		if err != nil {
			return 0, err
		}
		if op == '-' {
			return -value, nil
		}
		return value, nil
	}
	return e.primary()
}

func (e *evaluator) primary() (float64, error) {
	if e.pos >= len(e.tokens) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	tok := e.tokens[e.pos]
	if tok.op == 0 {
		e.pos++
		return tok.num, nil
	}
	if tok.op != '(' {
		return 0, fmt.Errorf("unexpected token %q", tok.text)
	}
	e.pos++
	value, err := e.binary(0)
	if err != nil {
		return 0, err
	}
	if op, ok := e.peekOp(); !ok || op != ')' {
		return 0, fmt.Errorf("missing closing parenthesis")
	}
	e.pos++
	return value, nil
}

func apply(op byte, left, right float64) (float64, error) {
	switch op {
	case '+':
		return left + right, nil
	case '-':
		return left - right, nil
	case '*':
		return left * right, nil
	case '/':
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return left / right, nil
	case '%':
		if right == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return math.Mod(left, right), nil
	case '^':
		return math.Pow(left, right), nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}
