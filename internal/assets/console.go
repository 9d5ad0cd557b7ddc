package assets

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

const (
	consoleIdentifierConstant       = "console"
	emptyStatementConstant          = ";"
	consoleLexErrorTemplateConstant = "assets.scripts drop console: %w"
)

type scriptToken struct {
	kind js.TokenType
	text string
}

// DropConsoleStatements removes expression statements of the form console.method(...). A call that
// is part of a larger expression is kept. A call that is the only body of if, else, do or a loop
// header is replaced by an empty statement. Lines left blank by a removal are dropped.
func DropConsoleStatements(script string) (string, error) {
	tokens, lexError := lexScript(script)
	if lexError != nil {
		return "", fmt.Errorf(consoleLexErrorTemplateConstant, lexError)
	}

	dropped := make([]bool, len(tokens))
	replacements := make(map[int]string)
	for tokenIndex := 0; tokenIndex < len(tokens); tokenIndex++ {
		if !isConsoleIdentifier(tokens[tokenIndex]) {
			continue
		}
		boundary, needsEmptyStatement := statementBoundary(tokens, dropped, tokenIndex)
		if !boundary {
			continue
		}
		statementEnd, isStatement := consoleStatementEnd(tokens, tokenIndex)
		if !isStatement {
			continue
		}

		for dropIndex := tokenIndex; dropIndex < statementEnd; dropIndex++ {
			dropped[dropIndex] = true
		}
		if needsEmptyStatement {
			dropped[tokenIndex] = false
			tokens[tokenIndex] = scriptToken{kind: js.SemicolonToken, text: emptyStatementConstant}
			tokenIndex = statementEnd - 1
			continue
		}

		for statementEnd < len(tokens) && tokens[statementEnd].kind == js.WhitespaceToken {
			dropped[statementEnd] = true
			statementEnd++
		}
		lineStart := tokenIndex
		for lineStart > 0 && tokens[lineStart-1].kind == js.WhitespaceToken {
			lineStart--
		}
		startsLine := lineStart == 0 || tokens[lineStart-1].kind == js.LineTerminatorToken
		endsLine := statementEnd == len(tokens) || tokens[statementEnd].kind == js.LineTerminatorToken
		if startsLine && endsLine {
			for dropIndex := lineStart; dropIndex < tokenIndex; dropIndex++ {
				dropped[dropIndex] = true
			}
			if statementEnd < len(tokens) {
				replacements[statementEnd] = trimFirstLineTerminator(tokens[statementEnd].text)
			}
		}
		tokenIndex = statementEnd - 1
	}

	var stripped strings.Builder
	stripped.Grow(len(script))
	for tokenIndex, token := range tokens {
		if dropped[tokenIndex] {
			continue
		}
		if replacement, replaced := replacements[tokenIndex]; replaced {
			stripped.WriteString(replacement)
			continue
		}
		stripped.WriteString(token.text)
	}
	return stripped.String(), nil
}

func lexScript(script string) ([]scriptToken, error) {
	lexer := js.NewLexer(parse.NewInputString(script))
	tokens := make([]scriptToken, 0)
	previousSignificant := js.ErrorToken
	for {
		kind, data := lexer.Next()
		if kind == js.ErrorToken {
			if lexError := lexer.Err(); lexError != nil && !errors.Is(lexError, io.EOF) {
				return nil, lexError
			}
			return tokens, nil
		}
		if (kind == js.DivToken || kind == js.DivEqToken) && !endsOperand(previousSignificant) {
			kind, data = lexer.RegExp()
			if kind == js.ErrorToken {
				return nil, lexer.Err()
			}
		}
		tokens = append(tokens, scriptToken{kind: kind, text: string(data)})
		if isSignificant(kind) {
			previousSignificant = kind
		}
	}
}

// statementBoundary reports whether a statement may start at tokenIndex, looking back past dropped
// tokens. The second result is set when the statement is the body of a control clause.
func statementBoundary(tokens []scriptToken, dropped []bool, tokenIndex int) (bool, bool) {
	crossedLine := false
	for previousIndex := tokenIndex - 1; previousIndex >= 0; previousIndex-- {
		if dropped[previousIndex] {
			continue
		}
		previous := tokens[previousIndex]
		if !isSignificant(previous.kind) {
			crossedLine = crossedLine || isLineBreak(previous.kind)
			continue
		}
		switch previous.kind {
		case js.SemicolonToken, js.OpenBraceToken, js.CloseBraceToken:
			return true, false
		case js.CloseParenToken, js.ElseToken, js.DoToken:
			return true, true
		}
		return crossedLine && endsOperand(previous.kind), false
	}
	return true, false
}

// consoleStatementEnd returns the index just past console.method(...) and its optional semicolon.
func consoleStatementEnd(tokens []scriptToken, consoleIndex int) (int, bool) {
	dotIndex := nextSignificant(tokens, consoleIndex+1)
	if dotIndex == len(tokens) || tokens[dotIndex].kind != js.DotToken {
		return 0, false
	}
	methodIndex := nextSignificant(tokens, dotIndex+1)
	if methodIndex == len(tokens) || !js.IsIdentifierName(tokens[methodIndex].kind) {
		return 0, false
	}
	openIndex := nextSignificant(tokens, methodIndex+1)
	if openIndex == len(tokens) || tokens[openIndex].kind != js.OpenParenToken {
		return 0, false
	}

	closeIndex := -1
	depth := 0
	for scanIndex := openIndex; scanIndex < len(tokens) && closeIndex < 0; scanIndex++ {
		switch tokens[scanIndex].kind {
		case js.OpenParenToken, js.OpenBracketToken, js.OpenBraceToken:
			depth++
		case js.CloseParenToken, js.CloseBracketToken, js.CloseBraceToken:
			depth--
			if depth == 0 {
				closeIndex = scanIndex
			}
		}
	}
	if closeIndex < 0 || tokens[closeIndex].kind != js.CloseParenToken {
		return 0, false
	}

	crossedLine := false
	followingIndex := closeIndex + 1
	for ; followingIndex < len(tokens) && !isSignificant(tokens[followingIndex].kind); followingIndex++ {
		crossedLine = crossedLine || isLineBreak(tokens[followingIndex].kind)
	}
	switch {
	case followingIndex == len(tokens):
		return closeIndex + 1, true
	case tokens[followingIndex].kind == js.SemicolonToken:
		return followingIndex + 1, true
	case tokens[followingIndex].kind == js.CloseBraceToken:
		return closeIndex + 1, true
	case crossedLine && !continuesExpression(tokens[followingIndex].kind):
		return closeIndex + 1, true
	}
	return 0, false
}

func nextSignificant(tokens []scriptToken, startIndex int) int {
	for index := startIndex; index < len(tokens); index++ {
		if isSignificant(tokens[index].kind) {
			return index
		}
	}
	return len(tokens)
}

func isConsoleIdentifier(token scriptToken) bool {
	return token.kind == js.IdentifierToken && token.text == consoleIdentifierConstant
}

func isSignificant(kind js.TokenType) bool {
	switch kind {
	case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
		return false
	}
	return true
}

func isLineBreak(kind js.TokenType) bool {
	return kind == js.LineTerminatorToken || kind == js.CommentLineTerminatorToken
}

// endsOperand reports whether a token can close an operand, so a following slash divides.
func endsOperand(kind js.TokenType) bool {
	if js.IsIdentifier(kind) || js.IsNumeric(kind) {
		return true
	}
	switch kind {
	case js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken, js.PrivateIdentifierToken,
		js.CloseParenToken, js.CloseBracketToken, js.CloseBraceToken, js.IncrToken, js.DecrToken,
		js.ThisToken, js.SuperToken, js.NullToken, js.TrueToken, js.FalseToken:
		return true
	}
	return false
}

// continuesExpression reports whether a token on the next line extends the preceding call.
func continuesExpression(kind js.TokenType) bool {
	switch kind {
	case js.IncrToken, js.DecrToken, js.NotToken, js.BitNotToken:
		return false
	case js.DotToken, js.OpenParenToken, js.OpenBracketToken, js.QuestionToken, js.CommaToken, js.ArrowToken,
		js.TemplateToken, js.TemplateStartToken, js.InToken, js.InstanceofToken:
		return true
	}
	return js.IsOperator(kind)
}

func trimFirstLineTerminator(text string) string {
	for _, terminator := range []string{"\r\n", "\n", "\r", "\u2028", "\u2029"} {
		if strings.HasPrefix(text, terminator) {
			return text[len(terminator):]
		}
	}
	return text
}
