// directive.go recognizes which preprocessing directive a '#' line
// spells and pulls out its payload (macro name and body, condition
// expression, header name, and so on) for preprocess.go and
// conditional.go to act on.
package cpp

import "strings"

// DirectiveType identifies the kind of directive a line holds.
type DirectiveType int

const (
	DIR_EMPTY DirectiveType = iota
	DIR_IF
	DIR_IFDEF
	DIR_IFNDEF
	DIR_ELIF
	DIR_ELSE
	DIR_ENDIF
	DIR_INCLUDE
	DIR_DEFINE
	DIR_UNDEF
	DIR_LINE
	DIR_LINEMARKER
	DIR_ERROR
	DIR_WARNING
	DIR_PRAGMA
)

// Directive is the parsed form of one line beginning with '#'. Only the
// fields relevant to dir.Type are populated.
type Directive struct {
	Type DirectiveType
	Loc  SourceLoc

	Identifier     string // #define/#undef/#ifdef/#ifndef name
	IsFunctionLike bool   // #define NAME(...) vs #define NAME
	Params         []string
	Variadic       bool
	Expression     []Token // replacement list / #if-#elif condition / computed #include

	HeaderName string // literal "<...>" or "\"...\"" spelling, #include

	LineNum  int    // #line
	FileName string // #line's optional new file name

	Message string // #error/#warning text

	PragmaTokens []Token // #pragma payload, unexpanded
}

// ParseDirectiveFromTokens classifies and parses the tokens of a
// directive line, not including the leading '#'. loc is the location of
// that '#'.
func ParseDirectiveFromTokens(tokens []Token, loc SourceLoc) (*Directive, error) {
	i := skipWhitespace(tokens, 0)

	if i >= len(tokens) || tokens[i].Type == PP_NEWLINE {
		return &Directive{Type: DIR_EMPTY, Loc: loc}, nil
	}

	if tokens[i].Type == PP_NUMBER {
		// GCC line marker: # <num> "file" flags...
		return &Directive{Type: DIR_LINEMARKER, Loc: loc}, nil
	}

	if tokens[i].Type != PP_IDENTIFIER {
		return nil, &ExpectedTokenError{Want: PP_IDENTIFIER, Got: tokens[i].Type, Loc: loc}
	}

	name := tokens[i].Text
	rest := i + 1

	switch name {
	case "if":
		return &Directive{Type: DIR_IF, Loc: loc, Expression: restOfLine(tokens, rest)}, nil
	case "elif":
		return &Directive{Type: DIR_ELIF, Loc: loc, Expression: restOfLine(tokens, rest)}, nil
	case "else":
		return &Directive{Type: DIR_ELSE, Loc: loc}, nil
	case "endif":
		return &Directive{Type: DIR_ENDIF, Loc: loc}, nil
	case "ifdef", "ifndef":
		id, _, err := expectIdentifier(tokens, rest, loc)
		if err != nil {
			return nil, err
		}
		dtype := DIR_IFDEF
		if name == "ifndef" {
			dtype = DIR_IFNDEF
		}
		return &Directive{Type: dtype, Loc: loc, Identifier: id}, nil
	case "include", "include_next":
		return parseInclude(tokens, rest, loc)
	case "define":
		return parseDefine(tokens, rest, loc)
	case "undef":
		id, _, err := expectIdentifier(tokens, rest, loc)
		if err != nil {
			return nil, err
		}
		return &Directive{Type: DIR_UNDEF, Loc: loc, Identifier: id}, nil
	case "line":
		return parseLine(tokens, rest, loc)
	case "error":
		return &Directive{Type: DIR_ERROR, Loc: loc, Message: directiveText(tokens, rest)}, nil
	case "warning":
		return &Directive{Type: DIR_WARNING, Loc: loc, Message: directiveText(tokens, rest)}, nil
	case "pragma":
		return &Directive{Type: DIR_PRAGMA, Loc: loc, PragmaTokens: trimWhitespace(restOfLine(tokens, rest))}, nil
	case "ident", "sccs", "assert", "unassert":
		// Vendor directives with no effect on expansion; swallow the line.
		return &Directive{Type: DIR_EMPTY, Loc: loc}, nil
	}

	return nil, &ExpectedTokenError{Want: PP_HASH, Got: tokens[i].Type, Loc: loc}
}

// parseInclude reads an #include directive's header name, preferring
// the literal <...> / "..." spelling and falling back to a macro
// expression for computed includes (#include SOME_MACRO).
func parseInclude(tokens []Token, start int, loc SourceLoc) (*Directive, error) {
	remainder := restOfLine(tokens, start)
	text := TokensToString(trimWhitespace(remainder))

	lex := NewLexer(text, loc.File)
	tok := lex.ScanHeaderName()
	if tok.Type == PP_HEADER_NAME {
		return &Directive{Type: DIR_INCLUDE, Loc: loc, HeaderName: tok.Text}, nil
	}

	return &Directive{Type: DIR_INCLUDE, Loc: loc, Expression: trimWhitespace(remainder)}, nil
}

// parseDefine reads a #define directive: the macro name, an optional
// parameter list with no whitespace between the name and '(', and the
// replacement list.
func parseDefine(tokens []Token, start int, loc SourceLoc) (*Directive, error) {
	id, next, err := expectIdentifier(tokens, start, loc)
	if err != nil {
		return nil, err
	}

	if next < len(tokens) && tokens[next].Type == PP_PUNCTUATOR && tokens[next].Text == "(" {
		params, variadic, afterParams, err := parseParamList(tokens, next+1, id, loc)
		if err != nil {
			return nil, err
		}
		body := trimWhitespace(restOfLine(tokens, afterParams))
		return &Directive{
			Type:           DIR_DEFINE,
			Loc:            loc,
			Identifier:     id,
			IsFunctionLike: true,
			Params:         params,
			Variadic:       variadic,
			Expression:     body,
		}, nil
	}

	body := trimWhitespace(restOfLine(tokens, next))
	return &Directive{Type: DIR_DEFINE, Loc: loc, Identifier: id, Expression: body}, nil
}

// parseParamList reads a function-like macro's formal parameter list,
// starting just after '('. Supports a trailing "..." for ISO variadic
// macros and accepts a trailing "name..." for the GNU named-variadic
// form; that name is not recorded, so the macro's trailing arguments
// reach its body only through __VA_ARGS__.
func parseParamList(tokens []Token, start int, macroName string, loc SourceLoc) ([]string, bool, int, error) {
	var params []string
	variadic := false
	i := skipWhitespace(tokens, start)

	if i < len(tokens) && tokens[i].Type == PP_PUNCTUATOR && tokens[i].Text == ")" {
		return nil, false, i + 1, nil
	}

	for {
		i = skipWhitespace(tokens, i)
		if i >= len(tokens) {
			return nil, false, 0, &UnbalancedParensError{Macro: macroName, Loc: loc}
		}

		if tokens[i].Type == PP_PUNCTUATOR && tokens[i].Text == "..." {
			variadic = true
			i++
		} else if tokens[i].Type == PP_IDENTIFIER {
			pname := tokens[i].Text
			i++
			j := skipWhitespace(tokens, i)
			if j < len(tokens) && tokens[j].Type == PP_PUNCTUATOR && tokens[j].Text == "..." {
				variadic = true
				i = j + 1
			} else {
				params = append(params, pname)
			}
		} else {
			return nil, false, 0, &ExpectedTokenError{Want: PP_IDENTIFIER, Got: tokens[i].Type, Loc: loc}
		}

		i = skipWhitespace(tokens, i)
		if i >= len(tokens) {
			return nil, false, 0, &UnbalancedParensError{Macro: macroName, Loc: loc}
		}
		if tokens[i].Type == PP_PUNCTUATOR && tokens[i].Text == ")" {
			return params, variadic, i + 1, nil
		}
		if tokens[i].Type == PP_PUNCTUATOR && tokens[i].Text == "," {
			i++
			continue
		}
		return nil, false, 0, &ExpectedTokenError{Want: PP_PUNCTUATOR, Got: tokens[i].Type, Loc: loc}
	}
}

// parseLine reads a #line directive's line number and optional file name.
func parseLine(tokens []Token, start int, loc SourceLoc) (*Directive, error) {
	i := skipWhitespace(tokens, start)
	if i >= len(tokens) || tokens[i].Type != PP_NUMBER {
		return nil, &ExpectedTokenError{Want: PP_NUMBER, Got: safeType(tokens, i), Loc: loc}
	}

	lineNum := 0
	for _, c := range tokens[i].Text {
		if c < '0' || c > '9' {
			break
		}
		lineNum = lineNum*10 + int(c-'0')
	}
	i++

	j := skipWhitespace(tokens, i)
	fileName := ""
	if j < len(tokens) && tokens[j].Type == PP_STRING {
		fileName = strings.Trim(tokens[j].Text, `"`)
	}

	return &Directive{Type: DIR_LINE, Loc: loc, LineNum: lineNum, FileName: fileName}, nil
}

// expectIdentifier skips whitespace starting at i and requires an
// identifier token, returning its text and the index just past it.
func expectIdentifier(tokens []Token, i int, loc SourceLoc) (string, int, error) {
	i = skipWhitespace(tokens, i)
	if i >= len(tokens) || tokens[i].Type != PP_IDENTIFIER {
		return "", 0, &ExpectedTokenError{Want: PP_IDENTIFIER, Got: safeType(tokens, i), Loc: loc}
	}
	return tokens[i].Text, i + 1, nil
}

// restOfLine returns tokens[start:], excluding a trailing PP_NEWLINE.
func restOfLine(tokens []Token, start int) []Token {
	end := len(tokens)
	if end > start && tokens[end-1].Type == PP_NEWLINE {
		end--
	}
	if start >= end {
		return nil
	}
	return tokens[start:end]
}

// directiveText renders the rest of the line back to source text, for
// #error and #warning payloads.
func directiveText(tokens []Token, start int) string {
	return strings.TrimSpace(TokensToString(restOfLine(tokens, start)))
}

// skipWhitespace returns the index of the first non-whitespace token at
// or after i.
func skipWhitespace(tokens []Token, i int) int {
	for i < len(tokens) && tokens[i].Type == PP_WHITESPACE {
		i++
	}
	return i
}

// safeType returns tokens[i]'s type, or PP_EOF if i is out of range.
func safeType(tokens []Token, i int) TokenType {
	if i < 0 || i >= len(tokens) {
		return PP_EOF
	}
	return tokens[i].Type
}
