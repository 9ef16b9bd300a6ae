package cpp

import "strings"

// stringify implements the # operator: render tokens as the spelling of
// a single string literal, collapsing internal whitespace runs to one
// space and escaping '"' and '\' the way the C standard requires inside
// string and character constant spellings.
func stringify(tokens []Token, loc SourceLoc) Token {
	var sb strings.Builder
	sb.WriteByte('"')

	lastWasSpace := true // leading whitespace is dropped, not emitted
	for _, tok := range tokens {
		if tok.Type == PP_WHITESPACE || tok.Type == PP_NEWLINE {
			if !lastWasSpace {
				sb.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		lastWasSpace = false

		if tok.Type == PP_STRING || tok.Type == PP_CHAR_CONST {
			for _, c := range tok.Text {
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(c)
			}
		} else {
			sb.WriteString(tok.Text)
		}
	}

	str := sb.String()
	if strings.HasSuffix(str, " ") {
		str = str[:len(str)-1]
	}
	str += "\""

	return Token{Type: PP_STRING, Text: str, Loc: loc}
}
