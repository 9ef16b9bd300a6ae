package cpp

import "errors"

// pasteTokens implements the ## operator: each PP_HASHHASH fuses the
// token to its left with the token to its right into the spelling of a
// single new token, which is then re-lexed. A PP_PLACEHOLDER operand
// (the result of substituting an empty argument) vanishes rather than
// being pasted, per the empty-argument resolution in SPEC_FULL.md §4.5.
func pasteTokens(tokens []Token) ([]Token, error) {
	var result []Token
	i := 0

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Type == PP_HASHHASH {
			// Whitespace around ## is not part of either operand.
			for len(result) > 0 && result[len(result)-1].Type == PP_WHITESPACE {
				result = result[:len(result)-1]
			}
			if len(result) == 0 {
				return nil, &PasteAtBoundaryError{AtStart: true, Loc: tok.Loc}
			}

			nextIdx := i + 1
			for nextIdx < len(tokens) && tokens[nextIdx].Type == PP_WHITESPACE {
				nextIdx++
			}
			if nextIdx >= len(tokens) {
				return nil, &PasteAtBoundaryError{AtStart: false, Loc: tok.Loc}
			}

			leftTok := result[len(result)-1]
			rightTok := tokens[nextIdx]
			result = result[:len(result)-1]

			if leftTok.Type == PP_PLACEHOLDER {
				result = append(result, rightTok)
				i = nextIdx + 1
				continue
			}
			if rightTok.Type == PP_PLACEHOLDER {
				result = append(result, leftTok)
				i = nextIdx + 1
				continue
			}

			pastedText := leftTok.Text + rightTok.Text
			pastedTokens, err := retokenizePaste(pastedText, leftTok.Loc)
			if err != nil {
				return nil, &InvalidPasteResultError{Left: leftTok.Text, Right: rightTok.Text, Loc: leftTok.Loc}
			}
			if len(pastedTokens) == 0 {
				result = append(result, Token{Type: PP_PLACEHOLDER, Text: "", Loc: leftTok.Loc})
			} else {
				result = append(result, pastedTokens...)
			}

			i = nextIdx + 1
			continue
		}

		result = append(result, tok)
		i++
	}

	filtered := result[:0]
	for _, tok := range result {
		if tok.Type != PP_PLACEHOLDER {
			filtered = append(filtered, tok)
		}
	}

	return filtered, nil
}

// retokenizePaste lexes text and rejects a fusion that does not
// re-tokenize into exactly one preprocessing token, per the C standard's
// "undefined behavior" clause for ## results that aren't valid tokens --
// here surfaced as InvalidPasteResultError instead.
func retokenizePaste(text string, loc SourceLoc) ([]Token, error) {
	if text == "" {
		return nil, nil
	}

	lex := NewLexer(text, loc.File)
	var tokens []Token
	for {
		tok := lex.NextToken()
		if tok.Type == PP_EOF || tok.Type == PP_NEWLINE {
			break
		}
		if tok.Type != PP_WHITESPACE {
			tok.Loc = loc
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) > 1 {
		return nil, errMultiTokenPaste
	}
	return tokens, nil
}

// isPasteOp reports whether tok is the ## operator.
func isPasteOp(tok Token) bool {
	return tok.Type == PP_HASHHASH
}

// pasteOpBefore reports whether the token at index i is immediately
// preceded by ##, ignoring intervening whitespace -- "a ## b" binds the
// same as "a##b".
func pasteOpBefore(tokens []Token, i int) bool {
	j := i - 1
	for j >= 0 && tokens[j].Type == PP_WHITESPACE {
		j--
	}
	return j >= 0 && isPasteOp(tokens[j])
}

// pasteOpAfter is pasteOpBefore's mirror, looking forward from i.
func pasteOpAfter(tokens []Token, i int) bool {
	j := i + 1
	for j < len(tokens) && tokens[j].Type == PP_WHITESPACE {
		j++
	}
	return j < len(tokens) && isPasteOp(tokens[j])
}

var errMultiTokenPaste = errors.New("paste result is not a single token")
