package cpp

import "fmt"

// parseArguments reads the comma-separated, parenthesis-balanced argument
// list of a function-like macro invocation starting at tokens[startIdx]
// ('('). It returns each argument's trimmed token list and the index of
// the matching ')'.
func (e *Expander) parseArguments(tokens []Token, startIdx int, macro *Macro) ([][]Token, int, error) {
	i := startIdx + 1
	var args [][]Token
	var currentArg []Token
	parenDepth := 1

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Type == PP_PUNCTUATOR {
			switch tok.Text {
			case "(":
				parenDepth++
				currentArg = append(currentArg, tok)
			case ")":
				parenDepth--
				if parenDepth < 0 {
					return nil, 0, &UnbalancedParensError{Macro: macro.Name, Loc: tok.Loc}
				}
				if parenDepth == 0 {
					// The invocation's own argument list always yields one
					// argument per declared parameter (and one more for a
					// variadic's trailing group), even when it is empty --
					// F() against "#define F(x) x" is a single empty
					// argument, not zero arguments. A genuinely
					// zero-parameter macro's F() still yields zero.
					if len(currentArg) > 0 || len(args) > 0 || len(macro.Params) > 0 || macro.IsVariadic {
						args = append(args, trimWhitespace(currentArg))
					}
					if err := e.validateArgCount(macro, args); err != nil {
						return nil, 0, err
					}
					return args, i, nil
				}
				currentArg = append(currentArg, tok)
			case ",":
				if parenDepth == 1 {
					args = append(args, trimWhitespace(currentArg))
					currentArg = nil
				} else {
					currentArg = append(currentArg, tok)
				}
			default:
				currentArg = append(currentArg, tok)
			}
		} else {
			currentArg = append(currentArg, tok)
		}
		i++
	}

	return nil, 0, &UnterminatedInvocationError{Macro: macro.Name, Loc: tokens[startIdx].Loc}
}

// validateArgCount checks the number of arguments supplied against what
// macro declares. A variadic macro accepts any number of arguments past
// its named parameters; buildVAArgs joins them into __VA_ARGS__.
func (e *Expander) validateArgCount(macro *Macro, args [][]Token) error {
	expected := len(macro.Params)

	if macro.IsVariadic {
		if len(args) < expected {
			return fmt.Errorf("macro %s requires at least %d arguments, got %d",
				macro.Name, expected, len(args))
		}
	} else {
		if len(args) != expected {
			return fmt.Errorf("macro %s requires %d arguments, got %d",
				macro.Name, expected, len(args))
		}
	}
	return nil
}

// buildVAArgs joins the arguments beyond a variadic macro's named
// parameters into the single token list __VA_ARGS__ stands for.
func buildVAArgs(args [][]Token, numParams int) []Token {
	if len(args) <= numParams {
		return nil
	}

	var result []Token
	extraArgs := args[numParams:]
	for i, arg := range extraArgs {
		if i > 0 {
			result = append(result, Token{Type: PP_PUNCTUATOR, Text: ","})
			result = append(result, Token{Type: PP_WHITESPACE, Text: " "})
		}
		result = append(result, arg...)
	}
	return result
}

// trimWhitespace strips leading and trailing PP_WHITESPACE tokens.
func trimWhitespace(tokens []Token) []Token {
	start := 0
	for start < len(tokens) && tokens[start].Type == PP_WHITESPACE {
		start++
	}
	end := len(tokens)
	for end > start && tokens[end-1].Type == PP_WHITESPACE {
		end--
	}
	if start >= end {
		return nil
	}
	return tokens[start:end]
}
