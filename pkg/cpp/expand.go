// expand.go implements the top-level macro expander: rescanning the
// token stream, dispatching object/function/built-in macros, and
// substituting PP_PARAM tokens into a function-like macro's replacement.
package cpp

import "fmt"

// Expander rewrites a token stream by repeatedly substituting macro
// invocations until no macro name in scope remains unexpanded.
type Expander struct {
	macros *MacroTable
	stack  *expansionStack
	loc    SourceLoc // current expansion location, for __FILE__/__LINE__
}

// NewExpander creates an expander backed by macros.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{
		macros: macros,
		stack:  newExpansionStack(),
	}
}

// Expand expands every macro invocation in tokens.
func (e *Expander) Expand(tokens []Token) ([]Token, error) {
	return e.expandTokens(tokens)
}

// ExpandWithLoc expands tokens, attributing __FILE__/__LINE__ to loc.
func (e *Expander) ExpandWithLoc(tokens []Token, loc SourceLoc) ([]Token, error) {
	e.loc = loc
	return e.expandTokens(tokens)
}

// expandTokens is the rescanning pass: it walks tokens once, and for
// every identifier naming an in-scope, not-currently-expanding macro,
// substitutes its expansion in place before continuing the walk.
func (e *Expander) expandTokens(tokens []Token) ([]Token, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	result := make([]Token, 0, len(tokens))
	i := 0

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Type != PP_IDENTIFIER {
			result = append(result, tok)
			i++
			continue
		}

		macro := e.macros.Lookup(tok.Text)
		if macro == nil || e.stack.contains(tok.Text) {
			result = append(result, tok)
			i++
			continue
		}

		if macro.Kind == MacroBuiltin {
			expanded, err := e.expandBuiltin(macro, tok.Loc)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			i++
			continue
		}

		if macro.Kind == MacroFunction {
			parenIdx := i + 1
			for parenIdx < len(tokens) && tokens[parenIdx].Type == PP_WHITESPACE {
				parenIdx++
			}
			if parenIdx >= len(tokens) || tokens[parenIdx].Type != PP_PUNCTUATOR || tokens[parenIdx].Text != "(" {
				// Not followed by '(': a function-like macro name used
				// bare is not an invocation and passes through untouched.
				result = append(result, tok)
				i++
				continue
			}

			args, endIdx, err := e.parseArguments(tokens, parenIdx, macro)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", tok.Loc.File, tok.Loc.Line, err)
			}

			expanded, err := e.expandFunctionMacro(macro, args, tok.Loc)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			i = endIdx + 1
			continue
		}

		expanded, err := e.expandObjectMacro(macro, tok.Loc)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
		i++
	}

	return result, nil
}

// expandBuiltin computes a built-in macro's replacement for the current
// expansion location.
func (e *Expander) expandBuiltin(macro *Macro, loc SourceLoc) ([]Token, error) {
	useLoc := loc
	if e.loc.File != "" {
		useLoc = e.loc
	}

	switch macro.Name {
	case "__FILE__":
		return e.macros.GetFileToken(useLoc), nil
	case "__LINE__":
		return e.macros.GetLineToken(useLoc), nil
	default:
		if macro.BuiltinFunc != nil {
			return macro.BuiltinFunc(useLoc), nil
		}
		return nil, fmt.Errorf("built-in macro %s has no implementation", macro.Name)
	}
}

// expandObjectMacro substitutes an object-like macro's replacement list
// and rescans the result.
func (e *Expander) expandObjectMacro(macro *Macro, loc SourceLoc) ([]Token, error) {
	if len(macro.Replacement) == 0 {
		return nil, nil
	}

	pop := e.stack.push(macro.Name)
	defer pop()

	replacement := make([]Token, len(macro.Replacement))
	for i, tok := range macro.Replacement {
		replacement[i] = tok
		replacement[i].Loc = loc
	}

	replacement, err := pasteTokens(replacement)
	if err != nil {
		return nil, err
	}

	return e.expandTokens(replacement)
}

// expandFunctionMacro substitutes args into macro's replacement list
// (stringifying # operands, pasting ## operands, and fully expanding
// every other parameter occurrence before splicing it in) and rescans
// the result.
func (e *Expander) expandFunctionMacro(macro *Macro, args [][]Token, loc SourceLoc) ([]Token, error) {
	// macro.Name enters the hideset before argument substitution begins,
	// per the textbook expand() step order: push, substitute (expanding
	// each non-pasted argument as it is spliced in), paste, rescan, pop.
	// A self-referential argument such as MAX(MAX(1,2),3) therefore sees
	// MAX already hidden and is left unexpanded, matching the original
	// engine's output rather than treating the inner call as independent.
	pop := e.stack.push(macro.Name)
	defer pop()

	params := make([][]Token, len(macro.Params), len(macro.Params)+1)
	for i := range macro.Params {
		if i < len(args) {
			params[i] = args[i]
		}
	}
	if macro.IsVariadic {
		params = append(params, buildVAArgs(args, len(macro.Params)))
	}

	replacement := macro.Replacement
	result := make([]Token, 0, len(replacement))
	i := 0

	for i < len(replacement) {
		tok := replacement[i]

		// A '#' lexes as PP_HASH at the start of a line and as a
		// PP_PUNCTUATOR mid-line (as in a #define's replacement list).
		if tok.Type == PP_HASH || (tok.Type == PP_PUNCTUATOR && tok.Text == "#") {
			nextIdx := i + 1
			for nextIdx < len(replacement) && replacement[nextIdx].Type == PP_WHITESPACE {
				nextIdx++
			}
			if nextIdx < len(replacement) && replacement[nextIdx].Type == PP_PARAM {
				result = append(result, stringify(paramArg(params, replacement[nextIdx].Param), loc))
				i = nextIdx + 1
				continue
			}
		}

		if tok.Type == PP_PARAM {
			arg := paramArg(params, tok.Param)

			beforePaste := pasteOpBefore(replacement, i)
			afterPaste := pasteOpAfter(replacement, i)

			if beforePaste || afterPaste {
				if len(arg) == 0 {
					result = append(result, Token{Type: PP_PLACEHOLDER, Loc: loc})
				}
				for _, pt := range arg {
					pt.Loc = loc
					result = append(result, pt)
				}
			} else {
				expanded, err := e.expandTokens(arg)
				if err != nil {
					return nil, err
				}
				for _, pt := range expanded {
					pt.Loc = loc
					result = append(result, pt)
				}
			}
			i++
			continue
		}

		newTok := tok
		newTok.Loc = loc
		result = append(result, newTok)
		i++
	}

	result, err := pasteTokens(result)
	if err != nil {
		return nil, err
	}

	return e.expandTokens(result)
}

// paramArg returns the argument bound to formal parameter index idx, or
// nil if idx is out of range.
func paramArg(params [][]Token, idx int) []Token {
	if idx < 0 || idx >= len(params) {
		return nil
	}
	return params[idx]
}

// ExpandString lexes input, expands it, and renders the result back to
// source text -- a convenience entry point for tests and the REPL-style
// uses of the engine.
func (e *Expander) ExpandString(input string) (string, error) {
	lex := NewLexer(input, "<string>")
	tokens := lex.AllTokens()

	if len(tokens) > 0 && tokens[len(tokens)-1].Type == PP_EOF {
		tokens = tokens[:len(tokens)-1]
	}

	expanded, err := e.Expand(tokens)
	if err != nil {
		return "", err
	}

	return TokensToString(expanded), nil
}
