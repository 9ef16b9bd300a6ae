package cpp

// registerBuiltins installs the built-in macros a translation unit has
// in scope by default. __FILE__ and __LINE__ are handled specially by
// the expander (they need the call-site location, not just any fixed
// body) and are registered here only so IsDefined/#ifdef see them. The
// other object-like built-ins carry a concrete BuiltinFunc body, and
// __builtin_va_end is an ordinary function-like macro with a
// Replacement list.
func registerBuiltins(mt *MacroTable) {
	loc := SourceLoc{File: "<built-in>"}

	mt.macros["__FILE__"] = &Macro{Name: "__FILE__", Kind: MacroBuiltin, DefinedAt: loc}
	mt.macros["__LINE__"] = &Macro{Name: "__LINE__", Kind: MacroBuiltin, DefinedAt: loc}

	define := func(name string, tok Token) {
		mt.macros[name] = &Macro{
			Name: name,
			Kind: MacroBuiltin,
			BuiltinFunc: func(useLoc SourceLoc) []Token {
				t := tok
				t.Loc = useLoc
				return []Token{t}
			},
			DefinedAt: loc,
		}
	}

	define("__STDC__", Token{Type: PP_NUMBER, Text: "1"})
	define("__STDC_HOSTED__", Token{Type: PP_NUMBER, Text: "1"})
	define("__STDC_VERSION__", Token{Type: PP_NUMBER, Text: "199409L"})
	define("__x86_64__", Token{Type: PP_NUMBER, Text: "1"})
	define("__inline", Token{Type: PP_IDENTIFIER, Text: "inline"})

	// __builtin_va_end(ap) exists only so code written against <stdarg.h>
	// preprocesses without an undefined-macro diagnostic for a builtin
	// real compilers implement outside cpp; it expands to the same
	// field-zeroing sequence glibc's own va_end no-op expands to.
	mt.macros["__builtin_va_end"] = &Macro{
		Name:        "__builtin_va_end",
		Kind:        MacroFunction,
		Params:      []string{"ap"},
		Replacement: parseBuiltinBody(vaEndBodyTemplate, loc),
		DefinedAt:   loc,
	}
}

// vaEndBodyTemplate is __builtin_va_end's replacement list, written with
// '@' standing in for its sole parameter. parseBuiltinBody turns that
// template into tokens once at registration time rather than hand-coding
// a fixed PP_PARAM count, so adding fields here never needs touching Go
// code that counts tokens.
const vaEndBodyTemplate = "@.reg_save_area=0;@.gp_offset=0;@.fp_offset=0;@.overflow_arg_area=0"

// parseBuiltinBody lexes template and rewrites each '@' into a PP_PARAM
// referencing parameter 0.
func parseBuiltinBody(template string, loc SourceLoc) []Token {
	lex := NewLexer(template, loc.File)
	var body []Token
	for {
		tok := lex.NextToken()
		if tok.Type == PP_EOF || tok.Type == PP_NEWLINE {
			break
		}
		if tok.Type == PP_WHITESPACE {
			continue
		}
		if tok.Type == PP_PUNCTUATOR && tok.Text == "@" {
			body = append(body, Token{Type: PP_PARAM, Param: 0, Loc: loc})
			continue
		}
		tok.Loc = loc
		body = append(body, tok)
	}
	return body
}
