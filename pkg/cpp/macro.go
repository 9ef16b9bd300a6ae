// macro.go implements the macro table: storage, lookup, definition,
// and redefinition-equivalence checking for #define/#undef.
package cpp

import (
	"fmt"
	"strings"
)

// MacroKind distinguishes object-like macros from function-like macros
// and from the built-ins the registrar installs.
type MacroKind int

const (
	MacroObject MacroKind = iota
	MacroFunction
	MacroBuiltin
)

// Macro is a stored macro definition. Replacement has already had every
// occurrence of a formal parameter rewritten to a PP_PARAM token whose
// Param field is the parameter's zero-based index; the expander never
// looks Params up by name during substitution.
type Macro struct {
	Name        string
	Kind        MacroKind
	Params      []string
	IsVariadic  bool
	Replacement []Token
	BuiltinFunc func(SourceLoc) []Token
	DefinedAt   SourceLoc
}

// MacroTable owns every macro definition for one translation unit.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable creates a macro table pre-populated with the built-in
// macros every translation unit starts with (__LINE__, __FILE__,
// __STDC__, and friends; see builtins.go).
func NewMacroTable() *MacroTable {
	mt := &MacroTable{macros: make(map[string]*Macro)}
	registerBuiltins(mt)
	return mt
}

// DefineObject installs an object-like macro. body is the raw,
// un-rewritten replacement list (object-like macros have no parameters,
// so there is nothing to encode as PP_PARAM).
func (mt *MacroTable) DefineObject(name string, body []Token, loc SourceLoc) error {
	m := &Macro{
		Name:        name,
		Kind:        MacroObject,
		Replacement: copyTokens(body),
		DefinedAt:   loc,
	}
	return mt.define(m)
}

// DefineFunction installs a function-like macro. The stored replacement
// is a copy of body in which every identifier matching a parameter name
// (and every stringify operand naming one) becomes a PP_PARAM token
// carrying that parameter's index; body itself is not modified.
// __VA_ARGS__ is treated as an implicit trailing parameter when variadic
// is true.
func (mt *MacroTable) DefineFunction(name string, params []string, variadic bool, body []Token, loc SourceLoc) error {
	index := make(map[string]int, len(params)+1)
	for i, p := range params {
		index[p] = i
	}
	if variadic {
		index["__VA_ARGS__"] = len(params)
	}

	replacement := encodeParams(body, index)

	m := &Macro{
		Name:        name,
		Kind:        MacroFunction,
		Params:      append([]string(nil), params...),
		IsVariadic:  variadic,
		Replacement: replacement,
		DefinedAt:   loc,
	}
	return mt.define(m)
}

// encodeParams rewrites identifiers naming a formal parameter into
// PP_PARAM tokens, per Macro's documented invariant.
func encodeParams(body []Token, index map[string]int) []Token {
	out := make([]Token, len(body))
	for i, tok := range body {
		if tok.Type == PP_IDENTIFIER {
			if paramIdx, ok := index[tok.Text]; ok {
				out[i] = Token{Type: PP_PARAM, Param: paramIdx, Loc: tok.Loc}
				continue
			}
		}
		out[i] = tok
	}
	return out
}

// DefineSimple tokenizes value and installs name as an object-like macro
// whose replacement is the resulting token list; value == "" defines
// name to an empty replacement list. See ApplyCmdlineDefines for the
// command-line convention of a bare "-D NAME" (no "=") meaning "=1".
func (mt *MacroTable) DefineSimple(name, value string, loc SourceLoc) error {
	lex := NewLexer(value, loc.File)
	var body []Token
	for {
		tok := lex.NextToken()
		if tok.Type == PP_EOF || tok.Type == PP_NEWLINE {
			break
		}
		if tok.Type == PP_WHITESPACE {
			continue
		}
		tok.Loc = loc
		body = append(body, tok)
	}
	return mt.DefineObject(name, body, loc)
}

// DefineFromDirective installs the macro described by a parsed #define
// directive (see directive.go).
func (mt *MacroTable) DefineFromDirective(dir *Directive) error {
	if dir.Type != DIR_DEFINE {
		return fmt.Errorf("%s:%d: not a #define directive", dir.Loc.File, dir.Loc.Line)
	}
	if dir.IsFunctionLike {
		return mt.DefineFunction(dir.Identifier, dir.Params, dir.Variadic, dir.Expression, dir.Loc)
	}
	return mt.DefineObject(dir.Identifier, dir.Expression, dir.Loc)
}

// define inserts m, enforcing structural-equivalence-or-reject semantics
// on redefinition (spec: define(m); define(m) succeeds silently; define(m)
// followed by a non-equivalent define(m') is a RedefinitionMismatchError).
func (mt *MacroTable) define(m *Macro) error {
	existing, ok := mt.macros[m.Name]
	if ok {
		if macroEquivalent(existing, m) {
			return nil
		}
		return &RedefinitionMismatchError{Name: m.Name, Loc: m.DefinedAt}
	}
	mt.macros[m.Name] = m
	return nil
}

// macroEquivalent implements the structural-equivalence relation of
// spec §4.1: same kind, params, name, replacement length, and pairwise
// token equality (§4.8) of every replacement token.
func macroEquivalent(a, b *Macro) bool {
	if a.Kind != b.Kind || a.Name != b.Name || a.IsVariadic != b.IsVariadic {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	if len(a.Replacement) != len(b.Replacement) {
		return false
	}
	for i := range a.Replacement {
		if !tokenEqual(a.Replacement[i], b.Replacement[i]) {
			return false
		}
	}
	return true
}

// tokenEqual implements spec §4.8's token equality relation.
func tokenEqual(a, b Token) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == PP_PARAM {
		return a.Param == b.Param
	}
	return a.Text == b.Text
}

// Undefine removes name's mapping, if any. A no-op for non-identifiers
// is not representable here since name is already a bare string.
func (mt *MacroTable) Undefine(name string) {
	delete(mt.macros, name)
}

// IsDefined reports whether name currently has a macro mapping.
func (mt *MacroTable) IsDefined(name string) bool {
	_, ok := mt.macros[name]
	return ok
}

// Lookup returns the stored macro for name, or nil. Callers that are
// about to expand __LINE__ must use GetLineToken instead of reading
// Replacement directly: the on-read rewrite is not materialized here.
func (mt *MacroTable) Lookup(name string) *Macro {
	return mt.macros[name]
}

// GetFileToken computes __FILE__'s current replacement: a single STRING
// token holding the quoted current file path.
func (mt *MacroTable) GetFileToken(loc SourceLoc) []Token {
	return []Token{{Type: PP_STRING, Text: `"` + loc.File + `"`, Loc: loc}}
}

// GetLineToken computes __LINE__'s current replacement: a single NUMBER
// token holding the current source line. This is the "virtual
// replacement computed on lookup" Design Notes §9 calls for, rather than
// mutation of a stored Macro.
func (mt *MacroTable) GetLineToken(loc SourceLoc) []Token {
	return []Token{{Type: PP_NUMBER, Text: fmt.Sprintf("%d", loc.Line), Loc: loc}}
}

// ApplyCmdlineDefines applies -D and -U style command-line macro
// definitions/undefinitions in the order a driver would: all defines,
// then all undefines, matching cc's documented -D/-U evaluation order
// when both name the same macro.
func (mt *MacroTable) ApplyCmdlineDefines(defines []string, undefines []string) error {
	for _, d := range defines {
		name, value := d, "1" // bare "-D NAME" means "=1"
		if idx := strings.IndexByte(d, '='); idx >= 0 {
			name, value = d[:idx], d[idx+1:]
		}
		if err := mt.DefineSimple(name, value, SourceLoc{File: "<command-line>"}); err != nil {
			return err
		}
	}
	for _, name := range undefines {
		mt.Undefine(name)
	}
	return nil
}

// copyTokens returns a fresh slice so a stored Macro never aliases a
// caller's backing array.
func copyTokens(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	copy(out, tokens)
	return out
}
