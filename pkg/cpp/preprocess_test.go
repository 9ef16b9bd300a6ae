package cpp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreprocessor_SimpleFile(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	result, err := pp.PreprocessString("int x = 42;\n", "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "int x = 42;") {
		t.Errorf("expected 'int x = 42;' in output, got: %s", result)
	}
}

func TestPreprocessor_DefineExpansion(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	source := `#define VALUE 123
int x = VALUE;
`
	result, err := pp.PreprocessString(source, "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "int x = 123;") {
		t.Errorf("expected 'int x = 123;' in output, got: %s", result)
	}
}

func TestPreprocessor_ConditionalCompilation(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	source := `#define FEATURE 1
#if FEATURE
int feature_enabled;
#else
int feature_disabled;
#endif
`
	result, err := pp.PreprocessString(source, "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "feature_enabled") {
		t.Errorf("expected 'feature_enabled' in output, got: %s", result)
	}
	if strings.Contains(result, "feature_disabled") {
		t.Errorf("did not expect 'feature_disabled' in output, got: %s", result)
	}
}

func TestPreprocessor_IncludeQuoted(t *testing.T) {
	// Create temp directory with files
	tmpDir := t.TempDir()
	
	// Create header file
	headerContent := `#ifndef HEADER_H
#define HEADER_H
int from_header;
#endif
`
	if err := os.WriteFile(filepath.Join(tmpDir, "header.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Create main file
	mainContent := `#include "header.h"
int main_code;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "from_header") {
		t.Errorf("expected 'from_header' from included file, got: %s", result)
	}
	if !strings.Contains(result, "main_code") {
		t.Errorf("expected 'main_code' from main file, got: %s", result)
	}
}

func TestPreprocessor_IncludeAngled(t *testing.T) {
	// Create temp directory structure
	tmpDir := t.TempDir()
	includeDir := filepath.Join(tmpDir, "include")
	if err := os.MkdirAll(includeDir, 0755); err != nil {
		t.Fatal(err)
	}
	
	// Create header in include directory
	headerContent := "int system_header_content;\n"
	if err := os.WriteFile(filepath.Join(includeDir, "sysheader.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{
		IncludePaths: []string{includeDir},
	})
	
	source := `#include <sysheader.h>
int main_code;
`
	result, err := pp.PreprocessString(source, filepath.Join(tmpDir, "main.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "system_header_content") {
		t.Errorf("expected 'system_header_content' from included file, got: %s", result)
	}
}

func TestPreprocessor_IncludeGuard(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Create header with include guard
	headerContent := `#ifndef MYHEADER_H
#define MYHEADER_H
int guarded_content;
#endif
`
	if err := os.WriteFile(filepath.Join(tmpDir, "myheader.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Include the same header twice
	mainContent := `#include "myheader.h"
#include "myheader.h"
int after_includes;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	// Count occurrences of guarded_content - should only appear once
	count := strings.Count(result, "guarded_content")
	if count != 1 {
		t.Errorf("expected 'guarded_content' to appear once, got %d times in: %s", count, result)
	}
}

// TestPreprocessor_IncludeGuardIfNotDefinedForm checks that the
// "#if !defined(NAME)" guard idiom is recognized by the same caching
// path as the classic "#ifndef NAME" form, so a second #include of an
// already-processed header is skipped without re-reading its content.
func TestPreprocessor_IncludeGuardIfNotDefinedForm(t *testing.T) {
	tmpDir := t.TempDir()

	headerContent := `#if !defined(MYHEADER_H)
#define MYHEADER_H
int guarded_content;
#endif
`
	if err := os.WriteFile(filepath.Join(tmpDir, "myheader.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}

	mainContent := `#include "myheader.h"
#include "myheader.h"
int after_includes;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := strings.Count(result, "guarded_content")
	if count != 1 {
		t.Errorf("expected 'guarded_content' to appear once, got %d times in: %s", count, result)
	}
	if guard := pp.detectIncludeGuard(headerContent, "myheader.h"); guard != "MYHEADER_H" {
		t.Errorf("expected detected guard MYHEADER_H, got %q", guard)
	}
}

func TestPreprocessor_PragmaOnce(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Create header with #pragma once
	headerContent := `#pragma once
int pragma_once_content;
`
	if err := os.WriteFile(filepath.Join(tmpDir, "onceheader.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Include the same header twice
	mainContent := `#include "onceheader.h"
#include "onceheader.h"
int after_includes;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	// Count occurrences - should only appear once
	count := strings.Count(result, "pragma_once_content")
	if count != 1 {
		t.Errorf("expected 'pragma_once_content' to appear once, got %d times in: %s", count, result)
	}
}

func TestPreprocessor_NestedIncludes(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Create nested headers
	header3 := "int level3;\n"
	header2 := "#include \"header3.h\"\nint level2;\n"
	header1 := "#include \"header2.h\"\nint level1;\n"
	
	if err := os.WriteFile(filepath.Join(tmpDir, "header3.h"), []byte(header3), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "header2.h"), []byte(header2), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "header1.h"), []byte(header1), 0644); err != nil {
		t.Fatal(err)
	}
	
	mainContent := `#include "header1.h"
int level0;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	// Check all levels are present
	for _, level := range []string{"level0", "level1", "level2", "level3"} {
		if !strings.Contains(result, level) {
			t.Errorf("expected '%s' in output, got: %s", level, result)
		}
	}
}

func TestPreprocessor_CircularInclude(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Create circular includes (without guards)
	headerA := "#include \"headerb.h\"\nint from_a;\n"
	headerB := "#include \"headera.h\"\nint from_b;\n"
	
	if err := os.WriteFile(filepath.Join(tmpDir, "headera.h"), []byte(headerA), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "headerb.h"), []byte(headerB), 0644); err != nil {
		t.Fatal(err)
	}
	
	mainContent := `#include "headera.h"
int main_code;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	_, err := pp.PreprocessFile(mainFile)
	if err == nil {
		t.Fatal("expected circular include error")
	}
	if !strings.Contains(err.Error(), "circular") {
		t.Errorf("expected 'circular' in error message, got: %v", err)
	}
}

func TestPreprocessor_IncludeNotFound(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	source := `#include "nonexistent.h"
int main;
`
	_, err := pp.PreprocessString(source, "test.c")
	if err == nil {
		t.Fatal("expected error for missing include")
	}
	if !strings.Contains(err.Error(), "nonexistent.h") {
		t.Errorf("expected 'nonexistent.h' in error message, got: %v", err)
	}
}

func TestPreprocessor_IncludeDepthStartsAtZero(t *testing.T) {
	tmpDir := t.TempDir()
	
	// deep.h is only written to disk, never included, so MaxIncludeDepth
	// is not reached here.
	
	// Create header that includes itself under a different condition
	headerContent := `#ifdef DEPTH_CHECK
#include "deep.h"
#endif
int deep_content;
`
	if err := os.WriteFile(filepath.Join(tmpDir, "deep.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Only the starting include depth is checked.
	pp := NewPreprocessor(PreprocessorOptions{})
	
	// Check that include depth is accessible via resolver
	if pp.resolver.IncludeDepth() != 0 {
		t.Error("initial include depth should be 0")
	}
}

func TestPreprocessor_LineMarkers(t *testing.T) {
	tmpDir := t.TempDir()
	
	headerContent := "int header_var;\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "header.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	mainContent := `#include "header.h"
int main_var;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{
		LineMarkers: true,
	})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	// Check for line markers
	if !strings.Contains(result, "# 1 \"") {
		t.Errorf("expected line markers in output, got: %s", result)
	}
}

func TestPreprocessor_ErrorDirective(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	source := `#error This is an error
int after_error;
`
	_, err := pp.PreprocessString(source, "test.c")
	if err == nil {
		t.Fatal("expected error from #error directive")
	}
	if !strings.Contains(err.Error(), "This is an error") {
		t.Errorf("expected error message to contain directive text, got: %v", err)
	}
}

func TestPreprocessor_CmdlineDefines(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{
		Defines: []string{"FOO=42", "BAR"},
	})
	
	source := `int x = FOO;
#ifdef BAR
int bar_defined;
#endif
`
	result, err := pp.PreprocessString(source, "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "int x = 42;") {
		t.Errorf("expected FOO to expand to 42, got: %s", result)
	}
	if !strings.Contains(result, "bar_defined") {
		t.Errorf("expected BAR to be defined, got: %s", result)
	}
}

func TestPreprocessor_CmdlineUndefines(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{
		Defines:   []string{"FOO=1"},
		Undefines: []string{"FOO"},
	})
	
	source := `#ifdef FOO
int foo_defined;
#else
int foo_undefined;
#endif
`
	result, err := pp.PreprocessString(source, "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if strings.Contains(result, "foo_defined") {
		t.Errorf("expected FOO to be undefined, got: %s", result)
	}
	if !strings.Contains(result, "foo_undefined") {
		t.Errorf("expected foo_undefined in output, got: %s", result)
	}
}

func TestPreprocessor_FunctionMacro(t *testing.T) {
	pp := NewPreprocessor(PreprocessorOptions{})
	
	source := `#define MAX(a,b) ((a)>(b)?(a):(b))
int x = MAX(1, 2);
`
	result, err := pp.PreprocessString(source, "test.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "((1)>(2)?(1):(2))") {
		t.Errorf("expected macro expansion, got: %s", result)
	}
}

func TestPreprocessor_MacroDefinedInInclude(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Header defines a macro
	headerContent := `#define HEADER_VALUE 100
`
	if err := os.WriteFile(filepath.Join(tmpDir, "defs.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Main file uses the macro
	mainContent := `#include "defs.h"
int x = HEADER_VALUE;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "int x = 100;") {
		t.Errorf("expected macro from header to expand, got: %s", result)
	}
}

// TestPreprocessor_PragmaOnceGuardDoesNotLeakIntoIfdef checks that
// #pragma once's reserved guard macro -- a real entry in the shared
// MacroTable rather than a resolver-private set -- cannot be named by
// #ifdef: its path-specific name contains '$', which no identifier can
// spell, so "#ifdef __pragma_once" stays false.
func TestPreprocessor_PragmaOnceGuardDoesNotLeakIntoIfdef(t *testing.T) {
	tmpDir := t.TempDir()

	headerContent := `#pragma once
int once_content;
`
	if err := os.WriteFile(filepath.Join(tmpDir, "once.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}

	mainContent := `#include "once.h"
#include "once.h"
#ifdef __pragma_once
int leaked;
#endif
int after;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Count(result, "once_content") != 1 {
		t.Errorf("expected once.h's content exactly once despite the double include, got: %s", result)
	}
	if strings.Contains(result, "leaked") {
		t.Errorf("the path-specific pragma-once guard must not satisfy #ifdef __pragma_once, got: %s", result)
	}

	foundGuard := false
	for name := range pp.GetMacros().macros {
		if strings.HasPrefix(name, "__pragma_once$") {
			foundGuard = true
		}
	}
	if !foundGuard {
		t.Error("expected a __pragma_once$-prefixed guard macro to be registered for once.h")
	}
}

func TestPreprocessor_ConditionalInInclude(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Header with conditional
	headerContent := `#ifdef ENABLE_FEATURE
int feature_enabled;
#endif
`
	if err := os.WriteFile(filepath.Join(tmpDir, "conditional.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Main defines the macro before including
	mainContent := `#define ENABLE_FEATURE 1
#include "conditional.h"
int main_code;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "feature_enabled") {
		t.Errorf("expected conditional in header to work, got: %s", result)
	}
}

func TestPreprocessor_EmptyInclude(t *testing.T) {
	tmpDir := t.TempDir()
	
	// Create empty header
	if err := os.WriteFile(filepath.Join(tmpDir, "empty.h"), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	
	mainContent := `#include "empty.h"
int after_empty;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "after_empty") {
		t.Errorf("expected content after empty include, got: %s", result)
	}
}

func TestPreprocessor_SubdirectoryInclude(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	
	// Header in subdirectory
	headerContent := "int subdir_content;\n"
	if err := os.WriteFile(filepath.Join(subDir, "sub.h"), []byte(headerContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	mainContent := `#include "subdir/sub.h"
int main_code;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{
		IncludePaths: []string{tmpDir},
	})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	if !strings.Contains(result, "subdir_content") {
		t.Errorf("expected subdir content in output, got: %s", result)
	}
}

func TestPreprocessor_IncludeRelativeToIncluder(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "headers")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	
	// Create base.h that includes sibling.h
	siblingContent := "int sibling_content;\n"
	baseContent := "#include \"sibling.h\"\nint base_content;\n"
	
	if err := os.WriteFile(filepath.Join(subDir, "sibling.h"), []byte(siblingContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(subDir, "base.h"), []byte(baseContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	// Main includes headers/base.h
	mainContent := `#include "headers/base.h"
int main_code;
`
	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}
	
	pp := NewPreprocessor(PreprocessorOptions{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	
	// sibling.h should be found relative to base.h
	if !strings.Contains(result, "sibling_content") {
		t.Errorf("expected sibling to be found relative to base, got: %s", result)
	}
}
