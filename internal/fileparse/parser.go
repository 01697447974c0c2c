// Package fileparse implements the file parser (component A): classifying
// a path as header/source/unknown, and scanning it for #include directives
// and inline "// TNC: <opts>" build-option pragmas.
//
// This is deliberately textual, not a preprocessor: it does not understand
// #if, and directives inside string literals or disabled branches are still
// honoured. Grounded on original_source/base/file.py's regex-per-line
// approach; scanning is line-oriented with bufio.Scanner the way the rest
// of the Go examples in the pack process source text, rather than the
// byte-offset state machine VKCOM/nocc's own-includes-parser.go uses to
// emulate a full preprocessor (TNC needs none of #include_next, -Xclang,
// or macro expansion that machinery exists for).
package fileparse

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Kind classifies a file by its suffix.
type Kind int

const (
	Unknown Kind = iota
	Header
	Source
)

var headerSuffixes = []string{".h", ".hpp"}
var sourceSuffixes = []string{".cpp", ".cc", ".cxx"}

// KindOf classifies name by its extension.
func KindOf(name string) Kind {
	for _, suf := range headerSuffixes {
		if strings.HasSuffix(name, suf) {
			return Header
		}
	}
	for _, suf := range sourceSuffixes {
		if strings.HasSuffix(name, suf) {
			return Source
		}
	}
	return Unknown
}

// CompileDetails is the result of scanning one file: its includes, in order
// of appearance, split by quoting style, plus any per-file compile options.
type CompileDetails struct {
	AngledIncludes []string // from #include <...>
	QuotedIncludes []string // from #include "..."
	Options        []string // from leading "// TNC: ..." lines
}

var (
	angledIncludeRe = regexp.MustCompile(`^#include\s+<([^>]+)>`)
	quotedIncludeRe = regexp.MustCompile(`^#include\s+"([^"]+)"`)
	optionsRe       = regexp.MustCompile(`^//\s*TNC:\s*(.*)$`)
)

// Scan reads path line by line and extracts its CompileDetails.
func Scan(path string) (CompileDetails, error) {
	f, err := os.Open(path)
	if err != nil {
		return CompileDetails{}, err
	}
	defer f.Close()

	var details CompileDetails
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		content := strings.TrimLeft(scanner.Text(), " \t")
		switch {
		case strings.HasPrefix(content, "#"):
			if m := quotedIncludeRe.FindStringSubmatch(content); m != nil {
				details.QuotedIncludes = append(details.QuotedIncludes, m[1])
			}
			if m := angledIncludeRe.FindStringSubmatch(content); m != nil {
				details.AngledIncludes = append(details.AngledIncludes, m[1])
			}
		case strings.HasPrefix(content, "//"):
			if m := optionsRe.FindStringSubmatch(content); m != nil {
				details.Options = append(details.Options, strings.Fields(m[1])...)
			}
		}
	}

	return details, scanner.Err()
}

// StemName returns the filename without directory or extension, used to
// pair headers with same-stem sources.
func StemName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i != -1 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i != -1 {
		base = base[:i]
	}
	return base
}
