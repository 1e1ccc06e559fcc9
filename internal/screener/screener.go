// Package screener implements the pre-run lexical Screener (spec.md
// §4.2): a pure function over source text that accepts or rejects it
// before any container is ever started. This is defense in depth, not
// a security boundary; the container sandbox is the boundary.
package screener

import (
	"regexp"
	"strings"

	"github.com/opensbx/coderun/internal/model"
)

// MaxSourceBytes mirrors model.MaxSourceBytes; kept local so this
// package's rejection reasons are self-contained and don't require the
// caller to cross-reference model constants to understand a message.
const MaxSourceBytes = model.MaxSourceBytes

// Result is the outcome of Validate.
type Result struct {
	Accepted       bool
	Violations     []string
	SanitizedSource string
}

// Screener holds the generic and per-language forbidden-pattern sets.
// It carries no mutable state and is safe for concurrent use.
type Screener struct {
	generic    []namedPattern
	perLanguage map[model.LanguageID][]namedPattern
}

type namedPattern struct {
	reason string
	re     *regexp.Regexp
}

// New builds a Screener with the generic and per-language forbidden
// pattern sets from spec.md §4.2.
func New() *Screener {
	return &Screener{
		generic:     genericPatterns(),
		perLanguage: languagePatterns(),
	}
}

// Validate canonicalizes source, then checks it against the static
// bounds and the forbidden pattern sets. Canonicalization always runs,
// even on a rejected result, since SanitizedSource is part of the
// contract regardless of outcome.
func (s *Screener) Validate(source string, language model.LanguageID) Result {
	sanitized := canonicalize(source)

	var violations []string
	if len(sanitized) == 0 {
		violations = append(violations, "source must not be empty")
	}
	if len(sanitized) > MaxSourceBytes {
		violations = append(violations, "source exceeds maximum length")
	}
	if strings.ContainsRune(source, 0) {
		violations = append(violations, "source contains a NUL byte")
	}

	for _, p := range s.generic {
		if p.re.MatchString(sanitized) {
			violations = append(violations, p.reason)
		}
	}
	for _, p := range s.perLanguage[language] {
		if p.re.MatchString(sanitized) {
			violations = append(violations, p.reason)
		}
	}

	return Result{
		Accepted:        len(violations) == 0,
		Violations:      violations,
		SanitizedSource: sanitized,
	}
}

// canonicalize normalizes line endings to "\n" and strips NUL bytes,
// producing sanitized_source as described in spec.md §4.2. Sanitized
// source, not the original, is what the Workspace Manager writes out.
func canonicalize(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	return strings.ReplaceAll(source, "\x00", "")
}

func genericPatterns() []namedPattern {
	return []namedPattern{
		{"directory traversal", regexp.MustCompile(`\.\./|\.\.\\`)},
		{"reference to /etc/passwd", regexp.MustCompile(`/etc/passwd`)},
		{"reference to /proc/", regexp.MustCompile(`/proc/`)},
		{"call to system(...)", regexp.MustCompile(`\bsystem\s*\(`)},
		{"call to exec(...)", regexp.MustCompile(`\bexec[lv]?[pe]?\s*\(`)},
		{"call to eval(...)", regexp.MustCompile(`\beval\s*\(`)},
		{"runtime exec-equivalent", regexp.MustCompile(`\bspawn\s*\(|\bpopen\s*\(`)},
	}
}

func languagePatterns() map[model.LanguageID][]namedPattern {
	return map[model.LanguageID][]namedPattern{
		"python": {
			{"import of os", regexp.MustCompile(`\bimport\s+os\b|\bfrom\s+os\b`)},
			{"import of sys", regexp.MustCompile(`\bimport\s+sys\b|\bfrom\s+sys\b`)},
			{"import of subprocess", regexp.MustCompile(`\bimport\s+subprocess\b|\bfrom\s+subprocess\b`)},
			{"import of socket", regexp.MustCompile(`\bimport\s+socket\b|\bfrom\s+socket\b`)},
			{"import of urllib", regexp.MustCompile(`\bimport\s+urllib\b|\bfrom\s+urllib\b`)},
			{"import of requests", regexp.MustCompile(`\bimport\s+requests\b|\bfrom\s+requests\b`)},
			{"import of shutil", regexp.MustCompile(`\bimport\s+shutil\b|\bfrom\s+shutil\b`)},
			{"import of glob", regexp.MustCompile(`\bimport\s+glob\b|\bfrom\s+glob\b`)},
			{"import of tempfile", regexp.MustCompile(`\bimport\s+tempfile\b|\bfrom\s+tempfile\b`)},
			{"import of pickle", regexp.MustCompile(`\bimport\s+pickle\b|\bfrom\s+pickle\b`)},
			{"import of marshal", regexp.MustCompile(`\bimport\s+marshal\b|\bfrom\s+marshal\b`)},
			{"call to exec(...)", regexp.MustCompile(`\bexec\s*\(`)},
			{"call to eval(...)", regexp.MustCompile(`\beval\s*\(`)},
			{"call to __import__(...)", regexp.MustCompile(`__import__\s*\(`)},
			{"call to compile(...)", regexp.MustCompile(`\bcompile\s*\(`)},
			{"call to open(...)", regexp.MustCompile(`\bopen\s*\(`)},
			{"call to file(...)", regexp.MustCompile(`\bfile\s*\(`)},
		},
		"javascript": {
			{"require of fs", regexp.MustCompile(`require\s*\(\s*['"]fs['"]\s*\)`)},
			{"require of child_process", regexp.MustCompile(`require\s*\(\s*['"]child_process['"]\s*\)`)},
			{"require of net", regexp.MustCompile(`require\s*\(\s*['"]net['"]\s*\)`)},
			{"require of http(s)", regexp.MustCompile(`require\s*\(\s*['"]https?['"]\s*\)`)},
			{"require of crypto", regexp.MustCompile(`require\s*\(\s*['"]crypto['"]\s*\)`)},
			{"require of os", regexp.MustCompile(`require\s*\(\s*['"]os['"]\s*\)`)},
			{"require of path", regexp.MustCompile(`require\s*\(\s*['"]path['"]\s*\)`)},
			{"require of stream", regexp.MustCompile(`require\s*\(\s*['"]stream['"]\s*\)`)},
			{"require of util", regexp.MustCompile(`require\s*\(\s*['"]util['"]\s*\)`)},
			{"require of vm", regexp.MustCompile(`require\s*\(\s*['"]vm['"]\s*\)`)},
			{"reference to process", regexp.MustCompile(`\bprocess\b`)},
			{"reference to global", regexp.MustCompile(`\bglobal\b`)},
			{"reference to __dirname", regexp.MustCompile(`__dirname\b`)},
			{"reference to __filename", regexp.MustCompile(`__filename\b`)},
		},
		"cpp": {
			{"include of cstdlib", regexp.MustCompile(`#include\s*[<"]cstdlib[>"]`)},
			{"include of stdlib.h", regexp.MustCompile(`#include\s*[<"]stdlib\.h[>"]`)},
			{"include of unistd.h", regexp.MustCompile(`#include\s*[<"]unistd\.h[>"]`)},
			{"include of sys/*", regexp.MustCompile(`#include\s*[<"]sys/`)},
			{"include of windows.h", regexp.MustCompile(`#include\s*[<"]windows\.h[>"]`)},
			{"include of process.h", regexp.MustCompile(`#include\s*[<"]process\.h[>"]`)},
			{"include of signal.h", regexp.MustCompile(`#include\s*[<"]signal\.h[>"]`)},
			{"include of fcntl.h", regexp.MustCompile(`#include\s*[<"]fcntl\.h[>"]`)},
			{"call to system(...)", regexp.MustCompile(`\bsystem\s*\(`)},
			{"call to exec(...)", regexp.MustCompile(`\bexec[lv]?[pe]?\s*\(`)},
			{"call to fork(...)", regexp.MustCompile(`\bfork\s*\(`)},
			{"call to kill(...)", regexp.MustCompile(`\bkill\s*\(`)},
			{"call to exit(...)", regexp.MustCompile(`\bexit\s*\(`)},
		},
		"java": {
			{"import of java.io.File", regexp.MustCompile(`import\s+java\.io\.File\s*;`)},
			{"import of java.net", regexp.MustCompile(`import\s+java\.net\.`)},
			{"import of java.lang.Runtime", regexp.MustCompile(`import\s+java\.lang\.Runtime\s*;`)},
			{"import of java.lang.ProcessBuilder", regexp.MustCompile(`import\s+java\.lang\.ProcessBuilder\s*;`)},
			{"import of java.nio.file", regexp.MustCompile(`import\s+java\.nio\.file\.`)},
			{"import of java.security", regexp.MustCompile(`import\s+java\.security\.`)},
			{"import of javax.script", regexp.MustCompile(`import\s+javax\.script\.`)},
			{"call to Runtime.getRuntime().exec", regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec`)},
			{"use of ProcessBuilder", regexp.MustCompile(`\bProcessBuilder\b`)},
			{"call to System.exit", regexp.MustCompile(`System\.exit\s*\(`)},
			{"reference to File.", regexp.MustCompile(`\bFile\.`)},
			{"reference to Files.", regexp.MustCompile(`\bFiles\.`)},
		},
	}
}
