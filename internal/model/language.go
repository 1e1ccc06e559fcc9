package model

// LanguageSpec is a read-only Language Registry entry (spec.md §4.1).
// Instances are created once at startup and never mutated afterward.
type LanguageSpec struct {
	ID      LanguageID
	Image   string
	Launch  LaunchSpec
	Default ResolvedLimits

	// SupportsCompile is true for languages whose LaunchCmd compiles
	// before running (the supervisor still only sees one process/exit code).
	SupportsCompile bool

	// CompileTimeoutMs / RunTimeoutMs are informational only; no deadline
	// is derived from them. The supervisor enforces a single combined
	// deadline (Default.WallTimeoutMs).
	CompileTimeoutMs int
	RunTimeoutMs     int

	// SourceFilename derives the filename sanitized source should be
	// written as. For most languages this is a fixed name; for
	// class-bound languages (Java) it is derived lexically from source.
	SourceFilename func(sanitizedSource string) string
}

// LaunchSpec describes how to invoke the interpreter/compiler inside the
// container. Cmd is a shell-style argv; for compiled languages it
// compiles then runs as a single shell invocation (spec.md §4.4).
type LaunchSpec struct {
	Cmd []string
}
