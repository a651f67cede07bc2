package diag

// Code is a dotted, stable identifier for a class of diagnostic.
type Code string

func (c Code) String() string { return string(c) }

const (
	UnknownCode Code = "unknown"

	// Parsing
	ParseSyntax      Code = "parse.syntax"
	ParseMissing     Code = "parse.missing_header"
	ParseUnsupported Code = "parse.unsupported"
	ParseWorker      Code = "parse.worker"
	ParseAborted     Code = "parse.aborted"

	// Mod pipeline
	ModOrdering   Code = "mod.ordering"
	ModFabricated Code = "mod.fabricated"
	ModPanic      Code = "mod.panic"
	ModUnresolved Code = "mod.unresolved"
	ModConflict   Code = "mod.conflict"
	ModLint       Code = "mod.lint"
	ModAborted    Code = "mod.aborted"

	// Emission
	EmitFormat      Code = "emit.format"
	EmitUnsupported Code = "emit.unsupported"
	EmitWrite       Code = "emit.write"
	EmitFailed      Code = "emit.failed"

	// Generation driver
	GenConfig  Code = "gen.config"
	GenAborted Code = "gen.aborted"
	GenSkipped Code = "gen.skipped"
)
