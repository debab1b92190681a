package config

// IsTestMode indicates if the program is running under tests.
// Generated identifiers are printed with a normalized suffix when set.
var IsTestMode = false

// Recursion limits
const (
	DefaultMaxRecDepth = 512
	MinMaxRecDepth     = 8
)

// Transparency tier names as they appear in configuration files.
const (
	TransparencyAll       = "all"
	TransparencyDefault   = "default"
	TransparencyReducible = "reducible"
	TransparencyInstances = "instances"
)

// Trace classes understood by the session logger.
const (
	TraceIsClass   = "meta.isClass"
	TraceTelescope = "meta.telescope"
	TraceSynthInst = "meta.synthInstance"
	TraceMkBinding = "meta.mkBinding"
	TraceDepth     = "meta.depth"
	TraceCache     = "meta.cache"
	TracePostponed = "meta.postponed"
	TraceRegistry  = "meta.registry"
	TraceAuxDef    = "meta.auxDefinition"
)

// Built-in constant names used by literal typing and the sample environments.
const (
	NatTypeName    = "Nat"
	StringTypeName = "String"
	AuxLevelPrefix = "u"
)
