package model

// SandboxState is the lifecycle state of one live container (spec.md §3).
type SandboxState string

const (
	SandboxStateCreating   SandboxState = "creating"
	SandboxStateRunning    SandboxState = "running"
	SandboxStateTerminated SandboxState = "terminated"
	SandboxStateReaped     SandboxState = "reaped"
)

// Sandbox is the live container for one execution, owned by the Sandbox
// Supervisor for the duration of one Execute call. No sandbox outlives
// its orchestrator call.
type Sandbox struct {
	ExecutionID string
	ContainerID string
	State       SandboxState
}

// SandboxConfig are the container parameters the Sandbox Supervisor must
// apply for every sandbox (spec.md §4.4): image, working directory bind
// mount, launch command, and the mandatory isolation/resource limits.
type SandboxConfig struct {
	Image      string
	Cmd        []string
	Env        map[string]string
	WorkDir    string // container-side mount point, e.g. "/app"
	HostDir    string // host-side workspace directory bind-mounted read-write
	Limits     ResolvedLimits
	PidsLimit  int64
	NoFileSoft int64
	NoFileHard int64
	NProcSoft  int64
	NProcHard  int64
}

// TerminationCause classifies why a sandbox stopped running (spec.md §4.4).
type TerminationCause string

const (
	TerminationExited          TerminationCause = "exited"
	TerminationKilledByTimeout TerminationCause = "killed_by_timeout"
	TerminationKilledByMemory  TerminationCause = "killed_by_memory"
	TerminationInternalFailure TerminationCause = "internal_failure"
)

// RawOutcome is the Sandbox Supervisor's raw result, before the Result
// Normalizer maps it onto an ExecutionStatus (spec.md §4.4/§4.5).
type RawOutcome struct {
	Stdout           string
	Stderr           string
	ExitCode         int
	WallTimeMs       int64
	PeakMemoryBytes  *int64
	TerminationCause TerminationCause
}
