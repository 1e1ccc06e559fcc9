// Package docker implements the Sandbox Supervisor (spec.md §4.4) on
// top of a Docker-compatible container runtime.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/opensbx/coderun/internal/conventions"
	"github.com/opensbx/coderun/internal/log"
	"github.com/opensbx/coderun/internal/model"
	"github.com/opensbx/coderun/internal/sandbox"
	"github.com/opensbx/coderun/internal/task"
)

// DockerClient is the subset of the Docker SDK client the supervisor
// depends on, narrowed so tests can substitute a fake.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID string, signal string) error
	ContainerStats(ctx context.Context, containerID string, stream bool) (types.ContainerStats, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Ping(ctx context.Context) (types.Ping, error)
}

// statsPayload is the small subset of the container stats JSON document
// the supervisor cares about. Decoding into a local struct (rather than
// depending on the SDK's full stats type) keeps the supervisor
// insulated from stats-schema drift across daemon versions.
type statsPayload struct {
	MemoryStats struct {
		Usage    uint64 `json:"usage"`
		MaxUsage uint64 `json:"max_usage"`
		Limit    uint64 `json:"limit"`
	} `json:"memory_stats"`
}

// handle is a live container tracked in the supervisor's registry,
// carrying the model.Sandbox lifecycle state spec.md §3 defines
// (creating -> running -> terminated -> reaped).
type handle struct {
	sandbox model.Sandbox
	cancel  context.CancelFunc
}

func (e *Engine) setState(executionID string, state model.SandboxState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handles[executionID]; ok {
		h.sandbox.State = state
	}
}

// EngineConfig is the configuration for the Docker Sandbox Supervisor.
type EngineConfig struct {
	Client DockerClient

	// PidsLimit caps the number of processes/threads inside a sandbox
	// (spec.md §4.4: "PID limit ≤ 50").
	PidsLimit int64
	// NoFileSoft/NoFileHard are the file-descriptor rlimits (64/64 per spec).
	NoFileSoft int64
	NoFileHard int64
	// NProcSoft/NProcHard are the process-count rlimits (32/32 per spec).
	NProcSoft int64
	NProcHard int64
	// StopGrace bounds how long ContainerStop waits before the daemon
	// escalates to SIGKILL (spec.md §4.4: "≤5s grace").
	StopGrace time.Duration
	// CPUPeriod is the fixed period cpuFraction is expressed against.
	CPUPeriod int64
	// OutputCapBytes bounds how many stdout/stderr bytes are retained per
	// channel before truncation (spec.md §4.4's output capture rule).
	OutputCapBytes int

	// Tasks records the ordered sub-steps of each Run call, if set.
	// Optional: a nil Tasks disables step tracking entirely.
	Tasks task.Manager

	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.PidsLimit <= 0 {
		c.PidsLimit = 50
	}
	if c.NoFileSoft <= 0 {
		c.NoFileSoft = 64
	}
	if c.NoFileHard <= 0 {
		c.NoFileHard = 64
	}
	if c.NProcSoft <= 0 {
		c.NProcSoft = 32
	}
	if c.NProcHard <= 0 {
		c.NProcHard = 32
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	if c.CPUPeriod <= 0 {
		c.CPUPeriod = 100_000
	}
	if c.OutputCapBytes <= 0 {
		c.OutputCapBytes = model.OutputCapBytes
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "docker.Engine"})
	return nil
}

// Engine is the Docker implementation of sandbox.Supervisor.
type Engine struct {
	client DockerClient
	cfg    EngineConfig
	logger log.Logger
	tasks  task.Manager

	mu      sync.Mutex
	handles map[string]*handle // executionID -> handle
}

// runSteps is the ordered sub-step list the Step Tracker records for
// one Run call (spec.md's orchestrator sub-steps, narrowed to what the
// Docker supervisor itself is responsible for).
var runSteps = []string{"create_container", "attach", "start_container", "wait", "stats", "reap"}

const runOperation = "execute"

// NewEngine builds a Docker Sandbox Supervisor.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		client:  cfg.Client,
		cfg:     cfg,
		logger:  cfg.Logger,
		tasks:   cfg.Tasks,
		handles: make(map[string]*handle),
	}, nil
}

// stepDone marks the next pending step of executionID's run as
// completed. Step tracking is best-effort: a nil Tasks manager, or any
// error recording the step, is logged and never fails the execution.
func (e *Engine) stepDone(ctx context.Context, executionID string) {
	if e.tasks == nil {
		return
	}
	t, err := e.tasks.NextTask(ctx, executionID, runOperation)
	if err != nil || t == nil {
		return
	}
	if err := e.tasks.CompleteTask(ctx, t.ID); err != nil {
		e.logger.Warningf("Could not complete step %s for execution %s: %s", t.Name, executionID, err)
	}
}

// stepFailed marks the next pending step of executionID's run as
// failed, best-effort.
func (e *Engine) stepFailed(ctx context.Context, executionID string, stepErr error) {
	if e.tasks == nil {
		return
	}
	t, err := e.tasks.NextTask(ctx, executionID, runOperation)
	if err != nil || t == nil {
		return
	}
	if err := e.tasks.FailTask(ctx, t.ID, stepErr); err != nil {
		e.logger.Warningf("Could not fail step %s for execution %s: %s", t.Name, executionID, err)
	}
}

// envSlice renders a SandboxConfig's environment map into the
// "KEY=VALUE" slice the Docker SDK expects, or nil if there's nothing to set.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// EnsureImages pre-pulls every image, per-image, never aborting the
// whole pass on one failure (spec.md §6).
func (e *Engine) EnsureImages(ctx context.Context, images []string) map[string]error {
	results := make(map[string]error, len(images))
	for _, img := range images {
		if _, _, err := e.client.ImageInspectWithRaw(ctx, img); err == nil {
			results[img] = nil
			continue
		}

		e.logger.Infof("Pulling image %s", img)
		rc, err := e.client.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			e.logger.Warningf("Failed to pull image %s: %s", img, err)
			results[img] = err
			continue
		}
		_, _ = io.Copy(io.Discard, rc)
		_ = rc.Close()
		results[img] = nil
	}
	return results
}

// Check runs the preflight checks the "doctor" command reports: daemon
// reachability and presence of each language's image.
func (e *Engine) Check(ctx context.Context, images []string) []model.CheckResult {
	var results []model.CheckResult

	if _, err := e.client.Ping(ctx); err != nil {
		results = append(results, model.CheckResult{
			ID:      "docker_daemon_reachable",
			Message: fmt.Sprintf("could not reach the Docker daemon: %s", err),
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "docker_daemon_reachable",
			Message: "Docker daemon is reachable",
			Status:  model.CheckStatusOK,
		})
	}

	for _, img := range images {
		if _, _, err := e.client.ImageInspectWithRaw(ctx, img); err != nil {
			results = append(results, model.CheckResult{
				ID:      "image_present:" + img,
				Message: fmt.Sprintf("image %s is not present locally (will be pulled on first use)", img),
				Status:  model.CheckStatusWarning,
			})
			continue
		}
		results = append(results, model.CheckResult{
			ID:      "image_present:" + img,
			Message: fmt.Sprintf("image %s is present", img),
			Status:  model.CheckStatusOK,
		})
	}

	return results
}

// Health pings the daemon and reports the live sandbox count.
func (e *Engine) Health(ctx context.Context) (bool, int) {
	_, err := e.client.Ping(ctx)

	e.mu.Lock()
	n := len(e.handles)
	e.mu.Unlock()

	return err == nil, n
}

// Kill signals the container registered for executionID, if still live.
func (e *Engine) Kill(executionID string) bool {
	e.mu.Lock()
	h, ok := e.handles[executionID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Run implements sandbox.Supervisor.Run: create, start, supervise under
// a deadline, reap, and report the RawOutcome for one execution.
func (e *Engine) Run(ctx context.Context, ws model.Workspace, spec model.LanguageSpec, limits model.ResolvedLimits) (model.RawOutcome, error) {
	if e.tasks != nil {
		if err := e.tasks.AddTasks(ctx, ws.ExecutionID, runOperation, runSteps); err != nil {
			e.logger.Warningf("Could not register run steps for execution %s: %s", ws.ExecutionID, err)
		}
		defer func() {
			if err := e.tasks.ClearOperation(context.Background(), ws.ExecutionID, runOperation); err != nil {
				e.logger.Warningf("Could not clear run steps for execution %s: %s", ws.ExecutionID, err)
			}
		}()
	}

	containerName := fmt.Sprintf("coderun-%s", strings.ToLower(ws.ExecutionID))
	hasStdin := ws.StdinPath != ""

	sc := model.SandboxConfig{
		Image:      spec.Image,
		Cmd:        spec.Launch.Cmd,
		WorkDir:    conventions.ContainerWorkdir,
		HostDir:    ws.Dir,
		Limits:     limits,
		PidsLimit:  e.cfg.PidsLimit,
		NoFileSoft: e.cfg.NoFileSoft,
		NoFileHard: e.cfg.NoFileHard,
		NProcSoft:  e.cfg.NProcSoft,
		NProcHard:  e.cfg.NProcHard,
	}

	containerCfg := &container.Config{
		Image:           sc.Image,
		Cmd:             sc.Cmd,
		Env:             envSlice(sc.Env),
		WorkingDir:      sc.WorkDir,
		NetworkDisabled: true,
		OpenStdin:       hasStdin,
		StdinOnce:       hasStdin,
		AttachStdin:     hasStdin,
		AttachStdout:    true,
		AttachStderr:    true,
		Tty:             false,
		User:            "nobody",
	}

	pidsLimit := sc.PidsLimit
	hostCfg := &container.HostConfig{
		Binds:       []string{fmt.Sprintf("%s:%s:rw", sc.HostDir, sc.WorkDir)},
		NetworkMode: "none",
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:     sc.Limits.MemoryBytes,
			MemorySwap: sc.Limits.MemoryBytes,
			NanoCPUs:   int64(sc.Limits.CPUFraction * 1e9),
			CPUPeriod:  e.cfg.CPUPeriod,
			CPUQuota:   int64(sc.Limits.CPUFraction * float64(e.cfg.CPUPeriod)),
			PidsLimit:  &pidsLimit,
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: sc.NoFileSoft, Hard: sc.NoFileHard},
				{Name: "nproc", Soft: sc.NProcSoft, Hard: sc.NProcHard},
			},
		},
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.handles[ws.ExecutionID] = &handle{
		sandbox: model.Sandbox{ExecutionID: ws.ExecutionID, State: model.SandboxStateCreating},
		cancel:  cancel,
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.handles, ws.ExecutionID)
		e.mu.Unlock()
		cancel()
	}()

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, containerName)
	if err != nil {
		e.stepFailed(ctx, ws.ExecutionID, err)
		return model.RawOutcome{TerminationCause: model.TerminationInternalFailure}, fmt.Errorf("creating container: %w: %w", err, model.ErrInternal)
	}
	containerID := resp.ID
	e.mu.Lock()
	e.handles[ws.ExecutionID].sandbox.ContainerID = containerID
	e.mu.Unlock()
	e.stepDone(ctx, ws.ExecutionID)

	attachResp, err := e.client.ContainerAttach(runCtx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  hasStdin,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		e.stepFailed(ctx, ws.ExecutionID, err)
		e.reap(context.Background(), containerID)
		return model.RawOutcome{TerminationCause: model.TerminationInternalFailure}, fmt.Errorf("attaching to container: %w: %w", err, model.ErrInternal)
	}
	defer attachResp.Close()
	e.stepDone(ctx, ws.ExecutionID)

	if err := e.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		e.stepFailed(ctx, ws.ExecutionID, err)
		e.reap(context.Background(), containerID)
		return model.RawOutcome{TerminationCause: model.TerminationInternalFailure}, fmt.Errorf("starting container: %w: %w", err, model.ErrInternal)
	}
	e.setState(ws.ExecutionID, model.SandboxStateRunning)
	e.stepDone(ctx, ws.ExecutionID)
	t0 := time.Now()

	if hasStdin {
		go func() {
			stdin, rerr := os.ReadFile(ws.StdinPath)
			if rerr == nil {
				_, _ = attachResp.Conn.Write(stdin)
			}
			_ = attachResp.CloseWrite()
		}()
	}

	stdout := sandbox.NewCappedBuffer(e.cfg.OutputCapBytes)
	stderr := sandbox.NewCappedBuffer(e.cfg.OutputCapBytes)
	demuxDone := make(chan error, 1)
	go func() {
		_, derr := stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		demuxDone <- derr
	}()

	waitBody, waitErrCh := e.client.ContainerWait(runCtx, containerID, container.WaitConditionNotRunning)
	deadline := time.NewTimer(time.Duration(limits.WallTimeoutMs) * time.Millisecond)
	defer deadline.Stop()

	var cause model.TerminationCause
	var exitCode int

	select {
	case body := <-waitBody:
		cause = model.TerminationExited
		exitCode = int(body.StatusCode)
	case werr := <-waitErrCh:
		cause = model.TerminationInternalFailure
		e.logger.Errorf("Error waiting for container %s: %s", containerID, werr)
	case <-deadline.C:
		cause = model.TerminationKilledByTimeout
		if err := e.client.ContainerKill(context.Background(), containerID, "SIGKILL"); err != nil {
			e.logger.Warningf("Failed to kill container %s after timeout: %s", containerID, err)
		}
	case <-runCtx.Done():
		cause = model.TerminationInternalFailure
		if ctx.Err() == context.DeadlineExceeded {
			cause = model.TerminationKilledByTimeout
		}
		if err := e.client.ContainerKill(context.Background(), containerID, "SIGKILL"); err != nil {
			e.logger.Warningf("Failed to kill container %s after cancellation: %s", containerID, err)
		}
	}
	e.setState(ws.ExecutionID, model.SandboxStateTerminated)
	e.stepDone(ctx, ws.ExecutionID)

	// Drain the demultiplexer with a short grace window; the stream
	// closes once the container actually stops.
	select {
	case <-demuxDone:
	case <-time.After(e.cfg.StopGrace):
	}

	wallTime := time.Since(t0)

	peak, oomKilled := e.queryStats(context.Background(), containerID, limits.MemoryBytes)
	if oomKilled {
		cause = model.TerminationKilledByMemory
	}
	e.stepDone(ctx, ws.ExecutionID)

	e.reap(context.Background(), containerID)
	e.setState(ws.ExecutionID, model.SandboxStateReaped)
	e.stepDone(ctx, ws.ExecutionID)

	return model.RawOutcome{
		Stdout:           stdout.String(),
		Stderr:           stderr.String(),
		ExitCode:         exitCode,
		WallTimeMs:       wallTime.Milliseconds(),
		PeakMemoryBytes:  peak,
		TerminationCause: cause,
	}, nil
}

// queryStats queries container stats exactly once, strictly before
// removal (spec.md §4.4 step 6), returning the observed peak memory and
// whether it reached the configured cap.
func (e *Engine) queryStats(ctx context.Context, containerID string, memLimit int64) (*int64, bool) {
	statsResp, err := e.client.ContainerStats(ctx, containerID, false)
	if err != nil {
		e.logger.Warningf("Failed to query stats for container %s: %s", containerID, err)
		return nil, false
	}
	defer statsResp.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(statsResp.Body).Decode(&payload); err != nil {
		e.logger.Warningf("Failed to decode stats for container %s: %s", containerID, err)
		return nil, false
	}

	peak := payload.MemoryStats.MaxUsage
	if peak == 0 {
		peak = payload.MemoryStats.Usage
	}
	peakI64 := int64(peak)

	oomKilled := memLimit > 0 && peak >= uint64(memLimit)
	return &peakI64, oomKilled
}

// reap stops (with grace) and removes the container. Failures here are
// logged, never propagated, per spec.md §4.4 step 8.
func (e *Engine) reap(ctx context.Context, containerID string) {
	graceSecs := int(e.cfg.StopGrace / time.Second)
	if err := e.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &graceSecs}); err != nil {
		e.logger.Debugf("Stop failed for container %s (may already be stopped): %s", containerID, err)
	}
	if err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Warningf("Failed to remove container %s: %s", containerID, err)
	}
}
