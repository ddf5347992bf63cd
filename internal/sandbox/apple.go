package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
)

// AppleBackend shells out to the "container" CLI shipped with Apple's
// container runtime. It is a thin os/exec wrapper; all policy enforcement
// happens in Dispatcher before Run is ever called.
type AppleBackend struct {
	// BinaryPath overrides the "container" binary lookup, for tests.
	BinaryPath string
}

// NewAppleBackend returns a Backend that drives the local "container" CLI.
func NewAppleBackend() *AppleBackend {
	return &AppleBackend{BinaryPath: "container"}
}

func (b *AppleBackend) Name() string { return "apple" }

func (b *AppleBackend) Run(spec RunSpec, mountPolicy MountPolicy, egressPolicy EgressPolicy) (CommandResult, error) {
	args := BuildAppleCommand(spec)
	bin := b.BinaryPath
	if bin == "" {
		bin = "container"
	}

	cmd := exec.CommandContext(context.Background(), bin, args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	status := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		status = exitErr.ExitCode()
	} else if err != nil {
		return CommandResult{}, fmt.Errorf("apple backend: %w", err)
	}

	return CommandResult{Status: status, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// BuildAppleCommand renders spec into "container run" CLI arguments. args[0]
// is always "container".
func BuildAppleCommand(spec RunSpec) []string {
	args := []string{"container", "run", "--rm"}

	for _, m := range spec.Mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		args = append(args, "--mount", fmt.Sprintf("type=bind,src=%s,dst=%s,%s", m.Source, m.Target, mode))
	}

	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
