package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avermeer/droidgate/internal/infrastructure/config"
)

// StatusResult reports the container runtime state.
type StatusResult struct {
	Status string // "running" or "stopped"
	Output string // raw status output from the control tool
}

// Controller maps control-plane operations onto the external control CLI and
// device bridge. All inputs must be validated before they reach these
// methods.
type Controller struct {
	adapter Adapter
	cfg     config.RuntimeConfig
}

// NewController creates a Controller over the given adapter.
func NewController(adapter Adapter, cfg config.RuntimeConfig) *Controller {
	return &Controller{
		adapter: adapter,
		cfg:     cfg,
	}
}

// timeout helpers for the configured command classes.

func (c *Controller) statusTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Status) * time.Second
}

func (c *Controller) commandTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Command) * time.Second
}

func (c *Controller) restartTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Restart) * time.Second
}

func (c *Controller) screenshotTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Screenshot) * time.Second
}

// control runs the container control CLI.
func (c *Controller) control(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	return c.adapter.Execute(ctx, c.cfg.ControlBinary, args, timeout)
}

// bridge runs the device bridge tool (adb shell and friends).
func (c *Controller) bridge(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	return c.adapter.Execute(ctx, c.cfg.BridgeBinary, args, timeout)
}

// commandError turns a nonzero exit into a *CommandError.
func commandError(command string, res Result) error {
	return &CommandError{
		Command:  command,
		ExitCode: res.ExitCode,
		Stderr:   strings.TrimSpace(res.Stderr),
	}
}

// Status queries whether the runtime container is running.
//
// The control tool exits 0 for a running container and 1 for a stopped one;
// both are valid answers, not failures.
func (c *Controller) Status(ctx context.Context) (StatusResult, error) {
	res, err := c.control(ctx, c.statusTimeout(), "status", c.cfg.ContainerName)
	if err != nil {
		return StatusResult{}, err
	}

	switch res.ExitCode {
	case 0:
		return StatusResult{Status: "running", Output: strings.TrimSpace(res.Stdout)}, nil
	case 1:
		return StatusResult{Status: "stopped", Output: strings.TrimSpace(res.Stdout)}, nil
	default:
		return StatusResult{}, commandError("status", res)
	}
}

// Version returns the runtime version string reported by the control tool.
func (c *Controller) Version(ctx context.Context) (string, error) {
	res, err := c.control(ctx, c.statusTimeout(), "version")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", commandError("version", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ListApps returns the installed application package names.
func (c *Controller) ListApps(ctx context.Context) ([]string, error) {
	res, err := c.bridge(ctx, c.commandTimeout(), "shell", "pm", "list", "packages")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, commandError("pm list packages", res)
	}

	var apps []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if pkg, ok := strings.CutPrefix(line, "package:"); ok && pkg != "" {
			apps = append(apps, pkg)
		}
	}
	return apps, nil
}

// Logs returns up to lines recent log lines from the runtime.
func (c *Controller) Logs(ctx context.Context, lines int) ([]string, error) {
	res, err := c.bridge(ctx, c.commandTimeout(),
		"logcat", "-d", "-t", strconv.Itoa(lines))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, commandError("logcat", res)
	}

	var out []string
	for _, line := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// Properties returns all runtime system properties.
//
// getprop output lines look like: [ro.build.version.release]: [14]
func (c *Controller) Properties(ctx context.Context) (map[string]string, error) {
	res, err := c.bridge(ctx, c.commandTimeout(), "shell", "getprop")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, commandError("getprop", res)
	}

	props := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		key, value, ok := parsePropLine(line)
		if ok {
			props[key] = value
		}
	}
	return props, nil
}

// parsePropLine parses one "[key]: [value]" getprop line.
func parsePropLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	key, rest, ok := strings.Cut(line[1:], "]: [")
	if !ok || !strings.HasSuffix(rest, "]") {
		return "", "", false
	}
	return key, strings.TrimSuffix(rest, "]"), true
}

// SetProperty sets one runtime system property.
func (c *Controller) SetProperty(ctx context.Context, key, value string) error {
	res, err := c.bridge(ctx, c.commandTimeout(), "shell", "setprop", key, value)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return commandError("setprop", res)
	}
	return nil
}

// Launch starts the given application package.
func (c *Controller) Launch(ctx context.Context, pkg string) (string, error) {
	res, err := c.bridge(ctx, c.commandTimeout(),
		"shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", commandError("launch", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Stop force-stops the given application package.
func (c *Controller) Stop(ctx context.Context, pkg string) error {
	res, err := c.bridge(ctx, c.commandTimeout(), "shell", "am", "force-stop", pkg)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return commandError("force-stop", res)
	}
	return nil
}

// SendIntent broadcasts an intent action to the runtime.
func (c *Controller) SendIntent(ctx context.Context, intent string) (string, error) {
	res, err := c.bridge(ctx, c.commandTimeout(), "shell", "am", "start", "-a", intent)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", commandError("intent", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RestartContainer restarts the runtime container. This is the slowest
// operation the control plane performs and uses the long restart timeout.
func (c *Controller) RestartContainer(ctx context.Context) (string, error) {
	res, err := c.control(ctx, c.restartTimeout(), "restart", c.cfg.ContainerName)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", commandError("restart", res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Screenshot captures the current display as PNG bytes.
func (c *Controller) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := c.bridge(ctx, c.screenshotTimeout(), "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, commandError("screencap", res)
	}
	if len(res.Stdout) == 0 {
		return nil, fmt.Errorf("screencap produced no output")
	}
	return []byte(res.Stdout), nil
}
