package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/avermeer/droidgate/internal/infrastructure/config"
)

// fakeAdapter returns canned results keyed by the joined command line.
type fakeAdapter struct {
	results map[string]Result
	errs    map[string]error
	calls   []string
}

func (f *fakeAdapter) Execute(_ context.Context, name string, args []string, _ time.Duration) (Result, error) {
	key := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return Result{}, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return Result{}, fmt.Errorf("unexpected command: %s", key)
}

func testController(adapter Adapter) *Controller {
	return NewController(adapter, config.RuntimeConfig{
		ControlBinary: "droid-runtime",
		BridgeBinary:  "adb",
		ContainerName: "droid0",
		Timeouts: config.RuntimeTimeoutConfig{
			Status:     5,
			Command:    10,
			Restart:    30,
			Screenshot: 20,
		},
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		wantStatus string
		wantErr    bool
	}{
		{"running", Result{ExitCode: 0, Stdout: "droid0 running\n"}, "running", false},
		{"stopped", Result{ExitCode: 1, Stdout: "droid0 stopped\n"}, "stopped", false},
		{"failure", Result{ExitCode: 2, Stderr: "no such container"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testController(&fakeAdapter{results: map[string]Result{
				"droid-runtime status droid0": tt.result,
			}})

			res, err := c.Status(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Status() error = %v, wantErr %v", err, tt.wantErr)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status() = %q, want %q", res.Status, tt.wantStatus)
			}
		})
	}
}

func TestStatusFailureIsCommandError(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"droid-runtime status droid0": {ExitCode: 2, Stderr: "boom"},
	}})

	_, err := c.Status(context.Background())
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Status() error = %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 2 || cmdErr.Stderr != "boom" {
		t.Errorf("CommandError = %+v", cmdErr)
	}
}

func TestVersion(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"droid-runtime version": {ExitCode: 0, Stdout: "droid-runtime 2.4.1\n"},
	}})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != "droid-runtime 2.4.1" {
		t.Errorf("Version() = %q", v)
	}
}

func TestListApps(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb shell pm list packages": {
			ExitCode: 0,
			Stdout:   "package:com.example.one\npackage:com.example.two\n\ngarbage line\n",
		},
	}})

	apps, err := c.ListApps(context.Background())
	if err != nil {
		t.Fatalf("ListApps() error: %v", err)
	}
	want := []string{"com.example.one", "com.example.two"}
	if len(apps) != len(want) {
		t.Fatalf("ListApps() = %v, want %v", apps, want)
	}
	for i := range want {
		if apps[i] != want[i] {
			t.Errorf("apps[%d] = %q, want %q", i, apps[i], want[i])
		}
	}
}

func TestLogs(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb logcat -d -t 50": {ExitCode: 0, Stdout: "line one\nline two\n"},
	}})

	logs, err := c.Logs(context.Background(), 50)
	if err != nil {
		t.Fatalf("Logs() error: %v", err)
	}
	if len(logs) != 2 || logs[0] != "line one" || logs[1] != "line two" {
		t.Errorf("Logs() = %v", logs)
	}
}

func TestProperties(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb shell getprop": {
			ExitCode: 0,
			Stdout: "[ro.build.version.release]: [14]\n" +
				"[ro.product.model]: [Pixel 7]\n" +
				"malformed line\n" +
				"[empty.value]: []\n",
		},
	}})

	props, err := c.Properties(context.Background())
	if err != nil {
		t.Fatalf("Properties() error: %v", err)
	}
	if props["ro.build.version.release"] != "14" {
		t.Errorf("release = %q, want 14", props["ro.build.version.release"])
	}
	if props["ro.product.model"] != "Pixel 7" {
		t.Errorf("model = %q", props["ro.product.model"])
	}
	if v, ok := props["empty.value"]; !ok || v != "" {
		t.Errorf("empty.value = %q, ok=%v, want empty string present", v, ok)
	}
	if len(props) != 3 {
		t.Errorf("len(props) = %d, want 3 (malformed line skipped)", len(props))
	}
}

func TestParsePropLine(t *testing.T) {
	tests := []struct {
		line      string
		key, val  string
		wantValid bool
	}{
		{"[ro.serialno]: [ABC123]", "ro.serialno", "ABC123", true},
		{"  [k]: [v]  ", "k", "v", true},
		{"[k]: []", "k", "", true},
		{"no brackets", "", "", false},
		{"[unterminated]: [v", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		key, val, ok := parsePropLine(tt.line)
		if ok != tt.wantValid || key != tt.key || val != tt.val {
			t.Errorf("parsePropLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, key, val, ok, tt.key, tt.val, tt.wantValid)
		}
	}
}

func TestSetProperty(t *testing.T) {
	fake := &fakeAdapter{results: map[string]Result{
		"adb shell setprop debug.layout true": {ExitCode: 0},
	}}
	c := testController(fake)

	if err := c.SetProperty(context.Background(), "debug.layout", "true"); err != nil {
		t.Fatalf("SetProperty() error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("calls = %v", fake.calls)
	}
}

func TestLaunch(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb shell monkey -p com.example.app -c android.intent.category.LAUNCHER 1": {
			ExitCode: 0,
			Stdout:   "Events injected: 1\n",
		},
	}})

	out, err := c.Launch(context.Background(), "com.example.app")
	if err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	if out != "Events injected: 1" {
		t.Errorf("Launch() output = %q", out)
	}
}

func TestStop(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb shell am force-stop com.example.app": {ExitCode: 0},
	}})

	if err := c.Stop(context.Background(), "com.example.app"); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestSendIntent(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb shell am start -a android.intent.action.VIEW": {
			ExitCode: 0,
			Stdout:   "Starting: Intent { act=android.intent.action.VIEW }\n",
		},
	}})

	out, err := c.SendIntent(context.Background(), "android.intent.action.VIEW")
	if err != nil {
		t.Fatalf("SendIntent() error: %v", err)
	}
	if !strings.Contains(out, "android.intent.action.VIEW") {
		t.Errorf("SendIntent() output = %q", out)
	}
}

func TestRestartContainer(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"droid-runtime restart droid0": {ExitCode: 0, Stdout: "droid0 restarted\n"},
	}})

	out, err := c.RestartContainer(context.Background())
	if err != nil {
		t.Fatalf("RestartContainer() error: %v", err)
	}
	if out != "droid0 restarted" {
		t.Errorf("RestartContainer() = %q", out)
	}
}

func TestScreenshot(t *testing.T) {
	pngHeader := "\x89PNG\r\n\x1a\n"
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb exec-out screencap -p": {ExitCode: 0, Stdout: pngHeader + "imagedata"},
	}})

	png, err := c.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("Screenshot() error: %v", err)
	}
	if !strings.HasPrefix(string(png), pngHeader) {
		t.Errorf("Screenshot() missing PNG header")
	}
}

func TestScreenshotEmptyOutput(t *testing.T) {
	c := testController(&fakeAdapter{results: map[string]Result{
		"adb exec-out screencap -p": {ExitCode: 0},
	}})

	if _, err := c.Screenshot(context.Background()); err == nil {
		t.Fatal("Screenshot() with empty output returned nil error")
	}
}

func TestTimeoutPropagates(t *testing.T) {
	c := testController(&fakeAdapter{errs: map[string]error{
		"droid-runtime restart droid0": fmt.Errorf("droid-runtime: %w", ErrTimeout),
	}})

	_, err := c.RestartContainer(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("RestartContainer() error = %v, want ErrTimeout", err)
	}
}
