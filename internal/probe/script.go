package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Script probes shell out to a fixed external command (typically a PowerShell
// snippet on Windows) and parse its JSON output. The command is never killed
// mid-flight by shutdown; the per-call timeout is the only cancellation.

// ScriptForegroundProbe invokes a command that prints
// {"process": string|null, "title": string|null} or null.
type ScriptForegroundProbe struct {
	Command []string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Sample implements ForegroundProbe.
func (p *ScriptForegroundProbe) Sample(ctx context.Context) (*ForegroundSample, error) {
	out, err := runScript(ctx, p.Timeout, p.Command)
	if err != nil {
		return nil, err
	}

	var sample *struct {
		Process *string `json:"process"`
		Title   *string `json:"title"`
	}
	if err := json.Unmarshal(out, &sample); err != nil {
		return nil, fmt.Errorf("foreground probe output: %w", err)
	}
	if sample == nil || sample.Process == nil {
		return nil, nil
	}

	result := &ForegroundSample{Process: *sample.Process}
	if sample.Title != nil {
		result.Title = *sample.Title
	}
	return result, nil
}

// ScriptCensusProbe invokes a command that prints an array of
// {"process": string, "count": int, "hasWindow": bool}.
type ScriptCensusProbe struct {
	Command []string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Processes implements CensusProbe.
func (p *ScriptCensusProbe) Processes(ctx context.Context) ([]ProcessInfo, error) {
	out, err := runScript(ctx, p.Timeout, p.Command)
	if err != nil {
		return nil, err
	}

	var infos []ProcessInfo
	if err := json.Unmarshal(out, &infos); err != nil {
		return nil, fmt.Errorf("census probe output: %w", err)
	}
	if len(infos) > MaxCensusResults {
		infos = infos[:MaxCensusResults]
	}
	return infos, nil
}

// ScriptNotificationProbe invokes a command that prints
// {"events": [...], "error": string}.
type ScriptNotificationProbe struct {
	Command []string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Events implements NotificationProbe.
func (p *ScriptNotificationProbe) Events(ctx context.Context) ([]NotificationEvent, error) {
	out, err := runScript(ctx, p.Timeout, p.Command)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Events []NotificationEvent `json:"events"`
		Error  string              `json:"error"`
	}
	if err := json.Unmarshal(out, &wrapper); err != nil {
		return nil, fmt.Errorf("notification probe output: %w", err)
	}
	if wrapper.Error != "" {
		if wrapper.Error == "no-logs" {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("notification probe: %s", wrapper.Error)
	}
	return wrapper.Events, nil
}

func runScript(ctx context.Context, timeout time.Duration, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("probe command not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe %s timed out after %s", argv[0], timeout)
		}
		return nil, fmt.Errorf("probe %s: %w", argv[0], err)
	}
	return out, nil
}
