package probe

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// NativeCensusProbe enumerates running processes through the OS process
// table. Window visibility is not observable this way, so entries carry
// HasWindow=false and ordering falls back to process count; the script census
// probe is preferred when a command is configured.
type NativeCensusProbe struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Processes implements CensusProbe. Returns an empty result off Windows,
// matching the tracker's Windows-only scope.
func (p *NativeCensusProbe) Processes(ctx context.Context) ([]ProcessInfo, error) {
	if runtime.GOOS != "windows" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, proc := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		counts[name]++
	}

	infos := make([]ProcessInfo, 0, len(counts))
	for name, count := range counts {
		infos = append(infos, ProcessInfo{Process: name, Count: count})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Count != infos[j].Count {
			return infos[i].Count > infos[j].Count
		}
		return infos[i].Process < infos[j].Process
	})
	if len(infos) > MaxCensusResults {
		infos = infos[:MaxCensusResults]
	}
	return infos, nil
}
