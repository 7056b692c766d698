//go:build windows

package probe

import (
	"context"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
)

// NativeForegroundProbe reads the foreground window directly through user32,
// avoiding a process spawn on the 1-second sampling path.
type NativeForegroundProbe struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Sample implements ForegroundProbe.
func (p *NativeForegroundProbe) Sample(ctx context.Context) (*ForegroundSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, nil
	}

	var pid uint32
	procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return nil, nil
	}

	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	title := windows.UTF16ToString(buf[:n])

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return &ForegroundSample{Process: name, Title: title}, nil
}
