//go:build !windows

package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// NativeForegroundProbe has no implementation off Windows; Sample reports no
// focused window so a tick credits no one.
type NativeForegroundProbe struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Sample implements ForegroundProbe.
func (p *NativeForegroundProbe) Sample(ctx context.Context) (*ForegroundSample, error) {
	return nil, nil
}
