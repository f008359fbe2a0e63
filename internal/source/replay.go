package source

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// ReplayDriver is a Driver over saved page snapshots. Every click moves to the
// next snapshot; clicking past the last one fails.
type ReplayDriver struct {
	mu    sync.Mutex
	paths []string
	pos   int
}

func NewReplayDriver(paths []string) *ReplayDriver {
	return &ReplayDriver{paths: paths}
}

func (d *ReplayDriver) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.paths) == 0 {
		return "", fmt.Errorf("replay: no snapshots")
	}
	b, err := os.ReadFile(d.paths[d.pos])
	if err != nil {
		return "", fmt.Errorf("replay: %w", err)
	}
	return string(b), nil
}

func (d *ReplayDriver) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos+1 >= len(d.paths) {
		return fmt.Errorf("replay: click %q past last snapshot", selector)
	}
	d.pos++
	return nil
}
