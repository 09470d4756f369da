package container

import (
	"context"
	"sync"
)

// FakeClient is an in-memory Client for tests. Zero value behavior: pulls
// and runs succeed, host path detection reports nothing. Individual calls
// can be overridden through the hook fields.
type FakeClient struct {
	mu sync.Mutex

	PullFunc     func(ctx context.Context, img string) error
	RunFunc      func(ctx context.Context, req RunRequest) error
	HostPathFunc func(ctx context.Context, hostname, containerPath string) (string, bool)

	Pulled []string
	Runs   []RunRequest
	Closed bool
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) PullImage(ctx context.Context, img string) error {
	f.mu.Lock()
	f.Pulled = append(f.Pulled, img)
	f.mu.Unlock()
	if f.PullFunc != nil {
		return f.PullFunc(ctx, img)
	}
	return nil
}

func (f *FakeClient) RunContainer(ctx context.Context, req RunRequest) error {
	f.mu.Lock()
	f.Runs = append(f.Runs, req)
	f.mu.Unlock()
	if f.RunFunc != nil {
		return f.RunFunc(ctx, req)
	}
	return nil
}

func (f *FakeClient) DetectHostPath(ctx context.Context, hostname, containerPath string) (string, bool) {
	if f.HostPathFunc != nil {
		return f.HostPathFunc(ctx, hostname, containerPath)
	}
	return "", false
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
