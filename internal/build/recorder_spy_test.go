package build

import (
	"context"
	"sync"
)

var (
	_ Recorder = (*SpyRecorder)(nil)
	_ Notifier = (*SpyNotifier)(nil)
)

type SpyRecorder struct {
	CreateErr error

	mu       sync.Mutex
	States   []State
	Finished *RecorderFinishParams
}

func (r *SpyRecorder) Create(ctx context.Context, params *RecorderCreateParams) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, StateIntake)
	return nil
}

func (r *SpyRecorder) UpdateState(ctx context.Context, params *RecorderUpdateStateParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, params.State)
	return nil
}

func (r *SpyRecorder) Finish(ctx context.Context, params *RecorderFinishParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, params.State)
	r.Finished = params
	return nil
}

type SpyNotifier struct {
	mu     sync.Mutex
	Events []*Event
}

func (n *SpyNotifier) Notify(ctx context.Context, event *Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
	return nil
}
