package build

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the stored history of one build.
type Record struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	AppName      string
	PackageName  string
	VersionName  string
	VersionCode  int
	State        State
	ErrorKind    string
	ErrorMessage string
	ArtifactName string
	Log          string
}

type RecorderCreateParams struct {
	Request *Request
}

type RecorderUpdateStateParams struct {
	ID    uuid.UUID
	State State
}

type RecorderFinishParams struct {
	ID           uuid.UUID
	State        State // StateSucceeded or StateFailed
	ErrorKind    string
	ErrorMessage string
	ArtifactName string
	Log          string
}

// Recorder keeps build history.
// Create must fail with ErrBuildIDTaken if the ID was already recorded.
type Recorder interface {
	Create(ctx context.Context, params *RecorderCreateParams) error
	UpdateState(ctx context.Context, params *RecorderUpdateStateParams) error
	Finish(ctx context.Context, params *RecorderFinishParams) error
}

// NopRecorder doesn't keep any history.
type NopRecorder struct{}

func (NopRecorder) Create(context.Context, *RecorderCreateParams) error           { return nil }
func (NopRecorder) UpdateState(context.Context, *RecorderUpdateStateParams) error { return nil }
func (NopRecorder) Finish(context.Context, *RecorderFinishParams) error           { return nil }

// Event announces a finished build.
type Event struct {
	ID           uuid.UUID
	State        State
	ErrorKind    string
	ErrorMessage string
	ArtifactName string
	FinishedAt   time.Time
}

type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// NopNotifier drops events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *Event) error { return nil }
