package build

import (
	"github.com/google/uuid"
)

const (
	DefaultVersionName = "1.0.0"
	DefaultVersionCode = 1
)

// Request describes one build.
// It is created by Stager and isn't modified afterwards.
type Request struct {
	ID              uuid.UUID
	AppName         string
	PackageName     string
	VersionName     string
	VersionCode     int
	SiteArchiveFile string // required
	IconFile        string // optional
	SplashFile      string // optional
}

type Result struct {
	ID           uuid.UUID
	ArtifactName string
	Log          string
}

type State string

const (
	StateIntake           State = "intake"
	StateExtracting       State = "extracting"
	StateValidating       State = "validating"
	StateMaterializing    State = "materializing"
	StateProcessingAssets State = "processing_assets"
	StateBuilding         State = "building"
	StatePublishing       State = "publishing"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

func ParseState(s string) (state State, known bool) {
	state = State(s)
	switch state {
	case StateIntake, StateExtracting, StateValidating, StateMaterializing,
		StateProcessingAssets, StateBuilding, StatePublishing, StateSucceeded, StateFailed:
		return state, true
	default:
		return state, false
	}
}

// Done reports whether state is terminal.
func (s State) Done() bool {
	return s == StateSucceeded || s == StateFailed
}
