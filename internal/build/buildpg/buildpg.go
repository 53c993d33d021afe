// Package buildpg keeps build history in PostgreSQL.
package buildpg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/k11v/web2app/internal/build"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ build.Recorder = (*Recorder)(nil)

type Recorder struct {
	DB Querier // required
}

func NewRecorder(db Querier) *Recorder {
	return &Recorder{DB: db}
}

// Create implements build.Recorder.
func (r *Recorder) Create(ctx context.Context, params *build.RecorderCreateParams) error {
	req := params.Request
	query := `
		INSERT INTO builds (id, app_name, package_name, version_name, version_code, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	args := []any{req.ID, req.AppName, req.PackageName, req.VersionName, req.VersionCode, string(build.StateIntake)}

	rows, _ := r.DB.Query(ctx, query, args...)
	_, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("buildpg.Recorder: %w", build.ErrBuildIDTaken)
		}
		return fmt.Errorf("buildpg.Recorder: %w", err)
	}

	return nil
}

// UpdateState implements build.Recorder.
func (r *Recorder) UpdateState(ctx context.Context, params *build.RecorderUpdateStateParams) error {
	query := `
		UPDATE builds
		SET state = $1, updated_at = now()
		WHERE id = $2
		RETURNING id
	`
	args := []any{string(params.State), params.ID}

	rows, _ := r.DB.Query(ctx, query, args...)
	_, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[uuid.UUID])
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("buildpg.Recorder: %w", build.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("buildpg.Recorder: %w", err)
	}

	return nil
}

// Finish implements build.Recorder.
func (r *Recorder) Finish(ctx context.Context, params *build.RecorderFinishParams) error {
	query := `
		UPDATE builds
		SET state = $1, error_kind = $2, error_message = $3, artifact_name = $4, log = $5, updated_at = now()
		WHERE id = $6
		RETURNING id
	`
	args := []any{string(params.State), params.ErrorKind, params.ErrorMessage, params.ArtifactName, params.Log, params.ID}

	rows, _ := r.DB.Query(ctx, query, args...)
	_, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[uuid.UUID])
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("buildpg.Recorder: %w", build.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("buildpg.Recorder: %w", err)
	}

	return nil
}

// Get returns the record of a build.
func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*build.Record, error) {
	query := `
		SELECT
			id, created_at, updated_at,
			app_name, package_name, version_name, version_code,
			state, error_kind, error_message, artifact_name, log
		FROM builds
		WHERE id = $1
	`
	args := []any{id}

	rows, _ := r.DB.Query(ctx, query, args...)
	record, err := pgx.CollectExactlyOneRow(rows, rowToRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("buildpg.Recorder: %w", build.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("buildpg.Recorder: %w", err)
	}

	return record, nil
}

type RecorderListParams struct {
	PageLimit  int
	PageOffset int
}

// List returns records of the most recent builds first.
func (r *Recorder) List(ctx context.Context, params *RecorderListParams) ([]*build.Record, error) {
	query := `
		SELECT
			id, created_at, updated_at,
			app_name, package_name, version_name, version_code,
			state, error_kind, error_message, artifact_name, log
		FROM builds
		ORDER BY created_at DESC, id ASC
		LIMIT $1
		OFFSET $2
	`
	args := []any{params.PageLimit, params.PageOffset}

	rows, _ := r.DB.Query(ctx, query, args...)
	records, err := pgx.CollectRows(rows, rowToRecord)
	if err != nil {
		return nil, fmt.Errorf("buildpg.Recorder: %w", err)
	}

	return records, nil
}

type row struct {
	ID           uuid.UUID `db:"id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	AppName      string    `db:"app_name"`
	PackageName  string    `db:"package_name"`
	VersionName  string    `db:"version_name"`
	VersionCode  int       `db:"version_code"`
	State        string    `db:"state"`
	ErrorKind    string    `db:"error_kind"`
	ErrorMessage string    `db:"error_message"`
	ArtifactName string    `db:"artifact_name"`
	Log          string    `db:"log"`
}

func rowToRecord(collectableRow pgx.CollectableRow) (*build.Record, error) {
	collectedRow, err := pgx.RowToStructByName[row](collectableRow)
	if err != nil {
		return nil, fmt.Errorf("row to record: %w", err)
	}

	state, known := build.ParseState(collectedRow.State)
	if !known {
		slog.Default().Warn(
			"unknown state encountered while reading build",
			"state", collectedRow.State,
			"build_id", collectedRow.ID,
		)
	}

	return &build.Record{
		ID:           collectedRow.ID,
		CreatedAt:    collectedRow.CreatedAt,
		UpdatedAt:    collectedRow.UpdatedAt,
		AppName:      collectedRow.AppName,
		PackageName:  collectedRow.PackageName,
		VersionName:  collectedRow.VersionName,
		VersionCode:  collectedRow.VersionCode,
		State:        state,
		ErrorKind:    collectedRow.ErrorKind,
		ErrorMessage: collectedRow.ErrorMessage,
		ArtifactName: collectedRow.ArtifactName,
		Log:          collectedRow.Log,
	}, nil
}
