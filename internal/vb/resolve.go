package vb

import (
	"context"
	"errors"
	"fmt"
)

// Content is file content along with the history that produced it.
type Content struct {
	Data   []byte
	Source SourceKind
}

// Resolver fetches file content from git or the backup store depending on
// the identifier. Ambiguous identifiers are tried against git first.
type Resolver struct {
	root      string
	git       GitHistory
	snapshots SnapshotHistory
	logger    Logger
}

// NewResolver creates a Resolver for the working tree at root.
func NewResolver(root string, git GitHistory, snapshots SnapshotHistory, logger Logger) *Resolver {
	return &Resolver{
		root:      root,
		git:       git,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Root returns the working tree the resolver reads git history from.
func (r *Resolver) Root() string { return r.root }

// Content returns the content of path at the commit or snapshot named by id.
// The returned Content.Source is never SourceAmbiguous.
func (r *Resolver) Content(ctx context.Context, id string, path string) (*Content, error) {
	if id == "" || path == "" {
		return nil, fmt.Errorf("source and path are required: %w", ErrInvalidInput)
	}

	kind := ClassifySource(id)
	switch kind {
	case SourceGit:
		return r.fromGit(ctx, id, path)
	case SourceSnapshot:
		return r.fromSnapshot(ctx, id, path)
	case SourceAmbiguous:
		c, err := r.fromGit(ctx, id, path)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.logger.Debug("ambiguous source not found in git, trying snapshot", "source", id, "path", path)
		return r.fromSnapshot(ctx, id, path)
	default:
		return nil, fmt.Errorf("unhandled source kind %d: %w", kind, ErrInvalidInput)
	}
}

func (r *Resolver) fromGit(ctx context.Context, ref string, path string) (*Content, error) {
	data, err := r.git.ShowFile(ctx, r.root, ref, path)
	if err != nil {
		return nil, err
	}
	return &Content{Data: data, Source: SourceGit}, nil
}

func (r *Resolver) fromSnapshot(ctx context.Context, id string, path string) (*Content, error) {
	data, err := r.snapshots.Dump(ctx, id, path)
	if err != nil {
		return nil, err
	}
	return &Content{Data: data, Source: SourceSnapshot}, nil
}
