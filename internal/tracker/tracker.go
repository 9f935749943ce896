// Package tracker defines the capability interface every issue tracker
// backend implements, and the registry that selects one by name.
package tracker

import (
	"context"

	"github.com/jzempel/continuity/internal/types"
)

// Adapter is the plugin interface that all tracker backends implement.
// Each backend (GitHub Issues, Pivotal Tracker, JIRA) provides one adapter;
// the workflow engine talks to nothing else.
type Adapter interface {
	// Name returns the lowercase identifier for this tracker (e.g., "github").
	Name() string

	// DisplayName returns the human-readable name (e.g., "GitHub").
	DisplayName() string

	// ConfigPrefix returns the config key prefix (e.g., "github").
	ConfigPrefix() string

	// Init configures credentials and endpoints. Called once per process
	// before any other method.
	Init(ctx context.Context, cfg *Config) error

	// CurrentUser returns the identity the credentials belong to.
	CurrentUser(ctx context.Context) (*types.User, error)

	// ListCandidates returns open items in the backend's native order.
	ListCandidates(ctx context.Context, filter types.Filter) ([]types.TrackerItem, error)

	// Fetch returns a single item. Fails with types.ErrNotFound when the
	// backend does not know the id.
	Fetch(ctx context.Context, id string) (*types.TrackerItem, error)

	// SetStatus moves the item to target and returns the refreshed item.
	// Moving to started also claims an unassigned item for the current user.
	SetStatus(ctx context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error)

	// SetTask marks task index (1-based) done or not done.
	SetTask(ctx context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error)

	// AddComment appends a note to the item.
	AddComment(ctx context.Context, item *types.TrackerItem, text string) error

	// Comments returns the item's notes, oldest first.
	Comments(ctx context.Context, item *types.TrackerItem) ([]types.Comment, error)

	// RenderBranchSlug returns the slug used for the item's branch name.
	RenderBranchSlug(item *types.TrackerItem) string

	// IDPattern is a regular expression matching this backend's ids.
	IDPattern() string

	// NormalizeID turns a user-typed selector into a backend id.
	NormalizeID(selector string) string
}

// ReviewTransitioner is implemented by adapters that can move an item
// when its pull request opens. ok is false when nothing is configured.
type ReviewTransitioner interface {
	TransitionForReview(ctx context.Context, item *types.TrackerItem) (updated *types.TrackerItem, ok bool, err error)
}

// StatusMapper converts backend-native state into the normalized status.
// Implementations must be exhaustive and map unknown input explicitly.
type StatusMapper interface {
	StatusFromTracker(native interface{}) types.Status
}
