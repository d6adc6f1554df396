package publisher

import (
	"time"

	"github.com/byte4ever/showcase_publisher/showcase/git"
)

// Defaults applied by New to empty Config fields.
const (
	DefaultBaseBranch      = "main"
	DefaultBranchPrefix    = "showcase"
	DefaultShowcaseDir     = "content/videos/challenges/{{challenge}}/showcase"
	DefaultPRTitle         = "Passenger showcase contribution from {{authorName}}"
	DefaultPRBody          = "Yay!"
	DefaultMetadataMessage = "Added contribution JSON file"
	DefaultImageMessage    = "Added contribution image file"
)

// Template variables available to ShowcaseDir, PRTitle,
// PRBody, MetadataMessage and ImageMessage.
const (
	VarChallenge  = "challenge"
	VarTitle      = "title"
	VarAuthorName = "authorName"
	VarAuthorSlug = "authorSlug"
	VarBranch     = "branch"
	VarTimestamp  = "timestamp"
	VarImageExt   = "imageExt"
)

// templateVars lists every variable a template may use.
var templateVars = []string{
	VarChallenge,
	VarTitle,
	VarAuthorName,
	VarAuthorSlug,
	VarBranch,
	VarTimestamp,
	VarImageExt,
}

// Config holds all settings for publishing
// contributions. Use a Config struct instead of many
// arguments.
type Config struct {
	// Provider performs the remote repository
	// operations.
	Provider git.Provider

	// BaseBranch is the branch contributions are
	// proposed against (e.g. "main").
	BaseBranch string

	// BranchPrefix starts every contribution branch
	// name.
	BranchPrefix string

	// ShowcaseDir is the directory template both files
	// are committed under.
	ShowcaseDir string

	// PRTitle is the pull request title template.
	PRTitle string

	// PRBody is the pull request body template. The
	// list of committed files is appended to it.
	PRBody string

	// MetadataMessage is the commit message template
	// of the metadata file.
	MetadataMessage string

	// ImageMessage is the commit message template of
	// the image file.
	ImageMessage string

	// KeepFailedBranches disables deleting the branch
	// when a later step fails.
	KeepFailedBranches bool

	// CleanupTimeout bounds the branch deletion after
	// a failure. Zero means 30 seconds.
	CleanupTimeout time.Duration

	// Now returns the current time. Nil means
	// time.Now.
	Now func() time.Time
}

// withDefaults returns a copy of cfg with empty fields
// set to their defaults.
func withDefaults(cfg Config) Config {
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = DefaultBaseBranch
	}

	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = DefaultBranchPrefix
	}

	if cfg.ShowcaseDir == "" {
		cfg.ShowcaseDir = DefaultShowcaseDir
	}

	if cfg.PRTitle == "" {
		cfg.PRTitle = DefaultPRTitle
	}

	if cfg.PRBody == "" {
		cfg.PRBody = DefaultPRBody
	}

	if cfg.MetadataMessage == "" {
		cfg.MetadataMessage = DefaultMetadataMessage
	}

	if cfg.ImageMessage == "" {
		cfg.ImageMessage = DefaultImageMessage
	}

	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 30 * time.Second
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}
