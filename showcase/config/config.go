package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Supported hosting platforms.
const (
	ProviderGitHub    = "github"
	ProviderGitLab    = "gitlab"
	ProviderBitbucket = "bitbucket"
)

// Environment variable names.
const (
	EnvConfigPath    = "SHOWCASE_CONFIG"
	EnvProvider      = "SHOWCASE_PROVIDER"
	EnvOwner         = "SHOWCASE_OWNER"
	EnvRepo          = "SHOWCASE_REPO"
	EnvBaseBranch    = "SHOWCASE_BASE_BRANCH"
	EnvAllowedOrigin = "SHOWCASE_ALLOWED_ORIGIN"
	EnvDryRun        = "SHOWCASE_DRY_RUN"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvGitLabToken   = "GITLAB_TOKEN"
	EnvGitLabHost    = "GITLAB_HOST"
	EnvBitbucketURL  = "BITBUCKET_URL"
	EnvBitbucketUser = "BITBUCKET_USER"
	EnvBitbucketPass = "BITBUCKET_PASSWORD"
)

// DefaultMaxBodyBytes caps inbound request bodies.
const DefaultMaxBodyBytes int64 = 8 << 20

// GitHubConfig holds GitHub specific settings.
type GitHubConfig struct {
	EnterpriseHost string `yaml:"enterpriseHost"`
	APIURL         string `yaml:"apiUrl"`
	Token          string `yaml:"-"`
}

// GitLabConfig holds GitLab specific settings.
type GitLabConfig struct {
	Host string `yaml:"host"`
	// Project is the full project path. Defaults to
	// owner/repo.
	Project string `yaml:"project"`
	Token   string `yaml:"-"`
}

// BitbucketConfig holds Bitbucket Server settings.
type BitbucketConfig struct {
	BaseURL string `yaml:"baseUrl"`
	// Project is the project key. Defaults to owner.
	Project string `yaml:"project"`
	// MaxRetries enables retrying reads and deletes.
	// Writes are never retried.
	MaxRetries int    `yaml:"maxRetries"`
	User       string `yaml:"-"`
	Password   string `yaml:"-"`
}

// Config aggregates runtime configuration. Tokens are
// only ever read from the environment.
type Config struct {
	Provider           string          `yaml:"provider"`
	Owner              string          `yaml:"owner"`
	Repo               string          `yaml:"repo"`
	BaseBranch         string          `yaml:"baseBranch"`
	BranchPrefix       string          `yaml:"branchPrefix"`
	ShowcaseDir        string          `yaml:"showcaseDir"`
	PRTitle            string          `yaml:"prTitle"`
	PRBody             string          `yaml:"prBody"`
	MetadataMessage    string          `yaml:"metadataMessage"`
	ImageMessage       string          `yaml:"imageMessage"`
	KeepFailedBranches bool            `yaml:"keepFailedBranches"`
	AllowedOrigin      string          `yaml:"allowedOrigin"`
	MaxBodyBytes       int64           `yaml:"maxBodyBytes"`
	DryRun             bool            `yaml:"dryRun"`
	GitHub             GitHubConfig    `yaml:"github"`
	GitLab             GitLabConfig    `yaml:"gitlab"`
	Bitbucket          BitbucketConfig `yaml:"bitbucket"`
}

// Default returns the configuration used when neither
// a file nor the environment say otherwise.
func Default() Config {
	return Config{
		Provider:      ProviderGitHub,
		Owner:         "CodingTrain",
		Repo:          "thecodingtrain.com",
		BaseBranch:    "main",
		AllowedOrigin: "*",
		MaxBodyBytes:  DefaultMaxBodyBytes,
	}
}

// Load builds the configuration from defaults, the
// optional YAML file at path, and the environment, in
// that order. An empty path falls back to
// SHOWCASE_CONFIG.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(
	path string,
	lookup func(string) (string, bool),
) (Config, error) {
	const errCtx = "loading config"

	cfg := Default()

	if path == "" {
		path = getEnv(lookup, EnvConfigPath, "")
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
		if err != nil {
			return Config{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		if err := yaml.UnmarshalWithOptions(
			data, &cfg, yaml.Strict(),
		); err != nil {
			return Config{}, fmt.Errorf(
				"%s: parse %s: %w", errCtx, path, err,
			)
		}
	}

	cfg.Provider = getEnv(lookup, EnvProvider, cfg.Provider)
	cfg.Owner = getEnv(lookup, EnvOwner, cfg.Owner)
	cfg.Repo = getEnv(lookup, EnvRepo, cfg.Repo)
	cfg.BaseBranch = getEnv(lookup, EnvBaseBranch, cfg.BaseBranch)
	cfg.AllowedOrigin = getEnv(
		lookup, EnvAllowedOrigin, cfg.AllowedOrigin,
	)
	cfg.GitLab.Host = getEnv(lookup, EnvGitLabHost, cfg.GitLab.Host)
	cfg.GitHub.Token = getEnv(lookup, EnvGitHubToken, "")
	cfg.GitLab.Token = getEnv(lookup, EnvGitLabToken, "")
	cfg.Bitbucket.BaseURL = getEnv(
		lookup, EnvBitbucketURL, cfg.Bitbucket.BaseURL,
	)
	cfg.Bitbucket.User = getEnv(lookup, EnvBitbucketUser, "")
	cfg.Bitbucket.Password = getEnv(lookup, EnvBitbucketPass, "")

	dryRun, err := envBool(lookup, EnvDryRun, cfg.DryRun)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg.DryRun = dryRun

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	cfg.Provider = strings.ToLower(cfg.Provider)

	return cfg, nil
}

// Validate reports configuration that cannot produce a
// working provider.
func (c Config) Validate() error {
	const errCtx = "validating config"

	var errs []error

	switch c.Provider {
	case ProviderGitHub:
		if !c.DryRun && c.GitHub.Token == "" {
			errs = append(errs, fmt.Errorf(
				"%s must be set", EnvGitHubToken,
			))
		}
	case ProviderGitLab:
		if !c.DryRun && c.GitLab.Token == "" {
			errs = append(errs, fmt.Errorf(
				"%s must be set", EnvGitLabToken,
			))
		}
	case ProviderBitbucket:
		if c.Bitbucket.BaseURL == "" {
			errs = append(errs, fmt.Errorf(
				"bitbucket.baseUrl or %s must be set",
				EnvBitbucketURL,
			))
		}

		if !c.DryRun &&
			(c.Bitbucket.User == "" || c.Bitbucket.Password == "") {
			errs = append(errs, fmt.Errorf(
				"%s and %s must be set",
				EnvBitbucketUser, EnvBitbucketPass,
			))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"unknown provider %q", c.Provider,
		))
	}

	if c.Owner == "" {
		errs = append(errs, errors.New("owner must be set"))
	}

	if c.Repo == "" {
		errs = append(errs, errors.New("repo must be set"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// getEnv returns the trimmed value of an environment
// variable or def when unset or blank.
func getEnv(
	lookup func(string) (string, bool),
	key string,
	def string,
) string {
	v, ok := lookup(key)
	if !ok {
		return def
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}

	return v
}

func envBool(
	lookup func(string) (string, bool),
	key string,
	def bool,
) (bool, error) {
	v := getEnv(lookup, key, "")
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}

	return b, nil
}
