// Package gitlab implements a git.Provider that publishes
// contributions on GitLab (cloud or self-managed) as merge
// requests. Configure with a Config containing the host URL,
// project path, and access token.
package gitlab
