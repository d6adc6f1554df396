// Package github implements a git.Provider that publishes
// contributions on GitHub (cloud or enterprise) through the
// REST API: git refs, repository contents, and pull
// requests. Configure with a Config containing the
// repository owner, name, and access token. Set
// EnterpriseHost for GitHub Enterprise installations, or
// APIURL to point the client at any compatible endpoint.
package github
