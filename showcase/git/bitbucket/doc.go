// Package bitbucket implements git.Provider for Bitbucket
// Server using its REST API 1.0. Files are committed
// through the browse endpoint and branch deletion goes
// through the branch-utils API.
package bitbucket
