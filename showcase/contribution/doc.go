// Package contribution defines the showcase contribution
// request and everything derived from it before any remote
// call: validation, the branch name, the file paths, and
// the metadata document.
//
// All derived values hinge on a single unix timestamp
// captured by the caller, so the branch and both files of
// one contribution always carry the same value.
package contribution
