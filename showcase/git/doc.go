// Package git provides a strategy interface over the
// remote repository operations used to publish a showcase
// contribution: reading a branch head, creating and
// deleting branches, committing files, and opening pull
// requests.
//
// Implementations exist for GitHub and GitLab in
// sub-packages. Funcs is a convenience adapter that lets
// plain functions satisfy the interface; DryRun builds a
// Provider that only logs.
package git
