// Package publisher turns a showcase contribution into a pull request.
//
// Publish runs a straight pipeline of named steps against a git.Provider:
// read the base branch head, create the contribution branch, commit the
// metadata document, commit the image, and open the pull request. Each step
// either succeeds and the pipeline advances, or fails and the pipeline stops.
// When a step after branch creation fails, the branch is deleted before the
// *StepError is returned, unless Config.KeepFailedBranches is set.
//
// Branch and file names embed a unix timestamp captured once per request
// together with the author slug; that is the only protection against
// collisions between concurrent submissions.
package publisher
