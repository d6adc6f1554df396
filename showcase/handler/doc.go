// Package handler exposes the contribution publisher over
// HTTP and as a serverless function.
//
// Both entry points decode a JSON contribution, publish it,
// and answer with a JSON body carrying a request id:
//
//	201 {"requestId","branch","pullRequest":{"number","url"},"files"}
//	400 {"requestId","error","fields"}       invalid request
//	409 {"requestId","error","step"}         branch already exists
//	502 {"requestId","error","step","rolledBack"}
package handler
