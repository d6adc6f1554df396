// Package templating renders the small text templates used
// when publishing a contribution: the showcase directory,
// pull request titles, and commit messages. It uses
// valyala/fasttemplate with "{{" and "}}" delimiters.
//
// Templates are parsed once, can be checked against the
// set of variables the caller will provide, and fail at
// execution when a variable is missing instead of leaving
// the placeholder in place.
package templating
