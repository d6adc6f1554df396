// Package prbody generates the contribution file list
// embedded in pull request bodies. Files are listed between
// marker lines so that review tooling can find the metadata
// and image of a contribution without reading the diff.
package prbody
