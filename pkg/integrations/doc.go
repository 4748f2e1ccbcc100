// Package integrations provides HTTP clients for the external services the
// analysis stages consult: the OSV advisory database and the npm and PyPI
// package registries.
//
// The shared [Client] handles response caching, retry with backoff, and
// default headers; each service lives in its own subpackage and embeds it.
// All clients are safe for concurrent use.
package integrations
