// Package python parses Python lockfiles into dependency edges.
package python
