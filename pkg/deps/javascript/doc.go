// Package javascript parses npm lockfiles into dependency edges.
package javascript
