// Package session rebuilds per-transfer receiver state from streams of
// observation records logged by a receiving node, for post-hoc
// link-quality analysis.
package session
