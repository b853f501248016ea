// Package paths computes the filesystem locations ssh-agent-setup reads and
// writes, and resolves symlinks to canonical paths.
//
// Everything here is derived from an Env captured once at startup, so the
// rest of the program never reads process environment variables directly.
package paths
