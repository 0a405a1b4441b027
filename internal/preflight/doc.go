// Package preflight provides readiness checks for the external tools and
// filesystem paths that Glossa depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs a snapshot so missing
//     binaries or unwritable directories surface before the first job fails.
//   - The CLI "glossa health" command renders individual check results when
//     diagnosing a misbehaving installation.
//
// Checks are local and fast: translation credentials are verified for
// presence only, never by calling the remote API.
package preflight
