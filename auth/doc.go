// Package auth authenticates publishers with HTTP Basic credentials checked
// against Argon2id password hashes stored in PHC string format.
//
// Hash comparisons are CPU bound and run on a bounded Pool so that a burst of
// publish requests cannot starve the HTTP server of processors.
package auth
