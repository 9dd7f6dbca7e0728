// Package offsite mirrors ledger copies to storage outside the vault host.
//
// Every store keeps a flat namespace of objects, each with an integer
// version marker so callers can tell whether a mirror is behind.
package offsite
