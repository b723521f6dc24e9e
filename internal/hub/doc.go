// Package hub resolves which remote deployment a local project should talk to
// and validates that deployment's storage manifest against the features the
// project enables locally.
//
// The flow is linear: read the current branch, resolve a credential (looking
// the project up on the control plane when it is linked by key), determine the
// environment and its base URL, fetch the manifest, and reconcile it. Every
// step returns a classified *Error on failure; nothing in this package exits
// the process.
package hub
