// Package core defines the domain model, collaborator contracts, error
// taxonomy, and configuration for the go-verify pipeline.
//
// The pipeline verifies third-party credential presentations and revocations
// and notifies a single configured subscriber endpoint through signed webhook
// calls. Everything cryptographic (key management, SAID computation, status
// derivation from transaction event logs, message transport) is consumed
// through the interfaces declared here and implemented elsewhere.
package core
