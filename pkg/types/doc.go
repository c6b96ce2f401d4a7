// Package types defines the node kind and data type enumerations, the Tree
// and Registry collaborator contracts, and the standard error types for the
// Arbor persistence coordinator.
package types
