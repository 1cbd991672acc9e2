// Package action defines the uniform result returned by every operation a
// remote client can trigger: authentication steps and resource actions
// alike. A Result pairs a Status with either a human-readable message or a
// JSON payload, and is immutable once built so that the package-level
// results (NotFound, MethodNotAllowed, ...) can be shared freely.
package action
