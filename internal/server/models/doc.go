// Package models defines the records persisted in the patient registry and
// the pure helpers that transform them (merging, aggregation, expiry).
package models
