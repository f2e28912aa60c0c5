// Package identity derives a canonical patient_id from untrusted per-document
// metadata. Everything here is pure: the same input always yields the same
// identity, across documents and across runs.
//
// Resolution order:
//
//  1. a fiscal code that passes the format check, normalized to upper case
//     without whitespace;
//  2. name plus date of birth, slugged;
//  3. the source filename, slugged and flagged as low confidence.
//
// Low-confidence identities are never reconciled automatically with stronger
// ones; that is left to an operator.
package identity
