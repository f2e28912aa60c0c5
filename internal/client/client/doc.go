// Package client contains the client-side building blocks of the MedKeeper CLI.
//
// # Overview
//
//  1. A transport-agnostic API contract (see the Client interface) covering
//     the MedKeeper RPCs used by the CLI.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects the session and admin tokens via an interceptor and
//     maps gRPC status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     cached session, backed by SQLite and embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound,
// ErrRejected and ErrNotLoggedIn. The server message is kept in the error text.
package client
