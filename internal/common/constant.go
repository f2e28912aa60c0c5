// Package common contains shared constants and sentinel errors used across
// MedKeeper components.
package common

// SessionTokenHeaderName is the gRPC metadata key used to carry a patient
// session token on outbound requests.
const SessionTokenHeaderName = "session_token"

// AdminTokenHeaderName is the gRPC metadata key carrying an admin JWT.
const AdminTokenHeaderName = "admin_token"
