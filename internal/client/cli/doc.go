// Package cli provides the MedKeeper command-line client.
//
// It wires configuration, the local session cache and the API client into a
// cobra command tree. Patients log in once and later commands reuse the
// cached session; administrative commands mint a short-lived admin token from
// the shared secret on every invocation.
//
// Command groups:
//   - Account: login, logout, me, signup, register, passwd, reset, profile
//   - Sharing: invite, claim, request-access, requests
//   - Documents: download, download-all, upload
//   - Administration: admin pending|authorize|patients|ingest|token
//
// The tree is built by App.RootCommand and executed by App.Run.
package cli
