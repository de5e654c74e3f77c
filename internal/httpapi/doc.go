// Package httpapi exposes the ladder over HTTP: a chat webhook that feeds
// messages to the chat dispatcher, and read-only JSON views of standings,
// matches and their audit trail.
//
// Ledger error codes map to HTTP statuses on the JSON endpoints
// (NOT_FOUND 404, UNAUTHORIZED 403, INVALID_INPUT and NOT_PARTICIPANT 400,
// ALREADY_RESOLVED 409, PERSISTENCE_FAILURE 503, anything else 500). The
// webhook always answers 200 for a parsed message because the reply text
// is the user-facing result.
package httpapi
