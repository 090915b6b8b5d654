// Package auth defines the contract for verifying bearer credentials
// presented by connecting clients.
package auth

// Identity is a stable, authenticated principal. It is produced by a
// Verifier during the connection handshake and never changes for the
// lifetime of the connection.
type Identity struct {
	// ID is the account identifier, unique across the deployment.
	ID string `json:"id"`
	// Email is the account email at the time the credential was issued.
	Email string `json:"email,omitempty"`
}

// AuthErr is a structure for reporting an error condition.
type AuthErr string

func (e AuthErr) Error() string {
	return string(e)
}

const (
	// ErrMissingCredential means the handshake carried no credential at all.
	ErrMissingCredential = AuthErr("missing credential")
	// ErrInvalidCredential means the credential cannot be parsed or its
	// signature does not check out.
	ErrInvalidCredential = AuthErr("invalid credential")
	// ErrExpiredCredential means the credential was valid once but has expired.
	ErrExpiredCredential = AuthErr("expired credential")
)

// FailureCategory maps a verification error to the short label used in logs
// and metrics. The category has no effect on how a rejected connection is
// treated.
func FailureCategory(err error) string {
	switch err {
	case ErrMissingCredential:
		return "missing"
	case ErrInvalidCredential:
		return "invalid"
	case ErrExpiredCredential:
		return "expired"
	default:
		return "unknown"
	}
}

// Verifier validates a bearer credential extracted from the connection
// handshake. Implementations may block on I/O: verification happens once per
// connection, before the connection is considered live.
type Verifier interface {
	// Verify returns the identity encoded in the credential, or one of the
	// AuthErr values above.
	Verify(credential string) (*Identity, error)
}
