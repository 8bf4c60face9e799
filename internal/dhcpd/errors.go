package dhcpd

import "github.com/AdguardTeam/golibs/errors"

// Error kinds returned by this package.  Callers match them with errors.Is.
const (
	// ErrMalformedHeader means the fixed BOOTP header or magic cookie
	// couldn't be parsed.
	ErrMalformedHeader errors.Error = "dhcpd: malformed header"

	// ErrMalformedOption means an option's TLV framing was invalid, or a
	// well-known option had the wrong length for its type.
	ErrMalformedOption errors.Error = "dhcpd: malformed option"

	// ErrAllocationExhausted means the allocator found no free address.
	ErrAllocationExhausted errors.Error = "dhcpd: address pool exhausted"

	// ErrPolicyReject means a client's REQUEST cannot be honored and must be
	// answered with a NAK.
	ErrPolicyReject errors.Error = "dhcpd: request rejected by policy"

	// ErrPersistenceFailure means the lease table snapshot could not be
	// written to the configured ClientStore after all retries.
	ErrPersistenceFailure errors.Error = "dhcpd: persistence failure"

	// ErrTransportTransient wraps a recoverable transport error; the receive
	// loop logs it and resumes.
	ErrTransportTransient errors.Error = "dhcpd: transient transport error"

	// ErrTransportFatal wraps an unrecoverable transport error; it causes
	// Server.Stop.
	ErrTransportFatal errors.Error = "dhcpd: fatal transport error"

	// errNilConfiguration is returned by Configuration.Validate for a nil
	// receiver.
	errNilConfiguration errors.Error = "dhcpd: configuration is nil"
)
