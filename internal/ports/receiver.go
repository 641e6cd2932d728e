package ports

// Receiver defines the interface for an inbound email transport. The HTTP
// webhook server and the SMTP listener both satisfy it so the container can
// run any combination of them.
type Receiver interface {
	// Start starts accepting inbound email
	Start() error

	// Stop shuts the receiver down
	Stop() error
}
