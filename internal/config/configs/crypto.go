package configs

// Crypto configures encryption of stored mailbox OAuth tokens.
type Crypto struct {
	// Key is a base64-encoded 32-byte AES key. Mandatory for the worker
	// and any process that connects mailboxes.
	Key string `env:"KEY"`
}
