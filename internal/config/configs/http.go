package configs

// HTTP defines configuration for the API server.
type HTTP struct {
	// Port is the TCP port the server listens on. Defaults to 8080.
	Port uint16 `env:"PORT" envDefault:"8080"`
}
