package client

import (
	"os"

	"github.com/volgapavel/popov-exem/pkg/client"
)

const uriEnv = "CONTROLLER_URI"

// New returns a new pipeline controller client
func New() (client.Client, error) {
	uri := os.Getenv(uriEnv)
	if uri == "" {
		uri = "http://127.0.0.1:8080"
	}
	return client.NewClient(uri)
}
