// Package client is an HTTP client for the swarmroll API. It signs deploy
// webhooks with the shared secret and manages the service registry.
package client
