// Package server hosts the agent's loopback HTTP API. It builds the Fiber
// application with its middleware chain (panic recovery, request IDs,
// access logging) and keeps the table of leases handed out to API clients.
// Route groups live in the routes subpackage and take their dependencies
// explicitly, so keep the exports here narrow.
package server
