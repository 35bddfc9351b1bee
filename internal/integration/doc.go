// Package integration holds end-to-end tests that drive docidx through its
// outer surfaces: the MCP protocol, the directory watcher and bulk import.
package integration
