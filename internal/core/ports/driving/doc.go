// Package driving defines what the CLI, HTTP API, MCP server and file
// watcher may ask of the core: ingest papers, answer questions and
// inspect the collection. internal/core/services implements them.
package driving
