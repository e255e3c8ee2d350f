// Package connectors provides access to ingest sources. The filesystem
// connector walks local directories in a deterministic order, reads file
// bytes for the document reader and watches roots for changes.
package connectors
