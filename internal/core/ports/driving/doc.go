// Package driving defines what the command line, the terminal UI and the
// MCP server may ask of ragpro: build a corpus, chat with it, manage
// corpora and settings, watch a source directory and report resource load.
//
// internal/core/services implements every interface here.
package driving
