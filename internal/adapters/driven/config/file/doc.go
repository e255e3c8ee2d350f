// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: JSON or TOML configuration storage with strict decoding
//   - PromptStore: user-editable prompt templates with embedded defaults
package file
