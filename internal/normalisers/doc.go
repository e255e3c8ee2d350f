// Package normalisers turns raw file bytes into plain text documents.
//
// Each sub-package handles one family of formats. The Registry in this
// package dispatches a file to the highest priority normaliser registered
// for its extension, falling back to its MIME type.
package normalisers
