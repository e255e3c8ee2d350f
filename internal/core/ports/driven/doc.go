// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceScanner: Enumerates and reads files under an ingest root
//   - Normaliser: Transforms raw file bytes into text
//   - NormaliserRegistry: Selects the normaliser for a file extension
//   - CorpusStore: Corpus directories, artifacts and staging
//   - ChunkStore: Chunk text and vector persistence
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Chat completion, streaming and non-streaming
//   - ConfigStore: Typed application configuration
//   - MessageLog: Per-corpus chat history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Reranker: Cross-encoder scoring. Without it, re-ranking is disabled.
//   - OCRService: Text recognition for scanned PDFs.
//   - ResourceSampler: System load. Without it, the scheduler stays Normal.
//   - SourceWatcher: Filesystem change notification for watch mode.
//   - PromptStore: Editable prompt templates. Defaults are built in.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
