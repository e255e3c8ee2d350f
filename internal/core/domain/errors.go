package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file extension no normaliser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Corpus Errors.

	// ErrSourceMissing indicates the ingest path does not exist.
	ErrSourceMissing = errors.New("source path missing")

	// ErrMissingCorpus indicates the named corpus does not exist.
	ErrMissingCorpus = errors.New("corpus not found")

	// ErrCorruptCorpus indicates the corpus artifacts cannot be loaded.
	ErrCorruptCorpus = errors.New("corpus is corrupt")

	// ErrDimensionMismatch indicates the embedder output dimension differs
	// from the corpus descriptor.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCorpusBusy indicates another build or maintenance operation holds
	// the corpus write lock.
	ErrCorpusBusy = errors.New("corpus busy")

	// ErrConfirmationRequired indicates a NEW build would overwrite an
	// existing corpus without explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrNoReadableFiles indicates a scan yielded zero eligible files.
	// Builds treat it as a warning, never a failure.
	ErrNoReadableFiles = errors.New("no readable files")

	// Runtime Errors.

	// ErrResourcePressure indicates the scheduler refused admission.
	ErrResourcePressure = errors.New("resource pressure")

	// ErrProviderTimeout indicates a model provider did not answer in time.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderFailure indicates a model provider returned an error.
	ErrProviderFailure = errors.New("provider failure")

	// ErrCancelled indicates the caller cancelled the operation.
	ErrCancelled = errors.New("cancelled")
)

// DimensionMismatchError describes an incompatible embedder for a corpus.
// It unwraps to ErrDimensionMismatch.
type DimensionMismatchError struct {
	Corpus        string
	CorpusModel   string
	CorpusDim     int
	EmbedderModel string
	EmbedderDim   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: corpus %q has vector_dim=%d (%s), embedder %s produces %d",
		ErrDimensionMismatch, e.Corpus, e.CorpusDim, e.CorpusModel, e.EmbedderModel, e.EmbedderDim)
}

// Unwrap allows errors.Is(err, ErrDimensionMismatch).
func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// Kind returns a short machine-readable name for an error class.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceMissing):
		return "SourceMissing"
	case errors.Is(err, ErrDimensionMismatch):
		return "DimensionMismatch"
	case errors.Is(err, ErrCorruptCorpus):
		return "CorruptCorpus"
	case errors.Is(err, ErrMissingCorpus):
		return "MissingCorpus"
	case errors.Is(err, ErrResourcePressure):
		return "ResourcePressure"
	case errors.Is(err, ErrProviderTimeout):
		return "ProviderTimeout"
	case errors.Is(err, ErrProviderFailure):
		return "ProviderFailure"
	case errors.Is(err, ErrNoReadableFiles):
		return "NoReadableFiles"
	case errors.Is(err, ErrCorpusBusy):
		return "CorpusBusy"
	case errors.Is(err, ErrConfirmationRequired):
		return "ConfirmationRequired"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	default:
		return "Internal"
	}
}

// Remedy returns a concrete next action for the user, or "" when none applies.
func Remedy(err error) string {
	var dm *DimensionMismatchError
	if errors.As(err, &dm) {
		return fmt.Sprintf("Rebuild index, or switch to an embedding model with vector_dim=%d", dm.CorpusDim)
	}
	switch {
	case errors.Is(err, ErrDimensionMismatch):
		return "Rebuild index"
	case errors.Is(err, ErrCorruptCorpus):
		return "Rebuild index with a NEW build"
	case errors.Is(err, ErrMissingCorpus):
		return "Run 'ragpro corpus list' to see available corpora"
	case errors.Is(err, ErrSourceMissing):
		return "Check the source path exists"
	case errors.Is(err, ErrResourcePressure):
		return "Retry when system load drops"
	case errors.Is(err, ErrProviderTimeout):
		return "Check the model provider is running or raise llm_timeout_seconds"
	case errors.Is(err, ErrProviderFailure):
		return "Check provider settings with 'ragpro settings show'"
	case errors.Is(err, ErrCorpusBusy):
		return "Wait for the running build to finish"
	case errors.Is(err, ErrConfirmationRequired):
		return "Re-run with --yes to overwrite the existing corpus"
	default:
		return ""
	}
}
