package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	Corpus     string `json:"corpus" jsonschema:"name of the corpus to answer from"`
	Message    string `json:"message" jsonschema:"the question to ask"`
	QuotedText string `json:"quoted_text,omitempty" jsonschema:"optional passage the question refers to"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Answer  string           `json:"answer"`
	Sources []domain.Source  `json:"sources"`
	Stats   domain.ChatStats `json:"stats"`
}

// CorpusInput names a corpus.
type CorpusInput struct {
	Corpus string `json:"corpus" jsonschema:"name of the corpus"`
}

// ListCorporaInput is the (empty) input schema for list_corpora.
type ListCorporaInput struct{}

// CorpusOutput describes one corpus. Times are RFC 3339 strings.
type CorpusOutput struct {
	Name             string `json:"name"`
	FileCount        int    `json:"file_count"`
	ChunkCount       int    `json:"chunk_count"`
	BytesOnDisk      int64  `json:"bytes_on_disk"`
	CreatedAt        string `json:"created_at"`
	ModifiedAt       string `json:"modified_at"`
	EmbeddingModelID string `json:"embedding_model_id"`
	VectorDim        int    `json:"vector_dim"`
}

func corpusOutput(st domain.CorpusStats) CorpusOutput {
	return CorpusOutput{
		Name:             st.Name,
		FileCount:        st.FileCount,
		ChunkCount:       st.ChunkCount,
		BytesOnDisk:      st.BytesOnDisk,
		CreatedAt:        st.CreatedAt.Format(time.RFC3339),
		ModifiedAt:       st.ModifiedAt.Format(time.RFC3339),
		EmbeddingModelID: st.EmbeddingModelID,
		VectorDim:        st.VectorDim,
	}
}

// ListCorporaOutput is the output schema for list_corpora.
type ListCorporaOutput struct {
	Corpora []CorpusOutput `json:"corpora"`
	Count   int            `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Answer a question from the documents of a corpus, citing sources",
	}, s.handleChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_corpora",
		Description: "List the available corpora, most recently modified first",
	}, s.handleListCorpora)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "corpus_stats",
		Description: "Describe one corpus: file and chunk counts, size, embedding model",
	}, s.handleCorpusStats)
}

// handleChat runs one chat turn and collects the streamed answer.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	events, err := s.ports.Chat.Chat(ctx, input.Corpus, domain.ChatRequest{
		Message:    input.Message,
		QuotedText: input.QuotedText,
	})
	if err != nil {
		return nil, ChatOutput{}, toolError(err)
	}

	var res *domain.ChatResult
	for ev := range events {
		if ev.Type == domain.ChatEventDone {
			res = ev.Result
		}
	}
	if res == nil {
		return nil, ChatOutput{}, errors.New("chat stream ended without a result")
	}
	if res.Err != nil {
		return nil, ChatOutput{}, toolError(res.Err)
	}

	out := ChatOutput{Answer: res.FullText, Sources: res.Sources, Stats: res.Stats}
	if out.Sources == nil {
		out.Sources = []domain.Source{}
	}
	return nil, out, nil
}

// handleListCorpora lists every corpus.
func (s *Server) handleListCorpora(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListCorporaInput,
) (*mcp.CallToolResult, ListCorporaOutput, error) {
	list, err := s.ports.Corpus.List(ctx)
	if err != nil {
		return nil, ListCorporaOutput{}, toolError(err)
	}
	out := ListCorporaOutput{Corpora: make([]CorpusOutput, len(list)), Count: len(list)}
	for i, st := range list {
		out.Corpora[i] = corpusOutput(st)
	}
	return nil, out, nil
}

// handleCorpusStats describes one corpus.
func (s *Server) handleCorpusStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CorpusInput,
) (*mcp.CallToolResult, CorpusOutput, error) {
	stats, err := s.ports.Corpus.Stats(ctx, input.Corpus)
	if err != nil {
		return nil, CorpusOutput{}, toolError(err)
	}
	return nil, corpusOutput(*stats), nil
}

// toolError adds the error kind and remedy so the client can act on it.
func toolError(err error) error {
	if remedy := domain.Remedy(err); remedy != "" {
		return fmt.Errorf("%s: %w (%s)", domain.Kind(err), err, remedy)
	}
	return fmt.Errorf("%s: %w", domain.Kind(err), err)
}
