package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for ragpro resources.
	uriScheme = "ragpro://"

	manifestSuffix = "/manifest"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "corpora",
		Name:        "corpora",
		Description: "Statistics of every corpus",
		MIMEType:    "application/json",
	}, s.handleCorporaResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "corpora/{name}" + manifestSuffix,
		Name:        "corpus-manifest",
		Description: "File registry of a corpus",
		MIMEType:    "application/json",
	}, s.handleManifestResource)
}

// handleCorporaResource returns statistics of every corpus.
func (s *Server) handleCorporaResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	list, err := s.ports.Corpus.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	if len(list) == 0 {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling corpora: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleManifestResource returns the manifest of one corpus.
func (s *Server) handleManifestResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	name := extractCorpusName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	manifest, err := s.ports.Corpus.Manifest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reading manifest of %s: %w", name, err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling manifest: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractCorpusName extracts the corpus name from ragpro://corpora/{name}/manifest.
func extractCorpusName(uri string) string {
	const prefix = uriScheme + "corpora/"

	if len(uri) <= len(prefix)+len(manifestSuffix) ||
		!strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, manifestSuffix) {
		return ""
	}
	name := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), manifestSuffix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
