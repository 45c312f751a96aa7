package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DreamCats/vecserve/internal/service"
)

// Server exposes embed / ingest / query as MCP tools over stdio.
type Server struct {
	svc     *service.Service
	version string
}

// New creates a new MCP server wrapper.
func New(svc *service.Service, version string) *Server {
	return &Server{svc: svc, version: version}
}

// Run starts the MCP stdio server.
func (s *Server) Run(ctx context.Context) error {
	return s.build().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) build() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "vecserve",
		Title:   "Vecserve",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vec_embed",
		Description: "Encode text into a 384-dimensional embedding vector.",
	}, s.embedTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "vec_ingest",
		Description: `Store a text in a collection for later similarity search.

The collection is created on first use (384 dimensions, cosine distance).
Every call stores a new point; identical texts are not deduplicated.`,
	}, s.ingestTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "vec_query",
		Description: `Return the stored texts most similar to the query text, most similar first.

Querying a collection that was never created is an error.`,
	}, s.queryTool)

	return server
}

func (s *Server) embedTool(ctx context.Context, _ *mcp.CallToolRequest, input EmbedInput) (*mcp.CallToolResult, EmbedOutput, error) {
	if err := s.svc.Authorize(input.Token); err != nil {
		return nil, EmbedOutput{}, err
	}
	vector, err := s.svc.Embed(ctx, input.Text)
	if err != nil {
		return nil, EmbedOutput{}, err
	}
	return nil, EmbedOutput{Dimensions: len(vector), Vector: vector}, nil
}

func (s *Server) ingestTool(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if err := s.svc.Authorize(input.Token); err != nil {
		return nil, IngestOutput{}, err
	}
	res, err := s.svc.Ingest(ctx, input.Text, input.Collection)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{Status: res.Status, Collection: res.Collection, ID: res.ID}, nil
}

func (s *Server) queryTool(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	if err := s.svc.Authorize(input.Token); err != nil {
		return nil, QueryOutput{}, err
	}
	texts, err := s.svc.Query(ctx, input.Text, input.Collection, input.Limit)
	if err != nil {
		return nil, QueryOutput{}, err
	}
	return nil, QueryOutput{Count: len(texts), Results: texts}, nil
}
