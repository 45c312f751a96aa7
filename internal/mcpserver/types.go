package mcpserver

// EmbedInput defines inputs for the vec_embed MCP tool.
type EmbedInput struct {
	Text  string `json:"text" jsonschema:"text to embed"`
	Token string `json:"token,omitempty" jsonschema:"service token, required when the server is configured with one"`
}

// EmbedOutput is the output for vec_embed.
type EmbedOutput struct {
	Dimensions int       `json:"dimensions"`
	Vector     []float32 `json:"vector"`
}

// IngestInput defines inputs for the vec_ingest MCP tool.
type IngestInput struct {
	Text       string `json:"text" jsonschema:"text to store"`
	Collection string `json:"collection,omitempty" jsonschema:"target collection (optional, defaults to the configured collection)"`
	Token      string `json:"token,omitempty" jsonschema:"service token, required when the server is configured with one"`
}

// IngestOutput is the output for vec_ingest.
type IngestOutput struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// QueryInput defines inputs for the vec_query MCP tool.
type QueryInput struct {
	Text       string `json:"text" jsonschema:"query text"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to search (optional)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"number of results to return (default 3)"`
	Token      string `json:"token,omitempty" jsonschema:"service token, required when the server is configured with one"`
}

// QueryOutput is the output for vec_query.
type QueryOutput struct {
	Count   int      `json:"count"`
	Results []string `json:"results"`
}
