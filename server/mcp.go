package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Zemacs/openpaper/docstore"
	"github.com/Zemacs/openpaper/llm"
)

// RegisterMCP registers the reader operations as MCP tools. MCP has no
// session, so every tool takes an explicit user_id.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerTranslateSelection(srv)
	s.registerImportDocument(srv)
	s.registerGetDocument(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func addTool[T any](srv *mcp.Server, tool *mcp.Tool, handle func(ctx context.Context, p *T) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p T
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		resp, err := handle(ctx, &p)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (s *Server) registerTranslateSelection(srv *mcp.Server) {
	type req struct {
		UserID         string `json:"user_id"`
		DocumentID     string `json:"document_id"`
		SelectedText   string `json:"selected_text"`
		PageNumber     *int   `json:"page_number"`
		TypeHint       string `json:"selection_type_hint"`
		ContextBefore  string `json:"context_before"`
		ContextAfter   string `json:"context_after"`
		TargetLanguage string `json:"target_language"`
	}

	tool := &mcp.Tool{
		Name:        "translate_selection",
		Description: "Translate a text selection from an imported document, with mode detection (word, term, sentence, formula) and document-grounded context",
		InputSchema: inputSchema(map[string]any{
			"user_id":             map[string]any{"type": "string", "description": "User ID"},
			"document_id":         map[string]any{"type": "string", "description": "Document ID"},
			"selected_text":       map[string]any{"type": "string", "description": "The selected text"},
			"page_number":         map[string]any{"type": "integer", "description": "1-based page number of the selection"},
			"selection_type_hint": map[string]any{"type": "string", "description": "auto, word, term, sentence or formula"},
			"context_before":      map[string]any{"type": "string", "description": "Text immediately before the selection"},
			"context_after":       map[string]any{"type": "string", "description": "Text immediately after the selection"},
			"target_language":     map[string]any{"type": "string", "description": "Target language, default zh-CN"},
		}, []string{"user_id", "document_id", "selected_text"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		hint := llm.ModeAuto
		if p.TypeHint != "" {
			if !llm.ValidHint(p.TypeHint) {
				return nil, fmt.Errorf("invalid selection_type_hint %q", p.TypeHint)
			}
			hint = llm.Mode(p.TypeHint)
		}
		lang := p.TargetLanguage
		if lang == "" {
			lang = "zh-CN"
		}
		return s.ops.TranslateSelection(ctx, llm.SelectionParams{
			UserID:         p.UserID,
			DocumentID:     p.DocumentID,
			SelectedText:   p.SelectedText,
			PageNumber:     p.PageNumber,
			TypeHint:       hint,
			ContextBefore:  clampTail(p.ContextBefore, maxContextChars),
			ContextAfter:   clampHead(p.ContextAfter, maxContextChars),
			TargetLanguage: lang,
		})
	})
}

func (s *Server) registerImportDocument(srv *mcp.Server) {
	type req struct {
		UserID string `json:"user_id"`
		URL    string `json:"url"`
	}

	tool := &mcp.Tool{
		Name:        "import_document",
		Description: "Import a document (PDF or web article) into the user's library from a URL",
		InputSchema: inputSchema(map[string]any{
			"user_id": map[string]any{"type": "string", "description": "User ID"},
			"url":     map[string]any{"type": "string", "description": "URL of the PDF or article"},
		}, []string{"user_id", "url"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		if s.fetcher == nil {
			return nil, fmt.Errorf("URL import is not enabled")
		}
		res, err := s.fetcher.Fetch(ctx, p.URL)
		if err != nil {
			return nil, err
		}
		ex, kind, err := extractFetched(res)
		if err != nil {
			return nil, err
		}
		doc := &docstore.Document{
			UserID:      p.UserID,
			Title:       ex.Title,
			SourceKind:  kind,
			SourceRef:   res.FinalURL,
			RawText:     ex.Text,
			Quality:     ex.Quality.Score(),
			PageOffsets: ex.PageOffsets,
		}
		if doc.Title == "" {
			doc.Title = "Untitled document"
		}
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return nil, err
		}
		return map[string]any{
			"id":          doc.ID,
			"title":       doc.Title,
			"source_kind": doc.SourceKind,
			"quality":     doc.Quality,
			"page_count":  len(doc.PageOffsets),
		}, nil
	})
}

func (s *Server) registerGetDocument(srv *mcp.Server) {
	type req struct {
		UserID     string `json:"user_id"`
		DocumentID string `json:"document_id"`
	}

	tool := &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch an imported document's metadata and extracted text",
		InputSchema: inputSchema(map[string]any{
			"user_id":     map[string]any{"type": "string", "description": "User ID"},
			"document_id": map[string]any{"type": "string", "description": "Document ID"},
		}, []string{"user_id", "document_id"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		doc, err := s.store.GetDocument(ctx, p.UserID, p.DocumentID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id":          doc.ID,
			"title":       doc.Title,
			"source_kind": doc.SourceKind,
			"source_ref":  doc.SourceRef,
			"quality":     doc.Quality,
			"page_count":  len(doc.PageOffsets),
			"raw_text":    doc.RawText,
		}, nil
	})
}
