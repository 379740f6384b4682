package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Zemacs/openpaper/auth"
	"github.com/Zemacs/openpaper/llm"
)

type selectionRequest struct {
	DocumentID        string `json:"document_id"`
	SelectedText      string `json:"selected_text"`
	PageNumber        *int   `json:"page_number,omitempty"`
	SelectionTypeHint string `json:"selection_type_hint"`
	ContextBefore     string `json:"context_before"`
	ContextAfter      string `json:"context_after"`
	TargetLanguage    string `json:"target_language"`
}

func (s *Server) handleTranslateSelection(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req selectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	selected := strings.Join(strings.Fields(req.SelectedText), " ")
	if selected == "" {
		writeError(w, http.StatusBadRequest, "selected_text is required")
		return
	}
	if runes := []rune(selected); len(runes) > maxSelectedChars {
		selected = string(runes[:maxSelectedChars])
	}

	hint := llm.ModeAuto
	if req.SelectionTypeHint != "" {
		if !llm.ValidHint(req.SelectionTypeHint) {
			writeError(w, http.StatusBadRequest, "invalid selection_type_hint")
			return
		}
		hint = llm.Mode(req.SelectionTypeHint)
	}

	lang := req.TargetLanguage
	if lang == "" {
		lang = "zh-CN"
	}

	if s.cfg.DailyQuotaChars > 0 {
		used, err := s.store.UsageCharsSince(r.Context(), claims.UserID, time.Now().Add(-24*time.Hour))
		if err != nil {
			s.logger.Error("quota check", "error", err)
		} else if used >= s.cfg.DailyQuotaChars {
			writeError(w, http.StatusTooManyRequests, "daily quota exhausted")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TranslateTimeout)
	defer cancel()

	res, err := s.ops.TranslateSelection(ctx, llm.SelectionParams{
		UserID:         claims.UserID,
		DocumentID:     req.DocumentID,
		SelectedText:   selected,
		PageNumber:     req.PageNumber,
		TypeHint:       hint,
		ContextBefore:  clampTail(req.ContextBefore, maxContextChars),
		ContextAfter:   clampHead(req.ContextAfter, maxContextChars),
		TargetLanguage: lang,
	})
	if err != nil {
		s.writeTranslateError(w, ctx, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeTranslateError maps translation failures to status codes the client
// can classify: 4xx are permanent, 503 invites a retry.
func (s *Server) writeTranslateError(w http.ResponseWriter, ctx context.Context, err error) {
	var input llm.InputError
	switch {
	case errors.As(err, &input):
		writeError(w, http.StatusBadRequest, input.Msg)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error":    "translation timed out",
			"category": "timeout",
		})
	case llm.Transient(err):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":    llm.ClientMessage(err),
			"category": llm.Category(err),
		})
	default:
		s.logger.Error("translate selection", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":    llm.ClientMessage(err),
			"category": llm.Category(err),
		})
	}
}

// clampTail keeps the end of s, the part adjacent to the selection.
func clampTail(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[len(r)-max:])
}

// clampHead keeps the beginning of s, the part adjacent to the selection.
func clampHead(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
