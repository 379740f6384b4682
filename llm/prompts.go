package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const selectionSystemPrompt = `You are a precise academic translation assistant embedded in a paper reader.
You translate user-selected fragments of research papers for readers whose
working language differs from the paper's language. Always answer with a
single JSON object matching the requested shape exactly: no markdown, no
commentary, no extra keys. Keep translations faithful to the academic
register of the source. When the surrounding context changes the meaning of
the selection, prefer the in-context reading.`

const wordUserPrompt = `Translate the selected %s from a research paper.

Paper title: %s
Context before the selection: %s
Selected text: %s
Context after the selection: %s
Target language: %s

Return a JSON object with these keys:
- "ipa_us", "ipa_uk": IPA transcriptions (null if not a single word)
- "pos": part of speech in the selection's context (null if unclear)
- "primary_translation_cn": the most common translation
- "context_translation_cn": the translation that fits this exact context
- "meaning_explainer_cn": one short paragraph explaining the meaning here
- "usage_notes_cn": array of short usage notes (may be empty)
- "collocations": array of common English collocations (may be empty)
- "example_context_en"/"example_context_cn": an example sentence echoing
  this paper's usage, with its translation (null if not helpful)
- "example_general_en"/"example_general_cn": a general example sentence
  with its translation (null if not helpful)`

const sentenceUserPrompt = `Translate the selected sentence(s) from a research paper.

Paper title: %s
Context before the selection: %s
Selected text: %s
Context after the selection: %s
Target language: %s

Return a JSON object with these keys:
- "concise_translation_cn": a fluent translation of the selection
- "literal_translation_cn": a more literal rendering when it differs
  meaningfully, else null
- "key_terms": array of {"en": ..., "cn": ...} pairs for the technical
  terms in the selection (may be empty)
- "one_line_explain_cn": one sentence explaining what the selection
  claims or does, else null`

const formulaUserPrompt = `Explain and translate the selected mathematical expression from a research paper.

Paper title: %s
Context before the selection: %s
Selected text: %s
Context after the selection: %s
Target language: %s

Return a JSON object with these keys:
- "concise_translation_cn": how a native reader would say this expression
- "formula_explain_cn": a short paragraph explaining what the expression
  means in this paper's context
- "symbols_notes_cn": array of per-symbol notes ("x: ...") for the
  symbols appearing in the expression (may be empty)
- "one_line_takeaway_cn": one sentence stating why the expression
  matters here, else null`

// buildPrompt renders the user prompt for the detected mode. Word and term
// selections share the vocabulary-card prompt.
func buildPrompt(mode Mode, selectedText, targetLanguage, paperTitle, contextBefore, contextAfter string) string {
	switch mode {
	case ModeWord, ModeTerm:
		return fmt.Sprintf(wordUserPrompt, mode, paperTitle, contextBefore, selectedText, contextAfter, targetLanguage)
	case ModeFormula:
		return fmt.Sprintf(formulaUserPrompt, paperTitle, contextBefore, selectedText, contextAfter, targetLanguage)
	default:
		return fmt.Sprintf(sentenceUserPrompt, paperTitle, contextBefore, selectedText, contextAfter, targetLanguage)
	}
}

// KeyTerm is a source/target term pair inside a sentence translation.
type KeyTerm struct {
	EN string `json:"en"`
	CN string `json:"cn"`
}

// WordOutput is the structured result for word and term selections.
type WordOutput struct {
	IPAUS                *string  `json:"ipa_us"`
	IPAUK                *string  `json:"ipa_uk"`
	POS                  *string  `json:"pos"`
	PrimaryTranslationCN string   `json:"primary_translation_cn"`
	ContextTranslationCN string   `json:"context_translation_cn"`
	MeaningExplainerCN   string   `json:"meaning_explainer_cn"`
	UsageNotesCN         []string `json:"usage_notes_cn"`
	Collocations         []string `json:"collocations"`
	ExampleContextEN     *string  `json:"example_context_en"`
	ExampleContextCN     *string  `json:"example_context_cn"`
	ExampleGeneralEN     *string  `json:"example_general_en"`
	ExampleGeneralCN     *string  `json:"example_general_cn"`
}

// SentenceOutput is the structured result for sentence selections.
type SentenceOutput struct {
	ConciseTranslationCN string    `json:"concise_translation_cn"`
	LiteralTranslationCN *string   `json:"literal_translation_cn"`
	KeyTerms             []KeyTerm `json:"key_terms"`
	OneLineExplainCN     *string   `json:"one_line_explain_cn"`
}

// FormulaOutput is the structured result for formula selections.
type FormulaOutput struct {
	ConciseTranslationCN string   `json:"concise_translation_cn"`
	FormulaExplainCN     string   `json:"formula_explain_cn"`
	SymbolsNotesCN       []string `json:"symbols_notes_cn"`
	OneLineTakeawayCN    *string  `json:"one_line_takeaway_cn"`
}

// validateOutput checks the mode-specific required fields of the model's
// JSON. A validation failure counts as a retryable bad generation.
func validateOutput(mode Mode, raw []byte) error {
	missing := func(fields ...string) error {
		return fmt.Errorf("model output missing required field %s", strings.Join(fields, ", "))
	}
	switch mode {
	case ModeWord, ModeTerm:
		var out WordOutput
		if err := unmarshalStrictEnough(raw, &out); err != nil {
			return err
		}
		if out.PrimaryTranslationCN == "" || out.ContextTranslationCN == "" || out.MeaningExplainerCN == "" {
			return missing("primary_translation_cn", "context_translation_cn", "meaning_explainer_cn")
		}
	case ModeFormula:
		var out FormulaOutput
		if err := unmarshalStrictEnough(raw, &out); err != nil {
			return err
		}
		if out.ConciseTranslationCN == "" || out.FormulaExplainCN == "" {
			return missing("concise_translation_cn", "formula_explain_cn")
		}
	default:
		var out SentenceOutput
		if err := unmarshalStrictEnough(raw, &out); err != nil {
			return err
		}
		if out.ConciseTranslationCN == "" {
			return missing("concise_translation_cn")
		}
	}
	return nil
}

func unmarshalStrictEnough(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("model output shape: %w", err)
	}
	return nil
}
