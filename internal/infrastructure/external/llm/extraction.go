package llm

import (
	"encoding/json"
	"strings"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// ExtractionPromptData is the template input of the extraction prompt
type ExtractionPromptData struct {
	Text           string
	Categories     string
	PaymentMethods string
}

// NewExtractionPromptData fills the choice lists from the entity constants
func NewExtractionPromptData(text string) ExtractionPromptData {
	return ExtractionPromptData{
		Text:           strings.TrimSpace(text),
		Categories:     strings.Join(entity.Categories, ", "),
		PaymentMethods: strings.Join(entity.PaymentMethods, ", "),
	}
}

type extractionReply struct {
	RawText string          `json:"raw_text"`
	Bill    json.RawMessage `json:"bill"`
}

// DecodeExtraction parses an extraction reply. A reply without a "bill" key
// is read as the bill itself. Embedded document text is used as raw text
// when the model returns none.
func DecodeExtraction(content, embeddedText string) (*port.Extraction, error) {
	var reply extractionReply
	if err := Decode(content, &reply); err != nil {
		return nil, err
	}

	body := reply.Bill
	if len(body) == 0 || string(body) == "null" {
		obj := ExtractJSON(content)
		if obj == "" {
			obj = "{}"
		}
		body = json.RawMessage(obj)
	}

	var draft entity.Draft
	if err := json.Unmarshal(body, &draft); err != nil {
		return nil, err
	}
	if draft.ExtraData != nil {
		delete(draft.ExtraData, "bill")
		delete(draft.ExtraData, "raw_text")
		if len(draft.ExtraData) == 0 {
			draft.ExtraData = nil
		}
	}

	raw := strings.TrimSpace(reply.RawText)
	if raw == "" {
		raw = strings.TrimSpace(embeddedText)
	}
	return &port.Extraction{Draft: draft, RawText: raw}, nil
}
