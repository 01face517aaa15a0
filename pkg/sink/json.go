package sink

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/cartolabel/pkg/label"
)

// Document is the result of one placement run.
type Document struct {
	RunID   string         `json:"run_id,omitempty"`
	Labels  []label.Placed `json:"labels"`
	Skipped []label.Skip   `json:"skipped,omitempty"`
	Stats   label.Stats    `json:"stats"`
}

// RenderJSON encodes the document as indented JSON. Labels keep their
// input order.
func RenderJSON(doc *Document) ([]byte, error) {
	out := *doc
	if out.Labels == nil {
		out.Labels = []label.Placed{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// ReadJSON decodes a document written by RenderJSON.
func ReadJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if doc.Stats.Skipped == nil {
		doc.Stats.Skipped = map[label.SkipReason]int{}
	}
	return &doc, nil
}
