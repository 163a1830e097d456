// Package prompt assembles the multi-turn message sequence sent to the
// generation model. Assembly is a pure function of its inputs: every call
// builds fresh messages so callers may mutate the result without affecting
// later calls.
package prompt

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/textlens/textlens/internal/store"
)

// renderTuples renders retrieved neighbors into a single context line.
// A neighbor with a retained response contributes its full annotation tuple,
// without one it contributes title and description only. Tuples are joined
// by a single space.
func renderTuples(neighbors []store.Neighbor) string {
	if len(neighbors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if len(n.Response) > 0 {
			parts = append(parts, fmt.Sprintf("<title>: %s;<description>:%s;<category>:%s;<result>:%s",
				n.Title, n.Description, n.Category, string(n.Response)))
		} else {
			parts = append(parts, fmt.Sprintf("%s;%s", n.Title, n.Description))
		}
	}
	return strings.Join(parts, " ")
}

// Assemble builds the message sequence for one classification call:
// system instruction, the fixed exemplar exchange, any per-request few-shot
// examples, then the synthesized final turn carrying retrieved context, the
// category, and the item text.
func Assemble(category, text string, retrieved []store.Neighbor, extra []store.FewShotExample) []*ai.Message {
	msgs := make([]*ai.Message, 0, 3+2*len(extra)+1)
	msgs = append(msgs,
		ai.NewSystemMessage(ai.NewTextPart(systemInstruction)),
		ai.NewUserMessage(ai.NewTextPart(exemplarInput)),
		ai.NewModelMessage(ai.NewTextPart(exemplarOutput)),
	)
	for _, ex := range extra {
		msgs = append(msgs,
			ai.NewUserMessage(ai.NewTextPart(ex.Input)),
			ai.NewModelMessage(ai.NewTextPart(ex.Output)),
		)
	}
	turn := fmt.Sprintf(turnTemplate, renderTuples(retrieved), category, text)
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(turn)))
	return msgs
}
