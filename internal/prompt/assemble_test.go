package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/textlens/textlens/internal/store"
)

func messageText(m *ai.Message) string {
	var sb strings.Builder
	for _, p := range m.Content {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func TestRenderTuples(t *testing.T) {
	tests := []struct {
		name      string
		neighbors []store.Neighbor
		want      string
	}{
		{
			name:      "empty",
			neighbors: nil,
			want:      "",
		},
		{
			name: "without response",
			neighbors: []store.Neighbor{
				{Title: "rain ahead", Description: "storms expected"},
			},
			want: "rain ahead;storms expected",
		},
		{
			name: "with response",
			neighbors: []store.Neighbor{
				{
					Title:       "rain ahead",
					Description: "storms expected",
					Category:    "severity",
					Response:    json.RawMessage(`{"predicted_class":"high"}`),
				},
			},
			want: `<title>: rain ahead;<description>:storms expected;<category>:severity;<result>:{"predicted_class":"high"}`,
		},
		{
			name: "mixed joined by space",
			neighbors: []store.Neighbor{
				{Title: "a", Description: "b"},
				{
					Title:       "c",
					Description: "d",
					Category:    "severity",
					Response:    json.RawMessage(`{}`),
				},
			},
			want: "a;b <title>: c;<description>:d;<category>:severity;<result>:{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderTuples(tt.neighbors)
			if got != tt.want {
				t.Errorf("renderTuples() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssembleStructure(t *testing.T) {
	extra := []store.FewShotExample{
		{Input: "Category: severity\nText: minor drizzle", Output: `{"predicted_class":"low"}`},
	}
	neighbors := []store.Neighbor{{Title: "flood warning", Description: "rivers rising"}}

	msgs := Assemble("severity", "heavy winds tonight", neighbors, extra)

	if len(msgs) != 6 {
		t.Fatalf("Assemble() returned %d messages, want 6", len(msgs))
	}
	if msgs[0].Role != ai.RoleSystem {
		t.Errorf("first message role = %v, want system", msgs[0].Role)
	}
	wantRoles := []ai.Role{ai.RoleSystem, ai.RoleUser, ai.RoleModel, ai.RoleUser, ai.RoleModel, ai.RoleUser}
	for i, r := range wantRoles {
		if msgs[i].Role != r {
			t.Errorf("message %d role = %v, want %v", i, msgs[i].Role, r)
		}
	}

	final := messageText(msgs[5])
	want := "Context: flood warning;rivers rising\nCategory: severity\nText: heavy winds tonight"
	if final != want {
		t.Errorf("final turn = %q, want %q", final, want)
	}

	if got := messageText(msgs[3]); got != extra[0].Input {
		t.Errorf("extra example input = %q, want %q", got, extra[0].Input)
	}
	if got := messageText(msgs[4]); got != extra[0].Output {
		t.Errorf("extra example output = %q, want %q", got, extra[0].Output)
	}
}

func TestAssembleNoRetrieved(t *testing.T) {
	msgs := Assemble("positivity", "what a day", nil, nil)
	if len(msgs) != 4 {
		t.Fatalf("Assemble() returned %d messages, want 4", len(msgs))
	}
	final := messageText(msgs[3])
	if !strings.HasPrefix(final, "Context: \n") {
		t.Errorf("final turn should carry an empty context line, got %q", final)
	}
}

func TestAssembleFreshMessages(t *testing.T) {
	neighbors := []store.Neighbor{{Title: "t", Description: "d"}}

	first := Assemble("severity", "text", neighbors, nil)
	second := Assemble("severity", "text", neighbors, nil)

	for i := range first {
		if first[i] == second[i] {
			t.Errorf("message %d shared between calls", i)
		}
	}

	first[0].Content[0].Text = "mutated"
	third := Assemble("severity", "text", neighbors, nil)
	if messageText(third[0]) == "mutated" {
		t.Error("mutation of a returned message leaked into a later call")
	}
}

func TestExemplarOutputIsValidJSON(t *testing.T) {
	var parsed struct {
		PredictedClass       string              `json:"predicted_class"`
		ClassToWords         map[string][]string `json:"class_to_words"`
		ClassToProbabilities map[string]float64  `json:"class_to_probabilities"`
	}
	if err := json.Unmarshal([]byte(exemplarOutput), &parsed); err != nil {
		t.Fatalf("exemplar output is not valid JSON: %v", err)
	}
	for _, level := range Levels {
		if _, ok := parsed.ClassToWords[level]; !ok {
			t.Errorf("exemplar class_to_words missing level %q", level)
		}
		if _, ok := parsed.ClassToProbabilities[level]; !ok {
			t.Errorf("exemplar class_to_probabilities missing level %q", level)
		}
	}
}
