package planner

import (
	"context"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"steps":[]}`:                          `{"steps":[]}`,
		"```json\n{\"steps\":[]}\n```":          `{"steps":[]}`,
		"Sure! {\"steps\":[]} Hope that helps.": `{"steps":[]}`,
		`[{"tool":"weather"}]`:                  `{"steps":[{"tool":"weather"}]}`,
	}
	for in, want := range cases {
		got, err := extractJSON(in)
		if err != nil {
			t.Fatalf("extractJSON(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := extractJSON("no braces here"); err == nil {
		t.Fatalf("expected error for reply without JSON")
	}
}

func TestParsePlanRejectsStepWithoutTool(t *testing.T) {
	t.Parallel()

	if _, err := parsePlan(context.Background(), `{"steps":[{"args":{}}]}`); err == nil {
		t.Fatalf("expected error for step without tool")
	}
	if _, err := parsePlan(context.Background(), `{"plan":[]}`); err == nil {
		t.Fatalf("expected error for reply without steps")
	}
}

func TestNormalizeJSON(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{`{"steps":[{"tool":"weather",},],}`, `{"steps":[{"tool":"weather"}]}`},
		{`{'steps':[{'tool':'weather','args':{'city':'Rome'}}]}`, `{"steps":[{"tool":"weather","args":{"city":"Rome"}}]}`},
		{`{steps: [{tool: "weather"}]}`, `{"steps": [{"tool": "weather"}]}`},
		{"{\"steps\":[] // none needed\n}", "{\"steps\":[] \n}"},
		{`{"steps":[/* first */{"tool":"a"}]}`, `{"steps":[{"tool":"a"}]}`},
		{`{'steps':[{'description':'it\'s "hot"'}]}`, `{"steps":[{"description":"it's \"hot\""}]}`},
		{`{"steps":[{"description":"keep, } 'this' // too"}]}`, `{"steps":[{"description":"keep, } 'this' // too"}]}`},
	}
	for _, tc := range cases {
		if got := normalizeJSON(tc.in); got != tc.want {
			t.Fatalf("normalizeJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePlanNormalizesSloppyJSON(t *testing.T) {
	t.Parallel()

	steps, err := parsePlan(context.Background(), "```json\n{'steps': [{'tool': 'weather', 'args': {'city': 'Rome'},},]}\n```")
	if err != nil {
		t.Fatalf("parsePlan() error = %v", err)
	}
	if len(steps) != 1 || steps[0].Tool != "weather" || steps[0].Args["city"].Value != "Rome" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}
