package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
)

// --- mocks ---

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) {
	return m.vec, m.err
}

type mockSearcher struct {
	results []semantic.SearchResult
	topK    int
	err     error
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, topK int) ([]semantic.SearchResult, error) {
	m.topK = topK
	return m.results, m.err
}

type mockChat struct {
	system string
	user   string
	temp   float32
	reply  string
	err    error
}

func (m *mockChat) Complete(_ context.Context, system, user string, temp float32) (string, error) {
	m.system, m.user, m.temp = system, user, temp
	return m.reply, m.err
}

func newTestAgent(chat *mockChat, results []semantic.SearchResult) (*Agent, *mockSearcher) {
	searcher := &mockSearcher{results: results}
	return New(&mockEmbedder{vec: []float32{0.1}}, searcher, chat, Options{}, nil), searcher
}

const validCasesJSON = `[
  {
    "Test_ID": "TC-001",
    "Feature": "Login",
    "Test_Scenario": "Submit valid credentials",
    "Expected_Result": "User lands on the dashboard",
    "Grounded_In": "login.md"
  },
  {
    "Test_ID": "TC-002",
    "Feature": "Login",
    "Test_Scenario": "Submit wrong password",
    "Expected_Result": "Error message is shown",
    "Grounded_In": "login.md"
  }
]`

// --- tests ---

func TestGenerateTestCasesParsesModelOutput(t *testing.T) {
	chat := &mockChat{reply: validCasesJSON}
	agent, searcher := newTestAgent(chat, []semantic.SearchResult{
		{Content: "The login form posts to /session", Source: "docs/login.md"},
	})

	cases, err := agent.GenerateTestCases(context.Background(), "verify the login flow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d", len(cases))
	}
	if cases[0].TestID != "TC-001" || cases[1].ExpectedResult != "Error message is shown" {
		t.Fatalf("cases = %+v", cases)
	}
	if searcher.topK != DefaultTopK {
		t.Fatalf("topK = %d", searcher.topK)
	}
	if chat.temp != DefaultTemperature {
		t.Fatalf("temperature = %v", chat.temp)
	}
}

func TestGenerateTestCasesPromptContents(t *testing.T) {
	chat := &mockChat{reply: `[]`}
	agent, _ := newTestAgent(chat, []semantic.SearchResult{
		{Content: "The login button has id 'login-btn'", Source: "docs/ui/login.md"},
	})

	if _, err := agent.GenerateTestCases(context.Background(), "verify the login button"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(chat.system, "expert QA Test Engineer") {
		t.Fatalf("system prompt = %q", chat.system)
	}
	// Context entries are tagged with the source basename, not the full path.
	if !strings.Contains(chat.user, "--- Source: login.md ---") {
		t.Fatalf("user prompt missing source tag: %q", chat.user)
	}
	if !strings.Contains(chat.user, "login-btn") || !strings.Contains(chat.user, "verify the login button") {
		t.Fatalf("user prompt = %q", chat.user)
	}
}

func TestGenerateTestCasesStripsFences(t *testing.T) {
	chat := &mockChat{reply: "```json\n" + validCasesJSON + "\n```"}
	agent, _ := newTestAgent(chat, nil)

	cases, err := agent.GenerateTestCases(context.Background(), "verify login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d", len(cases))
	}
}

func TestGenerateTestCasesEmptyRequirement(t *testing.T) {
	agent, _ := newTestAgent(&mockChat{}, nil)
	if _, err := agent.GenerateTestCases(context.Background(), "  "); !errors.Is(err, domain.ErrEmptyRequirement) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTestCasesModelError(t *testing.T) {
	agent, _ := newTestAgent(&mockChat{err: errors.New("rate limited")}, nil)
	_, err := agent.GenerateTestCases(context.Background(), "verify login")
	if err == nil || !strings.Contains(err.Error(), "generate test cases") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTestCasesMissingKeysError(t *testing.T) {
	// A case lacking any of the five required keys fails the whole call;
	// incomplete cases must never come back alongside err == nil.
	chat := &mockChat{reply: `[{"Test_ID":"TC-001"}]`}
	agent, _ := newTestAgent(chat, nil)

	cases, err := agent.GenerateTestCases(context.Background(), "verify login")
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("err = %v", err)
	}
	if cases != nil {
		t.Fatalf("cases = %+v", cases)
	}
}

func TestGenerateTestCasesMalformedJSON(t *testing.T) {
	agent, _ := newTestAgent(&mockChat{reply: "I cannot produce JSON today."}, nil)
	_, err := agent.GenerateTestCases(context.Background(), "verify login")
	if err == nil || !strings.Contains(err.Error(), "parse test cases") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTestCasesSearchError(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("collection missing")}
	agent := New(&mockEmbedder{vec: []float32{0.1}}, searcher, &mockChat{}, Options{}, nil)
	_, err := agent.GenerateTestCases(context.Background(), "verify login")
	if err == nil || !strings.Contains(err.Error(), "retrieve context") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateScriptStripsFences(t *testing.T) {
	chat := &mockChat{reply: "```python\nfrom selenium import webdriver\nprint(\"SUCCESS\")\n```"}
	agent, _ := newTestAgent(chat, nil)

	tc := domain.TestCase{TestID: "TC-001", Feature: "Login", TestScenario: "valid login", ExpectedResult: "dashboard", GroundedIn: "login.md"}
	script, err := agent.GenerateScript(context.Background(), tc, "<html><body></body></html>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(script, "```") {
		t.Fatalf("fences survived: %q", script)
	}
	if !strings.HasPrefix(script, "from selenium import webdriver") {
		t.Fatalf("script = %q", script)
	}
}

func TestGenerateScriptPromptContents(t *testing.T) {
	chat := &mockChat{reply: "pass"}
	agent, _ := newTestAgent(chat, nil)

	tc := domain.TestCase{TestID: "TC-007", Feature: "Cart", TestScenario: "apply discount", ExpectedResult: "total drops", GroundedIn: "cart.md"}
	html := `<button id="apply-discount">Apply</button>`
	if _, err := agent.GenerateScript(context.Background(), tc, html); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(chat.system, html) {
		t.Fatal("system prompt missing page markup")
	}
	if !strings.Contains(chat.system, "Selenium Manager") || !strings.Contains(chat.system, "webdriver.Chrome()") {
		t.Fatalf("system prompt = %q", chat.system)
	}
	if !strings.Contains(chat.user, `"Test_ID": "TC-007"`) {
		t.Fatalf("user prompt = %q", chat.user)
	}
}

func TestGenerateScriptEmptyMarkup(t *testing.T) {
	agent, _ := newTestAgent(&mockChat{}, nil)
	if _, err := agent.GenerateScript(context.Background(), domain.TestCase{}, ""); !errors.Is(err, domain.ErrEmptyMarkup) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateScriptModelError(t *testing.T) {
	agent, _ := newTestAgent(&mockChat{err: errors.New("timeout")}, nil)
	_, err := agent.GenerateScript(context.Background(), domain.TestCase{}, "<html></html>")
	if err == nil || !strings.Contains(err.Error(), "generate script") {
		t.Fatalf("err = %v", err)
	}
}

func TestStripFences(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```python\ncode\n```", "code"},
		{"```\ncode\n```", "code"},
		{"```json\n[1]\n```", "[1]"},
		{"  ```python\ncode\n```  ", "code"},
	} {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
