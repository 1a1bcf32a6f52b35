package qa

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/QAPilotAI/qapilot-mvp/engine/domain"
	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
)

const testCaseSystemPrompt = `You are an expert QA Test Engineer. Your goal is to generate comprehensive test cases based strictly on the provided project documentation.

Rules:
1. Ground all test cases in the provided context.
2. Do not hallucinate features not mentioned in the context.
3. Output must be a valid JSON list of objects.
4. Each object must have: "Test_ID", "Feature", "Test_Scenario", "Expected_Result", "Grounded_In" (filename).`

const scriptSystemPrompt = `You are an expert Selenium Python Automation Engineer.
Your task is to write a robust, runnable Python Selenium script for a specific test case.

Target HTML Content:
%s

Rules:
1. **Driver Setup**: Do NOT use 'webdriver_manager'. Use built-in Selenium Manager: ` + "`driver = webdriver.Chrome()`" + `.
2. **File Loading**: Assume the target file is named 'index.html' in the same directory. Use ` + "`os.path.abspath(\"index.html\")`" + ` combined with the ` + "`file:///`" + ` prefix to load it. Example: ` + "`driver.get(\"file:///\" + os.path.abspath(\"index.html\"))`" + `.
3. **Color Assertions**: Import ` + "`from selenium.webdriver.support.color import Color`" + `. Convert CSS colors to Hex for comparison (e.g., ` + "`assert Color.from_string(elem.value_of_css_property('color')).hex == '#ff0000'`" + `).
4. **Clean Code**: Do NOT import unused libraries like ` + "`math`" + ` or ` + "`webdriver_manager`" + `. Keep imports minimal.
5. **Visual Feedback**: Add ` + "`print(\"SUCCESS: Test Case [Name] Passed\")`" + ` at the very end of the script.
6. **Waits & Selectors**: Use ` + "`WebDriverWait`" + ` and robust selectors (ID, CSS) that exist in the HTML.
7. **Output**: Return ONLY the Python code, no markdown formatting like ` + "```python" + `.

Robustness Guidelines:
- Data Parsing: When parsing currency (e.g., "$100.00"), remove non-numeric characters before converting to float. Handle empty strings gracefully.
- Assertions: Use 'in' for text checks instead of '==' (e.g., "Discount Applied" in message). Use round() for float comparisons if needed.
- Selectors: Prefer IDs or data attributes over text content.`

// contextBlock formats retrieved chunks for the test-case prompt, each
// tagged with its source file's basename.
func contextBlock(results []semantic.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "--- Source: %s ---\n%s\n\n", filepath.Base(r.Source), r.Content)
	}
	return b.String()
}

func testCaseUserPrompt(context, requirement string) string {
	return fmt.Sprintf("Context:\n%s\nRequirement:\n%s\n\nGenerate test cases in JSON format:", context, requirement)
}

func scriptPrompts(tc domain.TestCase, htmlContent string) (system, user string, err error) {
	serialized, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("qa: serialize test case: %w", err)
	}
	system = fmt.Sprintf(scriptSystemPrompt, htmlContent)
	user = fmt.Sprintf("Test Case:\n%s\n\nGenerate the Python Selenium script:", serialized)
	return system, user, nil
}

// stripFences removes a leading and trailing markdown code fence, with or
// without a language tag, leaving the body untouched.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop the language tag line ("python", "json", or empty).
		if tag := strings.TrimSpace(s[:i]); tag == "" || !strings.ContainsAny(tag, " \t") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
