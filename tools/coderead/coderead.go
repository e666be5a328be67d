// Package coderead reads a source file and explains it through the
// completion service.
package coderead

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/viso-study/visocode/provider"
)

const analysisSystemPrompt = `You are an expert code analyst and educator. Analyze the provided code thoroughly and answer the user's question with clear, detailed explanations. Focus on:
- Code functionality and logic
- Algorithm explanations
- Best practices and potential improvements
- Educational insights about the code concepts
- Step-by-step breakdowns when helpful
Always provide concrete examples and be pedagogical in your explanations.`

var languageByExt = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".java":  "Java",
	".cpp":   "C++",
	".c":     "C",
	".cs":    "C#",
	".go":    "Go",
	".rs":    "Rust",
	".php":   "PHP",
	".rb":    "Ruby",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".r":     "R",
	".m":     "MATLAB",
	".sql":   "SQL",
	".sh":    "Shell Script",
	".html":  "HTML",
	".css":   "CSS",
}

// Analyzer reads code files and answers questions about them. File problems
// are reported as readable error strings so the pipeline can still
// synthesize around them; only completion transport failures surface as
// errors.
type Analyzer struct {
	completer provider.Completer
}

// New creates an Analyzer.
func New(completer provider.Completer) *Analyzer {
	return &Analyzer{completer: completer}
}

// Analyze reads the file at path and asks the completion service the given
// question about it.
func (a *Analyzer) Analyze(ctx context.Context, path, question string) (string, error) {
	path = cleanPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			abs, _ := filepath.Abs(path)
			return fmt.Sprintf("Error: File '%s' not found.\nLooked for: %s\nPlease check the file path.", path, abs), nil
		}
		return fmt.Sprintf("Error: Could not read file '%s': %v", path, err), nil
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("Error: Could not read file '%s'. File may be binary or use an unsupported encoding.", path), nil
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Sprintf("Error: File '%s' is empty.", path), nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	language := languageByExt[ext]
	if language == "" {
		language = "Unknown"
	}

	prompt := fmt.Sprintf(`FILE: %s
LANGUAGE: %s
FILE SIZE: %d characters

CODE CONTENT:
`+"```%s\n%s\n```"+`

USER QUESTION: %s

Please analyze this %s code and answer the question thoroughly. Provide educational explanations that help understand both the specific code and the underlying concepts.`,
		path, language, len(content), strings.ToLower(language), content, question, language)

	answer, err := a.completer.Complete(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: analysisSystemPrompt},
		{Role: provider.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("code analysis: %w", err)
	}

	return fmt.Sprintf("FILE ANALYSIS: %s\nLANGUAGE: %s\nSIZE: %d characters\n\nQUESTION: %s\n\nANALYSIS:\n%s",
		filepath.Base(path), language, len(content), question, strings.TrimSpace(answer)), nil
}

// cleanPath strips surrounding quotes and normalizes separators.
func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) >= 2 {
		if (path[0] == '\'' && path[len(path)-1] == '\'') || (path[0] == '"' && path[len(path)-1] == '"') {
			path = path[1 : len(path)-1]
		}
	}
	return filepath.Clean(path)
}
