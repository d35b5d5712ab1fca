// Package analysis turns contract text into the summary and toxic-clause
// annotations served by the upload pipeline and the agent tools.
package analysis

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackFormatPrompt is used when the response-formatting prompt file is
// absent. The other prompts have no fallback and are required at startup.
const FallbackFormatPrompt = "Summarize the following information in a clear, concise manner:"

// Prompts are the model instructions loaded from the prompts directory.
type Prompts struct {
	// SummaryTemplate carries a {content} slot for the document text.
	SummaryTemplate string

	// Highlight instructs toxic-clause extraction (a JSON array reply).
	Highlight string

	// Simulate instructs the dispute simulation exchange.
	Simulate string

	// Format instructs the agent's response formatter.
	Format string
}

// summaryPromptFile is the YAML shape of the summary prompt: the message
// explains the task, the prefix pins the expected section labels.
type summaryPromptFile struct {
	Message string `yaml:"message"`
	Prefix  string `yaml:"prefix"`
}

// LoadPrompts reads every prompt from dir. The summary, highlight and
// simulate prompts are required; the format prompt falls back to
// FallbackFormatPrompt when its file is missing.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{}

	data, err := os.ReadFile(filepath.Join(dir, "summarize_pdf.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading summary prompt: %w", err)
	}
	var sp summaryPromptFile
	if err := yaml.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("decoding summary prompt: %w", err)
	}
	p.SummaryTemplate = strings.TrimSpace(sp.Message) + "\n\n" + strings.TrimSpace(sp.Prefix)

	if p.Highlight, err = readPrompt(dir, "highlight_prompt.txt"); err != nil {
		return nil, err
	}
	if p.Simulate, err = readPrompt(dir, "simulate_dispute.txt"); err != nil {
		return nil, err
	}

	format, err := readPrompt(dir, "format_output.txt")
	if err != nil {
		slog.Warn("analysis: format prompt missing, using fallback", "error", err)
		format = FallbackFormatPrompt
	}
	p.Format = format

	return p, nil
}

func readPrompt(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("reading prompt %s: %w", name, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("prompt %s is empty", name)
	}
	return text, nil
}
