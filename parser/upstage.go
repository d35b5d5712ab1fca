package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// UpstageConfig configures the Upstage document digitization service.
type UpstageConfig struct {
	APIKey  string
	BaseURL string // defaults to https://api.upstage.ai/v1
}

// UpstageParser extracts text through the Upstage OCR API. OCR is forced,
// so scanned contracts without a text layer still produce text.
type UpstageParser struct {
	cfg    UpstageConfig
	client *http.Client
}

// NewUpstageParser creates a parser against the Upstage API.
func NewUpstageParser(cfg UpstageConfig) *UpstageParser {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.upstage.ai/v1"
	}
	return &UpstageParser{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *UpstageParser) SupportedFormats() []string { return []string{"pdf"} }

type upstageResponse struct {
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

func (p *UpstageParser) Parse(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copying document: %w", err)
	}

	fields := map[string]string{
		"ocr":             "force",
		"base64_encoding": "[]",
		"model":           "document-parse",
		"output_formats":  "['text']",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	url := p.cfg.BaseURL + "/document-digitization"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstage request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstage response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstage error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed upstageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding upstage response: %w", err)
	}

	return &Result{
		Text:     parsed.Content.Text,
		Method:   "upstage",
		Metadata: map[string]string{"model": parsed.Model},
	}, nil
}
