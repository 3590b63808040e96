package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the invoice extraction prompt and model parameters
type PromptConfig struct {
	InvoiceExtraction struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"invoice_extraction"`
}

const defaultSystemPrompt = "You are an expert in reading and extracting data from Chinese invoices (发票). " +
	"You have perfect accuracy in reading invoice codes, numbers, amounts, and all other fields. Always respond with valid JSON."

const defaultUserTemplate = `Extract the invoice fields from the {{.Pages}} attached image(s).
Respond with one JSON object using exactly these keys:
{
  "invoice_code": "发票代码, empty for fully digital invoices",
  "invoice_number": "发票号码",
  "invoice_date": "YYYY-MM-DD",
  "total_amount": 0.00,
  "buyer_name": "购买方名称",
  "seller_name": "销售方名称",
  "items": [{"name": "项目名称"}],
  "confidence": 0.0
}
total_amount is the tax inclusive total (价税合计). Use an empty string for any field you cannot read.`

// DefaultPrompts returns the built in prompt configuration
func DefaultPrompts() *PromptConfig {
	p := &PromptConfig{}
	p.InvoiceExtraction.Temperature = 0.1
	p.InvoiceExtraction.MaxTokens = 4096
	p.InvoiceExtraction.System = defaultSystemPrompt
	p.InvoiceExtraction.UserTemplate = defaultUserTemplate
	return p
}

// LoadPrompts loads prompt configuration from a YAML file.
// Fields missing from the file keep their built in values.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
