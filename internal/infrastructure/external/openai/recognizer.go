package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const mimePDF = "application/pdf"

// chatClient is the subset of the OpenAI client used for recognition
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the vision recognizer
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	PromptsPath string
}

// Recognizer implements port.InvoiceRecognizer with a vision capable chat model
type Recognizer struct {
	client     chatClient
	model      string
	prompts    *PromptConfig
	rasterizer PDFRasterizer
	logger     *zap.Logger
}

// NewRecognizer creates a new OpenAI invoice recognizer
func NewRecognizer(cfg Config, rasterizer PDFRasterizer, logger *zap.Logger) (*Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	prompts, err := LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	return newRecognizer(openai.NewClientWithConfig(clientCfg), model, prompts, rasterizer, logger), nil
}

func newRecognizer(client chatClient, model string, prompts *PromptConfig, rasterizer PDFRasterizer, logger *zap.Logger) *Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{
		client:     client,
		model:      model,
		prompts:    prompts,
		rasterizer: rasterizer,
		logger:     logger,
	}
}

// extractedInvoice is the JSON shape the model is asked to return
type extractedInvoice struct {
	InvoiceCode   string      `json:"invoice_code"`
	InvoiceNumber string      `json:"invoice_number"`
	InvoiceDate   string      `json:"invoice_date"`
	TotalAmount   amount      `json:"total_amount"`
	BuyerName     string      `json:"buyer_name"`
	SellerName    string      `json:"seller_name"`
	Items         []struct {
		Name string `json:"name"`
	} `json:"items"`
	Confidence float64 `json:"confidence"`
}

// amount accepts both JSON numbers and strings such as "¥1,280.00"
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	raw = strings.NewReplacer("¥", "", "￥", "", ",", "", " ", "").Replace(raw)
	if raw == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*a = amount(v)
	return nil
}

// Recognize extracts invoice fields from an image or PDF receipt
func (r *Recognizer) Recognize(ctx context.Context, content []byte, mimeType string) (*port.RecognizedInvoice, error) {
	r.logger.Info("Extracting invoice data with Vision API", zap.String("mime_type", mimeType))

	images, imageType, err := r.images(content, mimeType)
	if err != nil {
		return nil, err
	}

	prompt, err := renderTemplate(r.prompts.InvoiceExtraction.UserTemplate, map[string]int{"Pages": len(images)})
	if err != nil {
		return nil, err
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", imageType, base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   r.prompts.InvoiceExtraction.MaxTokens,
		Temperature: r.prompts.InvoiceExtraction.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.prompts.InvoiceExtraction.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Vision API")
	}

	result, err := parseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Error("Failed to parse Vision API response", zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}

	r.logger.Info("Invoice data extracted successfully",
		zap.String("invoice_number", result.InvoiceNumber),
		zap.Float64("total_amount", result.TotalAmount))
	return result, nil
}

func (r *Recognizer) images(content []byte, mimeType string) ([][]byte, string, error) {
	if !strings.HasPrefix(mimeType, mimePDF) {
		return [][]byte{content}, mimeType, nil
	}
	if r.rasterizer == nil {
		return nil, "", fmt.Errorf("PDF receipts are not supported without a rasterizer")
	}
	pages, err := r.rasterizer.Rasterize(content)
	if err != nil {
		return nil, "", err
	}
	return pages, "image/jpeg", nil
}

// parseExtraction decodes the model output, tolerating text around the JSON object
func parseExtraction(content string) (*port.RecognizedInvoice, error) {
	var data extractedInvoice
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &data); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	result := &port.RecognizedInvoice{
		InvoiceCode:   strings.TrimSpace(data.InvoiceCode),
		InvoiceNumber: strings.TrimSpace(data.InvoiceNumber),
		InvoiceDate:   strings.TrimSpace(data.InvoiceDate),
		TotalAmount:   float64(data.TotalAmount),
		BuyerName:     strings.TrimSpace(data.BuyerName),
		SellerName:    strings.TrimSpace(data.SellerName),
		Confidence:    data.Confidence,
	}
	if len(data.Items) > 0 {
		result.ServiceName = strings.TrimSpace(data.Items[0].Name)
	}
	return result, nil
}
