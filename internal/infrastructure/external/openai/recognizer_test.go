package openai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply string
	err   error
	req   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

type fakeRasterizer struct {
	pages [][]byte
}

func (f *fakeRasterizer) Rasterize([]byte) ([][]byte, error) {
	return f.pages, nil
}

func TestRecognizer_Image(t *testing.T) {
	chat := &fakeChat{reply: `{"invoice_code":"","invoice_number":" 24312000000012345678 ","invoice_date":"2024-05-01",
		"total_amount":"¥1,280.50","buyer_name":"某某科技有限公司","seller_name":"某某酒店","items":[{"name":"住宿服务"}],"confidence":0.92}`}
	r := newRecognizer(chat, "gpt-4o", DefaultPrompts(), nil, nil)

	got, err := r.Recognize(context.Background(), []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "24312000000012345678", got.InvoiceNumber)
	assert.Equal(t, 1280.5, got.TotalAmount)
	assert.Equal(t, "住宿服务", got.ServiceName)
	assert.Equal(t, 0.92, got.Confidence)

	require.Len(t, chat.req.Messages, 2)
	parts := chat.req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
}

func TestRecognizer_PDFSendsEveryRenderedPage(t *testing.T) {
	chat := &fakeChat{reply: `{"invoice_number":"12345678","total_amount":10}`}
	r := newRecognizer(chat, "gpt-4o", DefaultPrompts(), &fakeRasterizer{pages: [][]byte{[]byte("p1"), []byte("p2")}}, nil)

	_, err := r.Recognize(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	parts := chat.req.Messages[1].MultiContent
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "2 attached image")
	assert.True(t, strings.HasPrefix(parts[2].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestRecognizer_PDFWithoutRasterizer(t *testing.T) {
	r := newRecognizer(&fakeChat{}, "gpt-4o", DefaultPrompts(), nil, nil)
	_, err := r.Recognize(context.Background(), []byte("%PDF"), "application/pdf")
	assert.Error(t, err)
}

func TestRecognizer_APIError(t *testing.T) {
	r := newRecognizer(&fakeChat{err: errors.New("boom")}, "gpt-4o", DefaultPrompts(), nil, nil)
	_, err := r.Recognize(context.Background(), []byte("x"), "image/jpeg")
	assert.ErrorContains(t, err, "boom")
}

func TestParseExtraction_WrappedJSON(t *testing.T) {
	got, err := parseExtraction("```json\n{\"invoice_number\":\"A1\",\"total_amount\":null}\n```")
	require.NoError(t, err)
	assert.Equal(t, "A1", got.InvoiceNumber)
	assert.Zero(t, got.TotalAmount)

	_, err = parseExtraction("no json here")
	assert.Error(t, err)

	_, err = parseExtraction(`{"total_amount":"abc"}`)
	assert.Error(t, err)
}

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, 4096, p.InvoiceExtraction.MaxTokens)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invoice_extraction:\n  max_tokens: 1024\n"), 0o644))

	p, err = LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, p.InvoiceExtraction.MaxTokens)
	assert.Equal(t, defaultSystemPrompt, p.InvoiceExtraction.System)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRecognizer_RequiresKey(t *testing.T) {
	_, err := NewRecognizer(Config{}, nil, nil)
	assert.Error(t, err)
}
