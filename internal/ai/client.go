package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"
const defaultFluxBase = "https://image.pollinations.ai"

// systemInstruction keeps answers inside what Telegram can render: HTML tags
// only (Markdown markers break ParseMode=HTML) and under the message limit.
const systemInstruction = "Ты — полезный ассистент в Telegram. Отвечай на русском языке.\n" +
	"ВАЖНЫЕ ПРАВИЛА:\n" +
	"1. ФОРМАТИРОВАНИЕ: Используй ТОЛЬКО HTML теги. " +
	"Поддерживаемые теги: <b>жирный</b>, <i>курсив</i>, <code>код</code>, " +
	"<pre>блок кода</pre>, <a href='...'>ссылка</a>. " +
	"⛔️ ЗАПРЕЩЕНО использовать Markdown (символы **, __, ```), так как это вызовет ошибку.\n" +
	"2. ДЛИНА: Твой ответ СТРОГО не должен превышать 3800 символов. " +
	"Если ответ требует больше места — сократи его, выдели главное или разбей на пункты."

var ErrNoAPIKey = errors.New("google api key is not configured")
var ErrEmptyAnswer = errors.New("empty answer from model")

type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	geminiBase string
	fluxBase   string
}

func NewClient(apiKey, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		geminiBase: defaultGeminiBase,
		fluxBase:   defaultFluxBase,
	}
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineDataPart `json:"inline_data,omitempty"`
}

type inlineDataPart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GenerateText(ctx context.Context, userPrompt string) (string, error) {
	parts := []generatePart{
		{Text: systemInstruction + "\n\nЗапрос пользователя: " + userPrompt},
	}
	return c.generateContent(ctx, parts)
}

func (c *Client) AnalyzeImage(ctx context.Context, userPrompt string, imageBytes []byte) (string, error) {
	parts := []generatePart{
		{Text: systemInstruction + "\n\nЗапрос: " + userPrompt},
		{InlineData: &inlineDataPart{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(imageBytes),
		}},
	}
	return c.generateContent(ctx, parts)
}

func (c *Client) generateContent(ctx context.Context, parts []generatePart) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	var reqBody generateRequest
	reqBody.Contents = make([]struct {
		Parts []generatePart `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = parts

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.geminiBase, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("gemini: unexpected response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("gemini: %s", out.Error.Message)
		}
		return "", fmt.Errorf("gemini: status %d", resp.StatusCode)
	}

	var sb strings.Builder
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// GenerateImage renders the prompt through Flux. A random seed makes repeated
// prompts produce different images.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	seed := rand.Intn(100000) + 1
	endpoint := fmt.Sprintf("%s/prompt/%s?width=1024&height=1024&model=flux&seed=%d&nologo=true",
		c.fluxBase, url.PathEscape(prompt), seed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flux: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyAnswer
	}
	return data, nil
}
