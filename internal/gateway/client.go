// Package gateway is the HTTP client for the remote pet backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"talking-pet/companion/internal/models"
	apperrors "talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
	"talking-pet/companion/pkg/middleware"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "talking-pet/companion/gateway"

// maxErrorBody caps how much of a failed response is read into the error
const maxErrorBody = 64 << 10

// Client calls the pet backend. Every non-2xx response is returned as an
// *errors.AppError carrying the response body text. No call is retried.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	log      *logger.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAPIKey sends the key as a bearer token
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithMeter records request durations on the given meter
func WithMeter(m metric.Meter) Option {
	return func(c *Client) {
		h, err := m.Float64Histogram("gateway.request.duration",
			metric.WithUnit("ms"),
			metric.WithDescription("Duration of pet backend requests"),
		)
		if err == nil {
			c.duration = h
		}
	}
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) *Client {
	fallback, _ := noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("gateway.request.duration")
	c := &Client{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		log:      log.Named("gateway"),
		tracer:   otel.Tracer(instrumentationName),
		duration: fallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProfile fetches the current pet profile
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetShop fetches the shop catalog in server order
func (c *Client) GetShop(ctx context.Context) ([]models.ShopItem, error) {
	var resp models.ShopResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/shop", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// PerformAction applies a care action
func (c *Client) PerformAction(ctx context.Context, action models.Action) (*models.Profile, error) {
	return c.profileCall(ctx, "/api/actions/"+url.PathEscape(string(action)), nil)
}

// BuyItem purchases a shop item
func (c *Client) BuyItem(ctx context.Context, itemID string) (*models.Profile, error) {
	return c.profileCall(ctx, "/api/shop/buy", models.ItemRequest{ItemID: itemID})
}

// EquipItem equips an owned item
func (c *Client) EquipItem(ctx context.Context, itemID string) (*models.Profile, error) {
	return c.profileCall(ctx, "/api/shop/equip", models.ItemRequest{ItemID: itemID})
}

// SubmitMinigame reports a finished mini-game round
func (c *Client) SubmitMinigame(ctx context.Context, result models.MinigameResult) (*models.Profile, error) {
	return c.profileCall(ctx, "/api/minigame/result", result)
}

// SendChat sends the conversation window and returns the pet's reply
func (c *Client) SendChat(ctx context.Context, messages []models.ChatMessage) (*models.ChatResponse, error) {
	return c.chatCall(ctx, "/api/chat", models.ChatRequest{Messages: messages})
}

// RequestActionFeedback asks the pet to narrate a completed action
func (c *Client) RequestActionFeedback(ctx context.Context, action models.Action) (*models.ChatResponse, error) {
	return c.chatCall(ctx, "/api/action-feedback", models.ActionFeedbackRequest{Action: action})
}

// RequestReminder asks the pet for an unprompted message
func (c *Client) RequestReminder(ctx context.Context) (*models.ChatResponse, error) {
	return c.chatCall(ctx, "/api/reminder", struct{}{})
}

// SynthesizeSpeech returns spoken audio for text
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	return c.doBlob(ctx, "/api/tts", models.SpeechRequest{Text: text})
}

// SynthesizeSoundEffect returns a sound effect generated from prompt
func (c *Client) SynthesizeSoundEffect(ctx context.Context, prompt string) ([]byte, error) {
	return c.doBlob(ctx, "/api/sfx", models.SoundEffectRequest{Prompt: prompt})
}

// TranscribeSpeech uploads recorded audio and returns the transcript
func (c *Client) TranscribeSpeech(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	if filename == "" {
		filename = "speech.webm"
	}
	if contentType == "" {
		contentType = "audio/webm"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/stt", &body, writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out models.TranscriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode /api/stt response: %w", err)
	}
	return out.Text, nil
}

func (c *Client) profileCall(ctx context.Context, path string, payload any) (*models.Profile, error) {
	var resp models.ActionResponse
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Profile, nil
}

func (c *Client) chatCall(ctx context.Context, path string, payload any) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	body, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) doBlob(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return data, nil
}

// do sends the request and returns the response only when the status is 2xx
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("request.id", requestID),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.Int("status", status),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug("Backend request failed", "path", path, "request_id", requestID, "error", err.Error())
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status < 200 || status > 299 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		appErr := apperrors.NewGatewayError(status, string(text))
		span.SetStatus(codes.Error, appErr.Message)
		c.log.Debug("Backend returned error", "path", path, "status", status, "request_id", requestID)
		return nil, appErr
	}
	return resp, nil
}

func encode(payload any) (io.Reader, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
