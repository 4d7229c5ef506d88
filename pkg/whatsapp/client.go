package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orderbridge/internal/constants"
	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"
	"orderbridge/internal/privacy"
	"orderbridge/internal/tracing"
	"orderbridge/pkg/circuitbreaker"
	"orderbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const maxResponseBytes = 1 << 20

// Client is the subset of the WhatsApp Cloud API the bridge uses
type Client interface {
	GetMediaDetails(ctx context.Context, mediaID string) (*models.MediaDetails, error)
	SendText(ctx context.Context, to, text string) (*types.SendResponse, error)
}

// ClientConfig configures a WhatsAppClient
type ClientConfig struct {
	GraphURL        string
	APIVersion      string
	PhoneNumberID   string
	AccessToken     string
	Timeout         time.Duration
	BreakerFailures int
	BreakerReset    time.Duration
	HTTPClient      *http.Client
}

// ConfigFromModel maps the application config onto a ClientConfig
func ConfigFromModel(cfg models.WhatsAppConfig) ClientConfig {
	return ClientConfig{
		GraphURL:        cfg.GraphURL,
		APIVersion:      cfg.APIVersion,
		PhoneNumberID:   cfg.PhoneNumberID,
		AccessToken:     cfg.AccessToken,
		Timeout:         time.Duration(cfg.TimeoutMs) * time.Millisecond,
		BreakerFailures: cfg.SendBreakerFailures,
		BreakerReset:    time.Duration(cfg.SendBreakerResetSec) * time.Second,
	}
}

// WhatsAppClient talks to the Graph API with a bearer token
type WhatsAppClient struct {
	baseURL       string
	phoneNumberID string
	token         string
	client        *http.Client
	sendBreaker   *circuitbreaker.Breaker
	logger        *logrus.Logger
}

func NewClient(cfg ClientConfig, logger *logrus.Logger) *WhatsAppClient {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = constants.DefaultWhatsAppGraphURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = constants.DefaultWhatsAppAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Duration(constants.DefaultWhatsAppTimeoutMs) * time.Millisecond
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = constants.DefaultSendBreakerFailures
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = time.Duration(constants.DefaultSendBreakerResetSec) * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	registry := metrics.GetRegistry()
	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "whatsapp-send",
		MaxFailures: uint32(cfg.BreakerFailures),
		OpenTimeout: cfg.BreakerReset,
		IsFailure:   apperrors.IsRetryable,
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			registry.SetGauge("circuit_breaker_state", float64(to), map[string]string{"breaker": name},
				"Circuit breaker state (0 closed, 1 open, 2 half-open)")
		},
	}, logger)

	return &WhatsAppClient{
		baseURL:       strings.TrimRight(cfg.GraphURL, "/") + "/" + strings.Trim(cfg.APIVersion, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		client:        cfg.HTTPClient,
		sendBreaker:   breaker,
		logger:        logger,
	}
}

// GetMediaDetails resolves a media ID to its short-lived download URL.
// Results are never cached; the URL expires within minutes.
func (c *WhatsAppClient) GetMediaDetails(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, apperrors.NewValidationError("mediaId", "media ID is required")
	}

	ctx, span := tracing.StartSpan(ctx, "whatsapp.get_media_details",
		attribute.String("media.id", privacy.MaskMediaID(mediaID)))
	defer span.End()

	var resp types.MediaDetailsResponse
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(mediaID), nil, &resp); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if resp.URL == "" {
		err := apperrors.New(apperrors.ErrCodeWhatsAppAPI, "media lookup returned no URL").
			WithContext("media_id", privacy.MaskMediaID(mediaID))
		tracing.RecordError(ctx, err)
		return nil, err
	}

	id := resp.ID
	if id == "" {
		id = mediaID
	}

	c.logger.WithFields(logrus.Fields{
		"media_id":  privacy.MaskMediaID(mediaID),
		"mime_type": resp.MimeType,
		"file_size": int64(resp.FileSize),
	}).Debug("Resolved WhatsApp media")

	return &models.MediaDetails{
		ID:       id,
		URL:      resp.URL,
		MimeType: resp.MimeType,
		SHA256:   resp.SHA256,
		FileSize: int64(resp.FileSize),
	}, nil
}

// SendText sends a plain text message. URLs in the body get link previews.
func (c *WhatsAppClient) SendText(ctx context.Context, to, text string) (*types.SendResponse, error) {
	return c.send(ctx, types.SendMessageRequest{
		MessagingProduct: types.MessagingProduct,
		RecipientType:    types.RecipientIndividual,
		To:               to,
		Type:             types.MessageTypeText,
		Text:             &types.TextBody{PreviewURL: true, Body: text},
	})
}

func (c *WhatsAppClient) send(ctx context.Context, payload types.SendMessageRequest) (*types.SendResponse, error) {
	if strings.TrimSpace(payload.To) == "" {
		return nil, apperrors.NewValidationError("recipient", "recipient is required")
	}
	if c.phoneNumberID == "" {
		return nil, apperrors.New(apperrors.ErrCodeWhatsAppAPI, "whatsapp phone number ID is not configured")
	}

	ctx, span := tracing.StartSpan(ctx, "whatsapp.send_message",
		attribute.String("whatsapp.message_type", payload.Type))
	defer span.End()

	var resp types.SendResponse
	err := c.sendBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/"+url.PathEscape(c.phoneNumberID)+types.EndpointMessages, payload, &resp)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			err = apperrors.WrapRetryable(err, apperrors.ErrCodeWhatsAppAPI, "whatsapp send temporarily disabled").
				WithUserMessage("Message provider unavailable, try again later")
		}
		tracing.RecordError(ctx, err)
		c.logger.WithFields(logrus.Fields{
			"recipient": privacy.MaskRecipient(payload.To),
			"type":      payload.Type,
		}).WithError(err).Warn("WhatsApp send failed")
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"recipient":  privacy.MaskRecipient(payload.To),
		"type":       payload.Type,
		"message_id": resp.MessageID(),
	}).Info("WhatsApp message sent")

	return &resp, nil
}

// do performs a Graph API call and decodes a 2xx JSON body into out
func (c *WhatsAppClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to marshal whatsapp request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create whatsapp request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeWhatsAppAPI, "whatsapp request failed").
			WithContext("endpoint", endpointLabel(path))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeWhatsAppAPI, "failed to read whatsapp response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewAPIError(endpointLabel(path), resp.StatusCode, decodeAPIError(resp.StatusCode, data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeWhatsAppAPI, "failed to decode whatsapp response")
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var errResp types.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("graph API error %d (%s): %s", errResp.Error.Code, errResp.Error.Type, errResp.Error.Message)
	}
	return fmt.Errorf("graph API responded with status %d", status)
}

// endpointLabel keeps media IDs and phone number IDs out of error context
func endpointLabel(path string) string {
	if strings.HasSuffix(path, types.EndpointMessages) {
		return types.EndpointMessages
	}
	return "/{media-id}"
}
