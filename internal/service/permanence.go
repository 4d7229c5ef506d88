package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"
	"orderbridge/internal/privacy"
	"orderbridge/internal/tracing"
	"orderbridge/pkg/media"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MediaResolver turns a provider media ID into its short-lived download URL
type MediaResolver interface {
	GetMediaDetails(ctx context.Context, mediaID string) (*models.MediaDetails, error)
}

// MediaFetcher opens an upstream media stream
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*media.FetchResult, error)
}

// MediaStore persists a media stream under a generated name
type MediaStore interface {
	Save(ctx context.Context, r io.Reader, mimeType string, size int64) (*models.StoredMedia, error)
}

// HostValidator decides whether a media URL may be fetched
type HostValidator interface {
	IsAllowedMediaHost(u *url.URL) bool
}

type PermanenceConfig struct {
	// PublicBaseURL prefixes stored relative paths, e.g. https://api.example.com
	PublicBaseURL string
	FetchTimeout  time.Duration
}

// PermanenceService copies provider media to permanent storage, degrading
// to the provider's expiring link when the copy fails.
type PermanenceService struct {
	resolver MediaResolver
	fetcher  MediaFetcher
	store    MediaStore
	hosts    HostValidator
	cfg      PermanenceConfig
	registry *metrics.Registry
	logger   *logrus.Logger
}

func NewPermanenceService(
	resolver MediaResolver,
	fetcher MediaFetcher,
	store MediaStore,
	hosts HostValidator,
	cfg PermanenceConfig,
	registry *metrics.Registry,
	logger *logrus.Logger,
) *PermanenceService {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &PermanenceService{
		resolver: resolver,
		fetcher:  fetcher,
		store:    store,
		hosts:    hosts,
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

const (
	outcomePermanent = "permanent"
	outcomeFallback  = "fallback"
	outcomeFailed    = "failed"
)

// MakePermanent resolves, fetches and stores a media item. When any step
// fails the media ID is resolved once more and the fresh provider URL is
// returned as a fallback. Only when that resolution fails too is the error of
// the first failing step returned.
func (s *PermanenceService) MakePermanent(ctx context.Context, mediaID string) (*models.PermanenceResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "media.make_permanent",
		attribute.String("media.id", privacy.MaskMediaID(mediaID)))
	defer span.End()

	log := s.logger.WithField(LogFieldMediaID, privacy.MaskMediaID(mediaID))

	result, err := s.persist(ctx, mediaID)
	if err == nil {
		s.record(outcomePermanent, start)
		span.SetAttributes(attribute.String("media.outcome", outcomePermanent))
		log.WithFields(logrus.Fields{
			LogFieldFileName: result.Filename,
			LogFieldMimeType: result.MimeType,
			LogFieldSize:     result.ByteSize,
			LogFieldDuration: time.Since(start).Milliseconds(),
		}).Info("Media permanence completed")
		return result, nil
	}

	log.WithFields(logrus.Fields{
		LogFieldErrorCode: apperrors.GetCode(err),
	}).WithError(err).Warn("Media permanence failed, resolving provider URL for fallback")

	details, resolveErr := s.resolve(ctx, mediaID)
	if resolveErr != nil {
		s.record(outcomeFailed, start)
		span.SetStatus(codes.Error, "media permanence failed")
		span.RecordError(err)
		log.WithError(resolveErr).Error("Media fallback resolution failed")
		return nil, err
	}

	s.record(outcomeFallback, start)
	span.SetAttributes(attribute.String("media.outcome", outcomeFallback))
	log.WithField(LogFieldURL, privacy.MaskURL(details.URL)).Warn("Media permanence fell back to provider URL")

	return &models.PermanenceResult{
		URL:         details.URL,
		MimeType:    details.MimeType,
		IsPermanent: false,
		IsFallback:  true,
		ByteSize:    details.FileSize,
	}, nil
}

// persist runs resolve, validate, fetch and store in order
func (s *PermanenceService) persist(ctx context.Context, mediaID string) (*models.PermanenceResult, error) {
	details, err := s.resolve(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	sourceURL, err := url.Parse(details.URL)
	if err != nil || !s.hosts.IsAllowedMediaHost(sourceURL) {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorizedDomain, "media URL host is not allowed").
			WithContext("url", privacy.MaskURL(details.URL))
	}

	fetchCtx, fetchSpan := tracing.StartSpan(ctx, "media.fetch",
		attribute.String("media.url", privacy.MaskURL(details.URL)))
	fetched, err := s.fetcher.Fetch(fetchCtx, details.URL, s.cfg.FetchTimeout)
	if err != nil {
		fetchSpan.RecordError(err)
		fetchSpan.SetStatus(codes.Error, "fetch failed")
		fetchSpan.End()
		return nil, ClassifyFetchError(err)
	}
	defer fetched.Body.Close()
	fetchSpan.End()

	mimeType := fetched.ContentType
	if mimeType == "" {
		mimeType = details.MimeType
	}

	storeCtx, storeSpan := tracing.StartSpan(ctx, "media.store",
		attribute.String("media.mime_type", mimeType))
	defer storeSpan.End()

	stored, err := s.store.Save(storeCtx, fetched.Body, mimeType, fetched.ContentLength)
	if err != nil {
		storeSpan.RecordError(err)
		storeSpan.SetStatus(codes.Error, "store failed")
		return nil, apperrors.NewMediaError(apperrors.ErrCodeMediaPermanence, "store", err)
	}
	storeSpan.SetAttributes(attribute.Int64("media.byte_size", stored.ByteSize))

	return &models.PermanenceResult{
		URL:         s.cfg.PublicBaseURL + stored.RelativePath,
		MimeType:    stored.MimeType,
		IsPermanent: true,
		IsFallback:  false,
		Filename:    stored.Filename,
		ByteSize:    stored.ByteSize,
	}, nil
}

func (s *PermanenceService) resolve(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	ctx, span := tracing.StartSpan(ctx, "media.resolve")
	defer span.End()

	details, err := s.resolver.GetMediaDetails(ctx, mediaID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}
	return details, nil
}

func (s *PermanenceService) record(outcome string, start time.Time) {
	labels := map[string]string{"outcome": outcome}
	s.registry.IncrementCounter("media_permanence_total", labels, "Media permanence attempts by outcome")
	s.registry.RecordTimer("media_permanence_duration", time.Since(start), labels, "Media permanence latency")
}

// ClassifyFetchError maps media fetch failures onto API error codes
func ClassifyFetchError(err error) *apperrors.AppError {
	var timeoutErr *media.FetchTimeoutError
	var upstreamErr *media.UpstreamError
	var networkErr *media.NetworkError

	switch {
	case errors.As(err, &timeoutErr):
		return apperrors.Wrap(err, apperrors.ErrCodeRequestTimeout, "media request timed out").
			WithContext("timeout", timeoutErr.Timeout.String()).
			WithUserMessage("Request timeout")
	case errors.As(err, &upstreamErr):
		return apperrors.Wrap(err, apperrors.ErrCodeFacebookRequestFailed, "upstream media request failed").
			WithContext("status_code", upstreamErr.StatusCode).
			WithUserMessage("Failed to fetch media from provider")
	case errors.As(err, &networkErr):
		return apperrors.Wrap(err, apperrors.ErrCodeNetworkError, "network error while fetching media").
			WithUserMessage("Network error while fetching media")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "media fetch failed")
	}
}
