package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/metrics"
	"orderbridge/internal/models"
	"orderbridge/pkg/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sourceURL = "https://lookaside.fbsbx.com/whatsapp_business/attachments/?mid=m1"

type permanenceFixture struct {
	resolver *mockResolver
	fetcher  *mockFetcher
	store    *mockStore
	registry *metrics.Registry
	service  *PermanenceService
}

func newPermanenceFixture(hosts HostValidator) *permanenceFixture {
	f := &permanenceFixture{
		resolver: &mockResolver{},
		fetcher:  &mockFetcher{},
		store:    &mockStore{},
		registry: metrics.NewRegistry(),
	}
	f.service = NewPermanenceService(f.resolver, f.fetcher, f.store, hosts, PermanenceConfig{
		PublicBaseURL: "https://api.example.com/",
		FetchTimeout:  30 * time.Second,
	}, f.registry, quietLogger())
	return f
}

func (f *permanenceFixture) outcome(name string) float64 {
	return f.registry.CounterValue("media_permanence_total", map[string]string{"outcome": name})
}

func jpegDetails() *models.MediaDetails {
	return &models.MediaDetails{ID: "m1", URL: sourceURL, MimeType: "image/jpeg", FileSize: 5}
}

func fetchResult(body, contentType string) *media.FetchResult {
	return &media.FetchResult{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentType:   contentType,
		ContentLength: int64(len(body)),
	}
}

func TestMakePermanentSuccess(t *testing.T) {
	f := newPermanenceFixture(allowAll{})

	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(jpegDetails(), nil).Once()
	f.fetcher.On("Fetch", mock.Anything, sourceURL, 30*time.Second).Return(fetchResult("bytes", "image/jpeg"), nil)
	f.store.On("Save", mock.Anything, mock.Anything, "image/jpeg", int64(5)).Return(&models.StoredMedia{
		Filename:     "media_1_abcd1234.jpg",
		RelativePath: "/uploads/media/media_1_abcd1234.jpg",
		MimeType:     "image/jpeg",
		ByteSize:     5,
	}, nil)

	result, err := f.service.MakePermanent(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/uploads/media/media_1_abcd1234.jpg", result.URL)
	assert.True(t, result.IsPermanent)
	assert.False(t, result.IsFallback)
	assert.Equal(t, "image/jpeg", result.MimeType)
	assert.Equal(t, int64(5), result.ByteSize)
	assert.Equal(t, float64(1), f.outcome("permanent"))

	f.resolver.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestMakePermanentUsesLookupMimeWhenFetchHasNone(t *testing.T) {
	f := newPermanenceFixture(allowAll{})

	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(jpegDetails(), nil)
	f.fetcher.On("Fetch", mock.Anything, sourceURL, mock.Anything).Return(fetchResult("bytes", ""), nil)
	f.store.On("Save", mock.Anything, mock.Anything, "image/jpeg", int64(5)).Return(&models.StoredMedia{
		Filename: "media_1_x.jpg", RelativePath: "/uploads/media/media_1_x.jpg", MimeType: "image/jpeg", ByteSize: 5,
	}, nil)

	result, err := f.service.MakePermanent(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, result.IsPermanent)
	f.store.AssertExpectations(t)
}

func TestMakePermanentFallsBackWhenStoreFails(t *testing.T) {
	f := newPermanenceFixture(allowAll{})

	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(jpegDetails(), nil).Twice()
	f.fetcher.On("Fetch", mock.Anything, sourceURL, mock.Anything).Return(fetchResult("bytes", "image/jpeg"), nil)
	f.store.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("no space left on device"))

	result, err := f.service.MakePermanent(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, sourceURL, result.URL)
	assert.False(t, result.IsPermanent)
	assert.True(t, result.IsFallback)
	assert.Equal(t, "image/jpeg", result.MimeType)
	assert.Empty(t, result.Filename)
	assert.Equal(t, float64(1), f.outcome("fallback"))

	f.resolver.AssertNumberOfCalls(t, "GetMediaDetails", 2)
}

func TestMakePermanentFallsBackOnDisallowedHost(t *testing.T) {
	f := newPermanenceFixture(media.NewHostAllowList([]string{"fbsbx.com"}))

	evil := &models.MediaDetails{ID: "m1", URL: "https://evil.example.com/x.jpg", MimeType: "image/jpeg"}
	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(evil, nil).Twice()

	result, err := f.service.MakePermanent(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, result.IsFallback)
	assert.Equal(t, "https://evil.example.com/x.jpg", result.URL)

	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestMakePermanentFallsBackOnFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", &media.FetchTimeoutError{Timeout: time.Second}},
		{"upstream", &media.UpstreamError{StatusCode: 404, Status: "Not Found"}},
		{"network", &media.NetworkError{Err: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPermanenceFixture(allowAll{})
			f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(jpegDetails(), nil).Twice()
			f.fetcher.On("Fetch", mock.Anything, sourceURL, mock.Anything).Return(nil, tt.err)

			result, err := f.service.MakePermanent(context.Background(), "m1")
			require.NoError(t, err)
			assert.True(t, result.IsFallback)
			f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMakePermanentReturnsOriginalErrorWhenRecoveryFails(t *testing.T) {
	f := newPermanenceFixture(allowAll{})

	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(jpegDetails(), nil).Once()
	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(nil, errors.New("lookup down")).Once()
	f.fetcher.On("Fetch", mock.Anything, sourceURL, mock.Anything).
		Return(nil, &media.UpstreamError{StatusCode: 500, Status: "Internal Server Error"})

	result, err := f.service.MakePermanent(context.Background(), "m1")
	require.Error(t, err)
	assert.Nil(t, result)

	assert.Equal(t, apperrors.ErrCodeFacebookRequestFailed, apperrors.GetCode(err))
	var upstream *media.UpstreamError
	assert.True(t, errors.As(err, &upstream), "original fetch error must be preserved")
	assert.NotContains(t, err.Error(), "lookup down")
	assert.Equal(t, float64(1), f.outcome("failed"))
}

func TestMakePermanentResolveFailsTwice(t *testing.T) {
	f := newPermanenceFixture(allowAll{})

	first := errors.New("first lookup failure")
	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(nil, first).Once()
	f.resolver.On("GetMediaDetails", mock.Anything, "m1").Return(nil, errors.New("second")).Once()

	_, err := f.service.MakePermanent(context.Background(), "m1")
	assert.ErrorIs(t, err, first)
	f.resolver.AssertNumberOfCalls(t, "GetMediaDetails", 2)
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"timeout", &media.FetchTimeoutError{Timeout: time.Second}, apperrors.ErrCodeRequestTimeout},
		{"upstream", &media.UpstreamError{StatusCode: 403, Status: "Forbidden"}, apperrors.ErrCodeFacebookRequestFailed},
		{"network", &media.NetworkError{Err: errors.New("dns")}, apperrors.ErrCodeNetworkError},
		{"other", errors.New("boom"), apperrors.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ClassifyFetchError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}
