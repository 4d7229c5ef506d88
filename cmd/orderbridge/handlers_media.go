package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderbridge/internal/constants"
	apperrors "orderbridge/internal/errors"
	mediarouter "orderbridge/internal/media"
	"orderbridge/internal/models"
	"orderbridge/internal/privacy"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"
	"orderbridge/internal/validation"
	"orderbridge/pkg/media"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// UploadResponse is returned after a successful direct upload
type UploadResponse struct {
	Success      bool      `json:"success"`
	PermanentURL string    `json:"permanentUrl"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// handleProxyMedia streams an allow-listed provider media URL to the caller
// with the provider credential attached. Nothing is written to disk.
func (s *Server) handleProxyMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := parseProxyTarget(r.URL.RawQuery)
		if err != nil {
			s.recordProxy("rejected")
			s.writeError(w, r, err)
			return
		}

		if !s.deps.Hosts.IsAllowedMediaHost(target) {
			s.recordProxy("unauthorized_domain")
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeUnauthorizedDomain, "media host not allowed").
				WithContext("host", target.Hostname()).
				WithUserMessage("Media host is not allowed"))
			return
		}

		result, err := s.deps.Fetcher.Fetch(r.Context(), target.String(), 0)
		if err != nil {
			fetchErr := service.ClassifyFetchError(err)
			s.recordProxy(strings.ToLower(string(fetchErr.Code)))
			s.writeError(w, r, fetchErr)
			return
		}
		defer result.Body.Close()

		contentType := result.ContentType
		if contentType == "" {
			contentType = constants.DefaultMimeType
		}

		header := w.Header()
		header.Set("Content-Type", contentType)
		if result.ContentLength >= 0 {
			header.Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
		}
		header.Set("Cache-Control", constants.ProxyCacheControl)
		header.Set("X-Media-Source", constants.ProxyMediaSource)
		header.Set("X-Response-Time", fmt.Sprintf("%dms", tracing.Elapsed(r.Context()).Milliseconds()))
		if result.LastModified != "" {
			header.Set("Last-Modified", result.LastModified)
		}
		if result.ETag != "" {
			header.Set("ETag", result.ETag)
		}

		written, err := io.Copy(w, result.Body)
		if err != nil {
			s.recordProxy("stream_error")
			s.streamFailed(w, r, written, err)
			return
		}

		s.recordProxy("ok")
		s.logger.WithFields(logrus.Fields{
			"request_id": tracing.GetRequestID(r.Context()),
			"url":        privacy.MaskURL(target.String()),
			"bytes":      written,
		}).Debug("Proxied provider media")
	}
}

// parseProxyTarget extracts the url query parameter. The raw query is parsed
// here so that malformed percent-encoding is reported instead of dropped.
func parseProxyTarget(rawQuery string) (*url.URL, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidURLEncoding, "malformed query string").
			WithUserMessage("Invalid URL encoding")
	}

	raw := values.Get("url")
	if raw == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingURLParameter, "url parameter missing").
			WithUserMessage("Missing url parameter")
	}

	target, err := url.Parse(raw)
	if err != nil || !target.IsAbs() || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, apperrors.New(apperrors.ErrCodeInvalidURLEncoding, "url parameter is not an absolute http(s) URL").
			WithUserMessage("Invalid URL encoding")
	}

	return target, nil
}

func (s *Server) recordProxy(outcome string) {
	s.deps.Registry.IncrementCounter("media_proxy_requests_total", map[string]string{"outcome": outcome}, "Media proxy requests by outcome")
}

// streamFailed handles a copy error. A JSON error body is only possible when
// nothing has been written yet; otherwise the response is cut short.
func (s *Server) streamFailed(w http.ResponseWriter, r *http.Request, written int64, err error) {
	streamErr := apperrors.Wrap(err, apperrors.ErrCodeStreamError, "media stream interrupted").
		WithContext("bytes_written", written).
		WithUserMessage("Error streaming media")

	if written == 0 && r.Context().Err() == nil {
		for _, h := range []string{"Content-Length", "Cache-Control", "Last-Modified", "ETag", "X-Media-Source"} {
			w.Header().Del(h)
		}
		s.writeError(w, r, streamErr)
		return
	}

	s.errLogger.LogWarn(streamErr, "Media stream ended early", logrus.Fields{
		"request_id": tracing.GetRequestID(r.Context()),
		"path":       r.URL.Path,
	})
}

// handleUpload stores a multipart file under the permanent media directory
func (s *Server) handleUpload() http.HandlerFunc {
	maxBytes := int64(s.cfg.Media.MaxUploadSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = int64(constants.DefaultMaxUploadSizeMB) * 1024 * 1024
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, maxBytes); err != nil {
			s.writeError(w, r, err)
			return
		}

		// The write deadline starts with the request, so it would expire mid-body
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(int64(constants.DefaultMultipartMemoryMB) << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				s.writeError(w, r, apperrors.NewValidationError("file", fmt.Sprintf("upload exceeds %d MB", maxBytes>>20)))
				return
			}
			s.writeError(w, r, missingFile(err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, r, missingFile(err))
			return
		}
		defer file.Close()

		declared := fileHeader.Header.Get("Content-Type")
		if hint := r.FormValue("type"); hint != "" && (declared == "" || constants.NormalizeMimeType(declared) == constants.DefaultMimeType) {
			declared = hint
		}

		mimeType, err := mediarouter.DetectMimeType(declared, file)
		if err != nil {
			s.writeError(w, r, apperrors.NewMediaError(apperrors.ErrCodeUploadError, "detect mime type", err).
				WithUserMessage("Upload failed"))
			return
		}

		if err := s.deps.Uploads.CheckSize(mimeType, fileHeader.Size); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("file", err.Error()))
			return
		}

		stored, err := s.deps.Store.Save(r.Context(), file, mimeType, fileHeader.Size)
		if err != nil {
			s.deps.Registry.IncrementCounter("media_uploads_total", map[string]string{"outcome": "error"}, "Direct media uploads by outcome")
			s.writeError(w, r, apperrors.NewMediaError(apperrors.ErrCodeUploadError, "store upload", err).
				WithUserMessage("Upload failed"))
			return
		}

		s.deps.Registry.IncrementCounter("media_uploads_total", map[string]string{"outcome": "ok"}, "Direct media uploads by outcome")
		s.logger.WithFields(logrus.Fields{
			"request_id": tracing.GetRequestID(r.Context()),
			"filename":   stored.Filename,
			"mime_type":  stored.MimeType,
			"size":       stored.ByteSize,
			"category":   s.deps.Uploads.GetMediaType(stored.MimeType),
		}).Info("Media uploaded")

		writeJSON(w, http.StatusCreated, UploadResponse{
			Success:      true,
			PermanentURL: permanentURL(s.cfg.Server.PublicBaseURL, stored),
			Filename:     stored.Filename,
			OriginalName: fileHeader.Filename,
			MimeType:     stored.MimeType,
			Size:         stored.ByteSize,
			UploadedAt:   stored.CreatedAt,
		})
	}
}

func missingFile(err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeMissingFile, "multipart file field missing").
		WithUserMessage("No file uploaded")
}

func permanentURL(base string, stored *models.StoredMedia) string {
	return strings.TrimRight(base, "/") + stored.RelativePath
}

// handleServeMedia serves a stored file with a one-year cache lifetime
func (s *Server) handleServeMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]

		served, err := s.deps.Store.Open(filename)
		if err != nil {
			if errors.Is(err, media.ErrMediaNotFound) || errors.Is(err, media.ErrInvalidFilename) {
				s.writeError(w, r, apperrors.Wrap(err, apperrors.ErrCodeFileNotFound, "stored media not found").
					WithUserMessage("File not found"))
				return
			}
			s.writeError(w, r, apperrors.Wrap(err, apperrors.ErrCodeServerError, "open stored media").
				WithUserMessage("Server error"))
			return
		}
		defer served.File.Close()

		header := w.Header()
		header.Set("Content-Type", served.ContentType)
		header.Set("Content-Length", strconv.FormatInt(served.Size, 10))
		header.Set("Cache-Control", constants.PermanentCacheControl)
		header.Set("Last-Modified", served.ModTime.UTC().Format(http.TimeFormat))

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		written, err := io.Copy(w, served.File)
		if err != nil {
			s.streamFailed(w, r, written, err)
		}
	}
}

// handlePermanentMedia resolves a provider media ID and stores it permanently
func (s *Server) handlePermanentMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PermanentMediaRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.Struct(req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.deps.Permanence.MakePermanent(r.Context(), req.MediaID)
		if err != nil {
			s.writeError(w, r, apperrors.Wrap(err, apperrors.ErrCodeMediaPermanence, "media permanence failed").
				WithUserMessage("Media could not be stored"))
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
