package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	// HeaderIdempotencyKey — ключ повтора для POST /checkout.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay выставляется на ответах из кеша.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
)

// requestLogger пишет access-лог через logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
			"remote":      r.RemoteAddr,
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Info("http request")
	})
}

// idempotent отдаёт сохранённый ответ при повторе того же Idempotency-Key
// тем же покупателем с тем же телом. Ключ без заголовка не требуется.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		repo := s.deps.Idempotency
		rawKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if repo == nil || rawKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(rawKey) > maxIdempotencyKeyLen {
			s.writeError(w, r, fmt.Errorf("idempotency key too long: %w", domain.ErrInvalidRequest))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, r, fmt.Errorf("read body: %v: %w", err, domain.ErrInvalidRequest))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		session := mustSession(r)
		key := session.UserID + ":" + rawKey
		hash := requestHash(r.Method, r.URL.Path, body)

		existing, err := repo.CreateProcessing(r.Context(), key, hash, s.clock().Add(s.idempotencyTTL))
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) && existing.Completed():
			s.replay(w, r, existing)
			return
		default:
			s.writeError(w, r, err)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		var captured bytes.Buffer
		ww.Tee(&captured)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		mark := repo.MarkDone
		if status >= http.StatusInternalServerError {
			mark = repo.MarkFailed
		}
		// ответ уже отправлен; запрос мог быть отменён клиентом
		if err := mark(context.WithoutCancel(r.Context()), key, captured.Bytes(), status); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", rawKey).Error("store idempotent response")
		}
	})
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request, record domain.IdempotencyRecord) {
	s.metrics.RecordIdempotencyReplay()
	s.logger.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"status":     record.HTTPStatus,
	}).Info("idempotent replay")

	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderIdempotentReplay, strconv.FormatBool(true))
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
