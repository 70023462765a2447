// Package inference forwards leaf images to the external ML classifier.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"syscall"
	"time"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/internal/models"
)

const (
	// DefaultTimeout покрывает реальное время инференса
	DefaultTimeout = 12 * time.Second

	// FormField имя multipart поля, которое ожидает ML сервис
	FormField = "file"

	// maxResponseSize ограничение на тело ответа ML сервиса
	maxResponseSize = 1 << 20

	predictPath = "/predict"
)

// Public messages
const (
	MsgUnavailable    = "ML Service is temporarily unavailable or timed out."
	MsgAnalysisFailed = "Image analysis failed. Please try again with a clearer image."
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Gateway - единственная точка интеграции с ML сервисом
type Gateway struct {
	logger     *slog.Logger
	httpClient *http.Client
	endpoint   string
}

// NewGateway creates a gateway for baseURL (without the /predict suffix)
func NewGateway(logger *slog.Logger, baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Gateway{
		logger:   logger,
		endpoint: strings.TrimRight(baseURL, "/") + predictPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze отправляет изображение одним POST запросом, без повторов
// Ошибки: apperr.ErrServiceUnavailable (таймаут, отказ в соединении, 503)
// или apperr.ErrAnalysisFailed (все остальное)
func (g *Gateway) Analyze(ctx context.Context, image []byte, filename, contentType string) (*models.Prediction, error) {
	body, formContentType, err := buildForm(image, filename, contentType)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.ErrorContext(ctx, "ML service request failed",
			slog.String("endpoint", g.endpoint),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		if isUnavailable(err) {
			return nil, apperr.Wrap(apperr.ErrServiceUnavailable, MsgUnavailable, err)
		}
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to read ML service response", slog.Any("error", err))
		if isUnavailable(err) {
			return nil, apperr.Wrap(apperr.ErrServiceUnavailable, MsgUnavailable, err)
		}
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.ErrorContext(ctx, "ML service returned error status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(respBody, 256)),
		)
		cause := fmt.Errorf("ml service responded with status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, apperr.Wrap(apperr.ErrServiceUnavailable, MsgUnavailable, cause)
		}
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, cause)
	}

	// Форму ответа не проверяем, только десериализация
	var prediction models.Prediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		g.logger.ErrorContext(ctx, "Failed to decode ML service response", slog.Any("error", err))
		return nil, apperr.Wrap(apperr.ErrAnalysisFailed, MsgAnalysisFailed, err)
	}

	g.logger.DebugContext(ctx, "ML service prediction received",
		slog.String("disease", prediction.Disease),
		slog.Float64("confidence", prediction.Confidence),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &prediction, nil
}

// buildForm собирает multipart тело с одним файлом в поле FormField
func buildForm(image []byte, filename, contentType string) (io.Reader, string, error) {
	if filename == "" {
		filename = "image"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FormField, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}

	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// isUnavailable - таймаут или отказ в соединении
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
