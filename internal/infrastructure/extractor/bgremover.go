package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/psms-tech/go-backend/pkg/e"
)

// maxRemoverResponse ограничивает размер ответа сервиса удаления фона.
const maxRemoverResponse = 32 << 20

// BackgroundRemover вырезает объект с фотографии.
type BackgroundRemover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
}

// RembgClient: клиент HTTP-сервера rembg (POST /api/remove, поле file, ответ PNG).
type RembgClient struct {
	url    string
	client *http.Client
}

func NewRembgClient(baseURL string, timeout time.Duration) *RembgClient {
	return &RembgClient{
		url:    baseURL + "/api/remove",
		client: &http.Client{Timeout: timeout},
	}
}

func (r *RembgClient) Remove(ctx context.Context, data []byte) ([]byte, error) {
	const op = "RembgClient.Remove"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "image")
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, e.Wrap(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &body)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Wrap(op, fmt.Errorf("unexpected status %s", resp.Status))
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoverResponse))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return out, nil
}
