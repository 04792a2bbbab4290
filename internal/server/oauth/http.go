package oauth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize ограничивает размер ответа провайдера
const maxBodySize = 1 << 20

// doJSON выполняет запрос к провайдеру и декодирует JSON ответ
func doJSON(client *http.Client, provider string, req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &UpstreamError{Provider: provider, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &UpstreamError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	return nil
}
