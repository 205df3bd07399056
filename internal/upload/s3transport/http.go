package s3transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

var httpClient = &http.Client{}

// putViaHTTP performs the blob PUT against a presigned URL. The S3 SDK
// has no "PUT via presigned URL" call of its own; a presigned URL is, by
// design, a plain HTTP request.
func putViaHTTP(ctx context.Context, uri string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uri, body)
	if err != nil {
		return classify(fmt.Errorf("s3transport: build PUT request: %w", err))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return classify(fmt.Errorf("s3transport: PUT request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return classify(httpStatusError{status: resp.StatusCode})
	}
	return nil
}

type httpStatusError struct {
	status int
}

func (e httpStatusError) Error() string {
	return fmt.Sprintf("s3transport: PUT returned status %d", e.status)
}
