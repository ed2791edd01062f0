package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// replayBody stitches an already-consumed prefix back onto the unread
// remainder of the original body.
type replayBody struct {
	io.Reader
	io.Closer
}

// bufferRequestBody reads the request body into memory and replaces r.Body
// with a fresh reader over the same bytes, so the downstream handler can
// decode the payload as if it were never touched. On every exit path the
// handler sees the bytes the client sent: a failed or oversize read never
// leaves a truncated body behind.
func bufferRequestBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		// Hand back whatever was read before the failure; the handler
		// observes the same prefix and the same error position.
		r.Body = replayBody{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return nil, fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > maxBytes {
		// Too large to sniff. Rejoin the prefix with the unread remainder
		// and let the handler apply its own size limits to the full stream.
		r.Body = replayBody{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return nil, fmt.Errorf("body exceeds %d bytes", maxBytes)
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
