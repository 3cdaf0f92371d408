package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/songdl/internal/shared"
)

// OpenRanged issues a GET for url starting at offset.
//
// A 206 reply is positioned at the start of its Content-Range. A 200 reply means the
// server ignored the range and the body starts at 0. A 416 reply means there is
// nothing left to read. Any other status is an [shared.ErrAPIRequest].
func OpenRanged(ctx context.Context, client *http.Client, url string, offset int64, header http.Header) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, total := parseContentRange(resp.Header.Get("Content-Range"))
		if start < 0 {
			start = offset
		}
		return &Stream{Body: resp.Body, Offset: start, Total: total}, nil
	case http.StatusOK:
		var total int64
		if resp.ContentLength > 0 {
			total = resp.ContentLength
		}
		return &Stream{Body: resp.Body, Offset: 0, Total: total}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		_, total := parseContentRange(resp.Header.Get("Content-Range"))
		if total == 0 {
			total = offset
		}
		return &Stream{Body: io.NopCloser(strings.NewReader("")), Offset: offset, Total: total}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: stream returned %s", shared.ErrAPIRequest, resp.Status)
	}
}

// parseContentRange reads "bytes start-end/total" or "bytes */total".
// start is -1 when absent and total is 0 when unknown.
func parseContentRange(v string) (start, total int64) {
	start = -1
	v = strings.TrimSpace(strings.TrimPrefix(v, "bytes"))
	span, size, ok := strings.Cut(v, "/")
	if !ok {
		return start, 0
	}

	if n, err := strconv.ParseInt(size, 10, 64); err == nil {
		total = n
	}
	if from, _, ok := strings.Cut(span, "-"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(from), 10, 64); err == nil {
			start = n
		}
	}
	return start, total
}
