package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client looks passwords up against a k-anonymity breach range API.
// Only the first five characters of the SHA-1 digest ever leave the
// process; the response is scanned for the remaining suffix locally.
type Client struct {
	baseURL    string
	httpClient *http.Client
	failOpen   bool
	logger     *zap.Logger
}

// NewClient constructs a breach lookup client. A nil http.Client gets a
// short default timeout; lookups must never stall a login.
func NewClient(baseURL string, client *http.Client, failOpen bool, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		failOpen:   failOpen,
		logger:     logger,
	}
}

// IsBreached reports whether the password appears in the breach corpus.
// On any transport or service failure the check fails open: it returns
// (false, nil) and logs, because login availability outranks this
// supplementary signal. With fail-open disabled the error propagates.
func (c *Client) IsBreached(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(fmt.Sprintf("%x", sum))
	prefix, suffix := digest[:5], digest[5:]

	count, err := c.lookup(ctx, prefix, suffix)
	if err != nil {
		if c.failOpen {
			c.logger.Warn("breach check unavailable, failing open", zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}

func (c *Client) lookup(ctx context.Context, prefix, suffix string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("build range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("range request failed: status=%d", resp.StatusCode)
	}

	// Response body is newline-delimited "SUFFIX:COUNT" pairs.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		candidate, countRaw, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(candidate, suffix) {
			var count int64
			if _, err := fmt.Sscanf(strings.TrimSpace(countRaw), "%d", &count); err != nil {
				return 1, nil
			}
			return count, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read range response: %w", err)
	}
	return 0, nil
}
