package service

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weblogd/weblogd/internal/domain"
	"github.com/weblogd/weblogd/internal/logger"
)

// Comment confidence scores: 0 = certainly spam, 100 = certainly clean.
const (
	ScoreSpam  = 0
	ScoreClean = 100
)

// SpamMessage is the user-facing error recorded for flagged comments.
const SpamMessage = "comment.validator.akismetMessage"

// Verdict is the explicit three-way outcome of one reputation check.
// Unavailable is mapped to Clean at the call site (fail open): service
// downtime must not block comment submission.
type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictSpam
	VerdictUnavailable
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictSpam:
		return "spam"
	default:
		return "unavailable"
	}
}

const defaultAkismetURL = "https://rest.akismet.com"

// AkismetChecker scores comments against the Akismet comment-check
// endpoint: one synchronous call per comment, no retries.
type AkismetChecker struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAkismetChecker creates a checker. baseURL overrides the public
// endpoint (tests, proxies); empty means the real service. timeout bounds
// the single HTTP call.
func NewAkismetChecker(apiKey, baseURL string, timeout time.Duration) *AkismetChecker {
	if baseURL == "" {
		baseURL = defaultAkismetURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AkismetChecker{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Check submits the comment for scoring and returns the raw verdict.
// Callers decide what Unavailable means.
func (c *AkismetChecker) Check(ctx context.Context, comment domain.Comment, weblog domain.Weblog, entry domain.Entry) Verdict {
	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("blog", weblog.AbsoluteURL)
	form.Set("user_ip", comment.RemoteIP)
	form.Set("user_agent", comment.UserAgent)
	form.Set("referrer", comment.Referrer)
	form.Set("permalink", entry.Permalink)
	form.Set("comment_type", "comment")
	form.Set("comment_author", comment.AuthorName)
	form.Set("comment_author_email", comment.AuthorEmail)
	form.Set("comment_author_url", comment.AuthorURL)
	form.Set("comment_content", comment.Content)

	line, err := c.call(ctx, form)
	if err != nil {
		logger.Log.Warn("spam check unavailable", "weblog", weblog.Handle, "error", err)
		return VerdictUnavailable
	}

	// The endpoint answers with a single token; exactly "true" means spam.
	if line == "true" {
		return VerdictSpam
	}
	return VerdictClean
}

// Score maps the verdict to the comment confidence scale and the messages
// to surface. The fail-open branch is explicit: Unavailable scores clean
// with no message.
func (c *AkismetChecker) Score(ctx context.Context, comment domain.Comment, weblog domain.Weblog, entry domain.Entry) (int, []string) {
	switch c.Check(ctx, comment, weblog, entry) {
	case VerdictSpam:
		return ScoreSpam, []string{SpamMessage}
	case VerdictUnavailable:
		return ScoreClean, nil // fail open
	default:
		return ScoreClean, nil
	}
}

func (c *AkismetChecker) call(ctx context.Context, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/1.1/comment-check", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create spam check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("spam service unreachable: %w", err)
	}
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read spam service response: %w", err)
	}
	return strings.TrimSpace(line), nil
}
