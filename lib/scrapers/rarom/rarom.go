// Package rarom drives the RAR portal's captcha-gated ITP query:
// fetch the landing page, download and solve the captcha, reconstruct
// the query form, submit it and parse the verdict, retrying with a
// fresh captcha whenever the server rejects a guess.
package rarom

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"raritp-backend/lib/ocr"
	"raritp-backend/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/rarom")

// DefaultBaseUrl is the portal's query page.
const DefaultBaseUrl = "https://prog.rarom.ro/rarpol/rarpol.asp"

const (
	maxAttempts    = 3
	defaultBackoff = time.Second * 2
	userAgent      = "Mozilla/5.0 (RAR ITP Checker)"
)

// CaptchaSink receives every downloaded captcha image. Used for
// best-effort debug persistence; it must not block for long.
type CaptchaSink func(vin string, attempt int, image []byte)

type Client struct {
	baseUrl *url.URL
	http    *resty.Client
	solver  ocr.Solver
	sink    CaptchaSink
	backoff time.Duration
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	Solver  ocr.Solver
	// optional
	CaptchaSink CaptchaSink
	// delay between attempts, defaults to 2s
	Backoff time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Solver == nil {
		return nil, fmt.Errorf("a captcha solver is required")
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	backoff := opts.Backoff
	if backoff == 0 {
		backoff = defaultBackoff
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(time.Second * 30)
	// the upstream bot-filters requests missing a browsery header set
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Referer", opts.BaseUrl)
	client.SetHeader("Origin", fmt.Sprintf("%s://%s", baseUrl.Scheme, baseUrl.Host))

	telemetry.InstrumentResty(client, "scrapers/rarom/http")

	return &Client{
		baseUrl: baseUrl,
		http:    client,
		solver:  opts.Solver,
		sink:    opts.CaptchaSink,
		backoff: backoff,
	}, nil
}

// result of one full pipeline attempt. err == nil means success,
// fatal means the loop driver must not retry (cancellation).
type attemptResult struct {
	page  string
	err   error
	fatal bool
}

// Check runs the full query pipeline for one VIN. Each attempt starts
// over from the landing page because captchas are single-use and bound
// to the session that issued them. After the attempt budget is spent,
// the last cause surfaces wrapped in *FetchError.
func (c *Client) Check(ctx context.Context, vin string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "client:Check")
	defer span.End()

	slog.InfoContext(ctx, "starting itp check", "vin", vin)

	var last attemptResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = c.attempt(ctx, vin, attempt)
		if last.err == nil {
			return ParseResult(ctx, last.page), nil
		}
		if last.fatal {
			break
		}

		slog.WarnContext(ctx, "itp check attempt failed",
			"vin", vin, "attempt", attempt, "err", last.err)
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
		case <-time.After(c.backoff):
		}
		if ctx.Err() != nil {
			last = attemptResult{err: ctx.Err(), fatal: true}
			break
		}
	}

	err := &FetchError{VIN: vin, Attempts: maxAttempts, Cause: last.err}
	span.RecordError(err)
	span.SetStatus(codes.Error, "attempts exhausted")
	return Outcome{}, err
}

func (c *Client) attempt(ctx context.Context, vin string, attempt int) attemptResult {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("client:attempt %d", attempt))
	defer span.End()

	// fetch the landing page; it carries both the form and a fresh captcha
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.baseUrl.String())
	if err != nil {
		return c.fail(ctx, &TransportError{Op: "fetch landing page", Cause: err})
	}
	if res.StatusCode() != http.StatusOK {
		return c.fail(ctx, &TransportError{Op: "fetch landing page", StatusCode: res.StatusCode()})
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return c.fail(ctx, fmt.Errorf("parse landing page: %w", err))
	}

	// download the captcha image
	src := doc.Find(fmt.Sprintf("img#%s", captchaImageId)).AttrOr("src", "")
	if src == "" {
		return c.fail(ctx, ErrCaptchaNotFound)
	}
	capRes, err := c.http.R().
		SetContext(ctx).
		Get(c.resolveCaptchaUrl(src))
	if err != nil {
		return c.fail(ctx, &TransportError{Op: "download captcha", Cause: err})
	}
	if capRes.StatusCode() != http.StatusOK {
		return c.fail(ctx, &TransportError{Op: "download captcha", StatusCode: capRes.StatusCode()})
	}
	image := capRes.Body()

	if c.sink != nil {
		c.sink(vin, attempt, image)
	}

	// solve it
	guess, err := c.solver.Solve(ctx, image)
	if err != nil {
		return c.fail(ctx, err)
	}
	code := ocr.DigitsOnly(guess)
	if len(code) != ocr.ExpectedLength {
		return c.fail(ctx, fmt.Errorf("captcha guess %q is not %d digits", guess, ocr.ExpectedLength))
	}

	// rebuild the form around the solved code and submit it
	postUrl, fields, err := BuildForm(doc, c.baseUrl, vin, code)
	if err != nil {
		return c.fail(ctx, err)
	}
	slog.DebugContext(ctx, "submitting query form",
		"vin", vin, "attempt", attempt, "url", postUrl, "captcha", code)

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(postUrl)
	if err != nil {
		return c.fail(ctx, &TransportError{Op: "submit query form", Cause: err})
	}
	if res.StatusCode() != http.StatusOK {
		return c.fail(ctx, &TransportError{Op: "submit query form", StatusCode: res.StatusCode()})
	}

	// a 200 can still carry a server-side captcha rejection
	page := res.String()
	if strings.Contains(strings.ToLower(page), rejectedMarker) {
		return c.fail(ctx, ErrSubmissionRejected)
	}

	return attemptResult{page: page}
}

func (c *Client) fail(ctx context.Context, err error) attemptResult {
	return attemptResult{err: err, fatal: ctx.Err() != nil}
}

// captcha sources are usually relative ("vcode.asp?..."); absolute
// URLs pass through, anything else resolves against the landing page's
// directory.
func (c *Client) resolveCaptchaUrl(src string) string {
	if strings.HasPrefix(src, "http") {
		return src
	}
	return pageDir(c.baseUrl) + "/" + strings.TrimPrefix(src, "/")
}
