package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxFeedSize  = 500 * 1024
	maxRetryDelay       = 2 * time.Second
)

// Fetcher downloads feed documents with a deadline and a size cap.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxSize    int64
	retries    int
	retryDelay time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, maxSize int64, retries int) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFeedSize
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		maxSize:    maxSize,
		retries:    retries,
		retryDelay: 250 * time.Millisecond,
	}
}

// NewHTTPClient builds the client used for feed fetches. Connections to
// private or link-local addresses are refused at dial time; loopback is
// allowed for local development.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivateAddresses,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}
}

func refusePrivateAddresses(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip != nil && isPrivateIP(ip) && !ip.IsLoopback() {
		return fmt.Errorf("refusing to connect to private address %s", host)
	}
	return nil
}

var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		networks = append(networks, network)
	}
	return networks
}

// Run fetches url. All attempts share one deadline; transport errors and
// 5xx responses are retried, everything else fails immediately.
func (f *Fetcher) Run(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.retryDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			slog.Debug("Retrying feed fetch", "url", url, "attempt", attempt, "delay", delay.String())

			select {
			case <-timeoutCtx.Done():
				return nil, f.timeoutError(ctx, lastErr)
			case <-time.After(delay):
			}
		}

		data, retryable, err := f.fetchOnce(timeoutCtx, url)
		if err == nil {
			return data, nil
		}
		if timeoutCtx.Err() != nil {
			return nil, f.timeoutError(ctx, err)
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (f *Fetcher) timeoutError(parent context.Context, err error) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return newError(ErrFetchFailed, parent.Err(), "Feed fetch cancelled")
	}
	return newError(ErrFetchTimeout, err, "Feed fetch timed out after %s", f.timeout)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, newError(ErrInvalidURLFormat, err, "Invalid URL format")
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, true, newError(ErrFetchFailed, err, "Failed to fetch feed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchErr := newError(ErrFetchFailed, nil, "Failed to fetch feed: %s", resp.Status)
		fetchErr.StatusCode = resp.StatusCode
		return nil, resp.StatusCode >= 500, fetchErr
	}

	if resp.ContentLength > f.maxSize {
		return nil, false, f.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, true, newError(ErrFetchFailed, err, "Failed to read feed: %v", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, false, f.tooLarge()
	}

	return data, false, nil
}

func (f *Fetcher) tooLarge() *Error {
	return newError(ErrFeedTooLarge, nil, "Feed too large (max %dKB)", f.maxSize/1024)
}
