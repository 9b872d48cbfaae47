// Package remote talks to the content-delivery host: version probes, the
// authoritative version check and artifact downloads.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/starlight/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	onlineTimeout  = 3 * time.Second

	userAgent    = "Dalvik/2.1.0 (Linux; U; Android 7.0; Nexus 42 Build/XYZZ1Y)"
	unityVersion = "5.4.5p1"
)

// Options configures a Client.
type Options struct {
	Host     string        // e.g. http://storage.game.starlight-stage.jp
	CheckURL string        // authoritative version check endpoint, empty to disable
	Account  string        // sent with the version check
	Timeout  time.Duration // per-request timeout
	Unpack   Unpacker      // post-processing of compressed downloads
}

// Client implements domain.ProbeOracle, domain.VersionAuthority,
// domain.Downloader and domain.Connectivity over HTTP.
type Client struct {
	host       string
	checkURL   string
	account    string
	unpack     Unpacker
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new content-delivery client
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	unpack := opts.Unpack
	if unpack == nil {
		unpack = Passthrough
	}
	return &Client{
		host:     strings.TrimRight(opts.Host, "/"),
		checkURL: opts.CheckURL,
		account:  opts.Account,
		unpack:   unpack,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// newRequest builds a request carrying the fixed device headers
func (c *Client) newRequest(ctx context.Context, method, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Unity-Version", unityVersion)
	return req, nil
}

// ProbeURL returns the manifest index URL used to test a version.
func (c *Client) ProbeURL(v domain.ResourceVersion) string {
	return fmt.Sprintf("%s/dl/%d/manifests/all_dbmanifest", c.host, v)
}

// Probe reports whether the manifest index of v can be fetched. Any
// network or HTTP error means the version does not exist.
func (c *Client) Probe(ctx context.Context, v domain.ResourceVersion) domain.ProbeResult {
	res := domain.ProbeResult{Version: v}

	req, err := c.newRequest(ctx, http.MethodGet, c.ProbeURL(v))
	if err != nil {
		return res
	}
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("probe failed", "version", v, "error", err)
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Exists = resp.StatusCode >= 200 && resp.StatusCode < 300
	c.logger.Debug("probe", "version", v, "status", resp.StatusCode, "exists", res.Exists)
	return res
}

// checkResponse is the body returned by the version check endpoint
type checkResponse struct {
	DataHeaders struct {
		ResultCode     int    `json:"result_code"`
		RequiredResVer string `json:"required_res_ver"`
	} `json:"data_headers"`
}

// Check asks the version check endpoint for the current resource version.
// It returns 0 when the endpoint is not configured or has no answer.
func (c *Client) Check(ctx context.Context) (domain.ResourceVersion, error) {
	if c.checkURL == "" {
		return 0, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.checkURL)
	if err != nil {
		return 0, err
	}
	if c.account != "" {
		req.Header.Set("X-Account", c.account)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("version check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("version check: unexpected status code: %d", resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("version check: failed to parse response: %w", err)
	}

	if body.DataHeaders.ResultCode == domain.ResultCodeBanned {
		return 0, &domain.ResultCodeError{Code: body.DataHeaders.ResultCode}
	}
	if body.DataHeaders.RequiredResVer == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(body.DataHeaders.RequiredResVer)
	if err != nil {
		return 0, fmt.Errorf("version check: invalid version %q: %w", body.DataHeaders.RequiredResVer, err)
	}
	return domain.ResourceVersion(v), nil
}

// Online reports whether a TCP connection to the host can be opened.
func (c *Client) Online(ctx context.Context) bool {
	u, err := url.Parse(c.host)
	if err != nil || u.Host == "" {
		return false
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	ctx, cancel := context.WithTimeout(ctx, onlineTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Debug("host unreachable", "addr", addr, "error", err)
		return false
	}
	conn.Close()
	return true
}
