package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mmcdole/starlight/internal/domain"
)

const chunkSize = 32 * 1024

// Unpacker turns a downloaded compressed file into its usable form.
type Unpacker func(src, dst string) error

// Passthrough moves src to dst unchanged. Decompression of the service's
// container format is left to a real Unpacker.
func Passthrough(src, dst string) error {
	return os.Rename(src, dst)
}

// DownloadManifest fetches the manifest database of version v.
func (c *Client) DownloadManifest(ctx context.Context, v domain.ResourceVersion, dest string, onProgress domain.ProgressFunc) (string, error) {
	reqURL := fmt.Sprintf("%s/dl/%d/manifests/Android_AHigh_SHigh", c.host, v)
	return c.downloadPacked(ctx, reqURL, dest, ".db", onProgress)
}

// DownloadDatabase fetches a generic database resource by hash.
func (c *Client) DownloadDatabase(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc, ext string) (string, error) {
	reqURL := fmt.Sprintf("%s/dl/resources/Generic/%s", c.host, hash)
	return c.downloadPacked(ctx, reqURL, dest, ext, onProgress)
}

// DownloadSound fetches a sound container of the given type ("b", "l", ...).
func (c *Client) DownloadSound(ctx context.Context, soundType, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	reqURL := fmt.Sprintf("%s/dl/resources/Sound/Common/%s/%s", c.host, soundType, hash)
	return c.download(ctx, reqURL, dest, onProgress)
}

// DownloadAsset fetches an asset bundle by hash.
func (c *Client) DownloadAsset(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	reqURL := fmt.Sprintf("%s/dl/resources/High/AssetBundles/Android/%s", c.host, hash)
	return c.download(ctx, reqURL, dest, onProgress)
}

func (c *Client) downloadPacked(ctx context.Context, reqURL, dest, ext string, onProgress domain.ProgressFunc) (string, error) {
	raw, err := c.download(ctx, reqURL, dest, onProgress)
	if err != nil || raw == "" {
		return raw, err
	}
	if ext == "" {
		return raw, nil
	}
	out := raw + ext
	if err := c.unpack(raw, out); err != nil {
		return "", fmt.Errorf("unpack %s: %w", filepath.Base(raw), err)
	}
	return out, nil
}

// download streams reqURL into dest. A 404 or 403 is a clean failure and
// yields an empty path without error.
func (c *Client) download(ctx context.Context, reqURL, dest string, onProgress domain.ProgressFunc) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return "", err
	}

	c.logger.Debug("download", "url", reqURL, "dest", dest)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		c.logger.Warn("resource not available", "url", reqURL, "status", resp.StatusCode)
		return "", nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	name := filepath.Base(dest)
	total := resp.ContentLength
	written, err := copyWithProgress(f, resp.Body, func(n int64) {
		if onProgress != nil {
			onProgress(progressInfo(name, n, total))
		}
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	if onProgress != nil && total <= 0 {
		onProgress(domain.ProgressInfo{Current: written, Max: written, Loading: 100, Name: name})
	}
	return dest, nil
}

func progressInfo(name string, current, total int64) domain.ProgressInfo {
	info := domain.ProgressInfo{Current: current, Max: total, Name: name}
	if total > 0 {
		info.Loading = 100 * float64(current) / float64(total)
	}
	return info
}

func copyWithProgress(dst io.Writer, src io.Reader, onChunk func(written int64)) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			onChunk(written)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
