package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/provider"
)

const defaultMediaMIME = "video/mp4"

// ErrMediaTooLarge is returned when remote media exceeds the size limit.
var ErrMediaTooLarge = errors.New("media too large")

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// ResolveLocalMedia maps a non-remote media reference onto a file inside
// root, the upload directory. The request layer's media routes
// (/videos/<name>, /api/v1/videos/<name>) name files relative to root;
// any other reference is a path that must already lie within root.
// References escaping root are rejected as validation errors.
func ResolveLocalMedia(root, ref string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", provider.Permanent(fmt.Errorf("media root %q: %w", root, err))
	}

	var candidate string
	switch {
	case strings.HasPrefix(ref, "/api/v1/videos/"):
		candidate = filepath.Join(rootAbs, filepath.FromSlash(strings.TrimPrefix(ref, "/api/v1/videos/")))
	case strings.HasPrefix(ref, "/videos/"):
		candidate = filepath.Join(rootAbs, filepath.FromSlash(strings.TrimPrefix(ref, "/videos/")))
	default:
		candidate, err = filepath.Abs(filepath.FromSlash(ref))
		if err != nil {
			return "", provider.Permanent(fmt.Errorf("media path %q: %w", ref, domain.ErrValidation))
		}
	}

	rel, err := filepath.Rel(rootAbs, candidate)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", provider.Permanent(fmt.Errorf("media path %q is outside %s: %w", ref, root, domain.ErrValidation))
	}
	return candidate, nil
}

// download fetches url into a temporary file and returns its path and
// content type. Bodies larger than limit bytes are rejected. The caller
// removes the file.
func download(ctx context.Context, client *http.Client, url string, limit int64) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", provider.Permanent(fmt.Errorf("build media request: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("download media: status %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", "", provider.Permanent(err)
		}
		return "", "", err
	}
	if resp.ContentLength > limit {
		return "", "", provider.Permanent(fmt.Errorf("download media: %d bytes: %w", resp.ContentLength, ErrMediaTooLarge))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = defaultMediaMIME
	}
	ext := ".mp4"
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		ext = exts[0]
	}

	tmp, err := os.CreateTemp("", "audiencesim-media-*"+ext)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("write media: %w", err)
	}
	if n > limit {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", provider.Permanent(fmt.Errorf("download media: over %d bytes: %w", limit, ErrMediaTooLarge))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("close media: %w", err)
	}
	return tmp.Name(), mediaType, nil
}

// upload stages ref with the Files API and waits until it is usable.
func (p *Provider) upload(ctx context.Context, ref, mimeType string) (*genai.File, error) {
	var path string
	if IsRemote(ref) {
		tmp, detected, err := download(ctx, p.media, ref, p.maxMediaBytes)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		path = tmp
		if mimeType == "" {
			mimeType = detected
		}
	} else {
		local, err := ResolveLocalMedia(p.mediaDir, ref)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(local); err != nil {
			return nil, provider.Permanent(fmt.Errorf("media file: %w", err))
		}
		path = local
	}
	if mimeType == "" {
		mimeType = defaultMediaMIME
	}

	file, err := p.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	p.logger.Info("media uploaded", slog.String("file", file.Name), slog.String("mime_type", mimeType))

	return p.waitActive(ctx, file)
}

// waitActive polls the file until remote processing finishes.
func (p *Provider) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		next, err := p.files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("poll media %s: %w", file.Name, err)
		}
		file = next
	}

	if file.State == genai.FileStateFailed {
		return nil, provider.Permanent(fmt.Errorf("media processing failed for %s", file.Name))
	}
	return file, nil
}
