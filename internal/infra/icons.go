package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// IconFetcher downloads and caches the widget-menu icons, one per widget
// kind. Icons are optional decoration: every failure is non-fatal and the
// menu falls back to text labels.
type IconFetcher struct {
	baseURL  string
	basePath string
	client   *http.Client
}

// NewIconFetcher creates a new IconFetcher. baseURL is the CDN prefix icons
// are served from; an empty baseURL disables fetching.
func NewIconFetcher(baseURL string) (*IconFetcher, error) {
	path, err := getAssetsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assets path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconFetcher{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// FetchIcon downloads the icon for a widget kind if it doesn't exist.
// Returns the local file path on success.
// Images are resized to 24x24 pixels for consistent menu display.
func (f *IconFetcher) FetchIcon(kind string) (string, error) {
	if f.baseURL == "" {
		return "", nil
	}

	safeKind := sanitizeKind(kind)
	if safeKind == "" {
		return "", fmt.Errorf("invalid widget kind: %s", kind)
	}

	fileName := strings.ToLower(safeKind) + ".png"
	filePath := filepath.Join(f.basePath, fileName)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	url := fmt.Sprintf("%s/%s.png", f.baseURL, strings.ToLower(safeKind))

	resp, err := f.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize to 24x24 with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, 24, 24, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// Enabled reports whether a CDN base URL is configured.
func (f *IconFetcher) Enabled() bool {
	return f.baseURL != ""
}

// IconPath returns the local path for a widget kind's icon.
func (f *IconFetcher) IconPath(kind string) string {
	return filepath.Join(f.basePath, strings.ToLower(kind)+".png")
}

func getAssetsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "DashGo", "assets", "icons"), nil
}

func sanitizeKind(kind string) string {
	res := make([]rune, 0, len(kind))
	for _, r := range kind {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
