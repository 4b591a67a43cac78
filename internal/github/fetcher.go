package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/telemetry"
)

// Limits controls how much repository content a snapshot may carry.
type Limits struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// DefaultLimits keeps snapshots small enough for a single evaluator prompt.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:      60,
		MaxFileBytes:  64 * 1024,
		MaxTotalBytes: 512 * 1024,
	}
}

// File is one source file captured in a snapshot.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// Snapshot is the repository content captured for one analysis.
type Snapshot struct {
	Owner            string    `json:"owner"`
	Name             string    `json:"name"`
	Branch           string    `json:"branch"`
	Files            []File    `json:"files"`
	StructureSummary string    `json:"structureSummary"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// Fetcher downloads repository content from the GitHub REST API.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	limits     Limits
}

// NewFetcher constructs a Fetcher. An empty token downgrades to anonymous
// requests, which GitHub rate-limits aggressively.
func NewFetcher(ctx context.Context, baseURL, token string, limits Limits) *Fetcher {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.github.com"
	}
	if limits.MaxFiles <= 0 {
		limits = DefaultLimits()
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if strings.TrimSpace(token) != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = oauth2.NewClient(ctx, src)
		client.Timeout = 30 * time.Second
	}

	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limits:     limits,
	}
}

type treeResponse struct {
	Truncated bool `json:"truncated"`
	Tree      []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size int64  `json:"size"`
	} `json:"tree"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Fetch downloads the repository tree and file contents for a branch,
// applying the filtering and size-cap policy.
func (f *Fetcher) Fetch(ctx context.Context, owner, name, branch string) (Snapshot, error) {
	if owner == "" || name == "" {
		return Snapshot{}, fmt.Errorf("owner and name are required")
	}
	if branch == "" {
		branch = "main"
	}

	tree, err := f.fetchTree(ctx, owner, name, branch)
	if err != nil {
		return Snapshot{}, err
	}

	candidates := make([]string, 0, len(tree.Tree))
	allPaths := make([]string, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		allPaths = append(allPaths, entry.Path)
		if !includePath(entry.Path) {
			continue
		}
		if entry.Size > f.limits.MaxFileBytes {
			continue
		}
		candidates = append(candidates, entry.Path)
	}
	sort.Strings(candidates)

	snap := Snapshot{
		Owner:            owner,
		Name:             name,
		Branch:           branch,
		StructureSummary: buildStructureSummary(allPaths),
		FetchedAt:        time.Now().UTC(),
	}

	var totalBytes int64
	for _, p := range candidates {
		if len(snap.Files) >= f.limits.MaxFiles || totalBytes >= f.limits.MaxTotalBytes {
			break
		}
		content, err := f.fetchFile(ctx, owner, name, branch, p)
		if err != nil {
			// A single unreadable file should not sink the snapshot.
			telemetry.Error("github.fetch_file", map[string]any{
				"owner": owner,
				"repo":  name,
				"path":  p,
				"error": err.Error(),
			})
			continue
		}
		if int64(len(content)) > f.limits.MaxFileBytes {
			continue
		}
		totalBytes += int64(len(content))
		snap.Files = append(snap.Files, File{
			Path:     p,
			Content:  content,
			Language: languageForPath(p),
		})
	}

	if len(snap.Files) == 0 {
		return Snapshot{}, fmt.Errorf("repository %s/%s@%s has no fetchable source files", owner, name, branch)
	}
	return snap, nil
}

func (f *Fetcher) fetchTree(ctx context.Context, owner, name, branch string) (treeResponse, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		f.baseURL, url.PathEscape(owner), url.PathEscape(name), url.PathEscape(branch))

	var tree treeResponse
	if err := f.getJSON(ctx, endpoint, &tree); err != nil {
		return treeResponse{}, fmt.Errorf("fetch tree %s/%s@%s: %w", owner, name, branch, err)
	}
	return tree, nil
}

func (f *Fetcher) fetchFile(ctx context.Context, owner, name, branch, filePath string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		f.baseURL, url.PathEscape(owner), url.PathEscape(name),
		escapePath(filePath), url.QueryEscape(branch))

	var content contentResponse
	if err := f.getJSON(ctx, endpoint, &content); err != nil {
		return "", err
	}
	if content.Encoding != "base64" {
		return content.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(decoded), nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api http status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

var skippedDirs = map[string]struct{}{
	".git":         {},
	".github":      {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
}

var skippedFiles = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"go.sum":            {},
	"Cargo.lock":        {},
	"poetry.lock":       {},
}

var languageByExt = map[string]string{
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".sql":   "sql",
	".sh":    "shell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
}

func includePath(p string) bool {
	for _, segment := range strings.Split(path.Dir(p), "/") {
		if _, skip := skippedDirs[segment]; skip {
			return false
		}
	}
	base := path.Base(p)
	if _, skip := skippedFiles[base]; skip {
		return false
	}
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		// Extensionless files like Makefile and Dockerfile still matter.
		switch base {
		case "Makefile", "Dockerfile", "LICENSE", "Procfile":
			return true
		}
		return false
	}
	_, known := languageByExt[ext]
	return known
}

func languageForPath(p string) string {
	return languageByExt[strings.ToLower(path.Ext(p))]
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func buildStructureSummary(paths []string) string {
	sort.Strings(paths)
	const maxListed = 200
	var b strings.Builder
	for i, p := range paths {
		if i >= maxListed {
			fmt.Fprintf(&b, "... and %d more files\n", len(paths)-maxListed)
			break
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return b.String()
}
