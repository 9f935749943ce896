package git

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform identifies the code host behind a remote.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// RepoInfo is a remote URL broken into its parts.
type RepoInfo struct {
	Platform Platform
	Scheme   string
	Host     string // e.g. "github.com" or "gitlab.mycompany.com"
	Owner    string // GitLab owners may contain nested groups
	Repo     string
	RawURL   string
}

// Slug returns "owner/repo".
func (i RepoInfo) Slug() string { return i.Owner + "/" + i.Repo }

// BaseURL returns the web root of the host, e.g. "https://gitlab.example.com".
func (i RepoInfo) BaseURL() string {
	scheme := i.Scheme
	if scheme != "http" {
		scheme = "https"
	}
	return scheme + "://" + i.Host
}

// ParseRepoURL parses HTTPS, ssh:// and scp-style (git@host:owner/repo)
// remotes.
func ParseRepoURL(rawURL string) (RepoInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	normalized := rawURL
	if isSCPLike(rawURL) {
		normalized = normaliseSSH(rawURL)
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("invalid remote URL %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return RepoInfo{}, fmt.Errorf("remote URL %q has no host", rawURL)
	}
	platform, err := detectPlatform(host)
	if err != nil {
		return RepoInfo{}, err
	}

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")

	info := RepoInfo{Platform: platform, Scheme: u.Scheme, Host: host, RawURL: rawURL}
	switch platform {
	case PlatformGitHub:
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return RepoInfo{}, fmt.Errorf("github URL must have owner and repo: %q", rawURL)
		}
		info.Owner, info.Repo = parts[0], parts[1]
	case PlatformGitLab:
		if len(parts) < 2 || parts[len(parts)-1] == "" {
			return RepoInfo{}, fmt.Errorf("gitlab URL must have at least namespace and repo: %q", rawURL)
		}
		info.Owner = strings.Join(parts[:len(parts)-1], "/")
		info.Repo = parts[len(parts)-1]
	}
	return info, nil
}

func detectPlatform(host string) (Platform, error) {
	switch {
	case host == "github.com" || strings.HasSuffix(host, ".github.com") || strings.Contains(host, "github"):
		return PlatformGitHub, nil
	case host == "gitlab.com" || strings.Contains(host, "gitlab"):
		return PlatformGitLab, nil
	default:
		return "", fmt.Errorf("cannot determine platform from host %q: expected a github or gitlab domain", host)
	}
}

// isSCPLike matches user@host:path without a scheme.
func isSCPLike(s string) bool {
	if strings.Contains(s, "://") {
		return false
	}
	at := strings.Index(s, "@")
	colon := strings.Index(s, ":")
	return at >= 0 && colon > at
}

func normaliseSSH(s string) string {
	s = s[strings.Index(s, "@")+1:]
	s = strings.Replace(s, ":", "/", 1)
	return "ssh://" + s
}
