// Package target validates and parses post URLs.
package target

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
)

var allowedHosts = []string{"facebook.com", "fb.com"}

// Post is one interaction target. ID is empty when the URL carries no
// recognizable post identifier.
type Post struct {
	URL string
	ID  string
}

func (p Post) String() string {
	if p.ID == "" {
		return p.URL
	}
	return fmt.Sprintf("%s (%s)", p.URL, p.ID)
}

type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid post URL %q: %s", e.URL, e.Reason)
}

// Validate checks that rawURL is an http(s) URL on the platform's domain.
func Validate(rawURL string) error {
	_, err := parseURL(rawURL)
	return err
}

func parseURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, &InvalidURLError{URL: rawURL, Reason: "empty"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &InvalidURLError{URL: rawURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &InvalidURLError{URL: rawURL, Reason: "scheme must be http or https"}
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u, nil
		}
	}
	return nil, &InvalidURLError{URL: rawURL, Reason: "not a facebook.com or fb.com address"}
}

var numericID = regexp.MustCompile(`^[0-9]+$`)

// Parse validates rawURL and extracts the post identifier, looking in order
// at a pfbid path segment, the story_fbid and fbid query parameters, and a
// numeric segment after /posts/. The URL itself is kept verbatim.
func Parse(rawURL string) (Post, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return Post{}, err
	}

	post := Post{URL: strings.TrimSpace(rawURL)}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	for _, seg := range segments {
		if strings.HasPrefix(seg, "pfbid") && len(seg) > len("pfbid") {
			post.ID = seg
			return post, nil
		}
	}

	q := u.Query()
	for _, key := range []string{"story_fbid", "fbid"} {
		if v := q.Get(key); v != "" {
			post.ID = v
			return post, nil
		}
	}

	for i, seg := range segments {
		if seg == "posts" && i+1 < len(segments) && numericID.MatchString(segments[i+1]) {
			post.ID = segments[i+1]
			return post, nil
		}
	}

	return post, nil
}

// ContainsID reports whether the post's identifier survives in rawURL.
// A post without an identifier never drifts.
func (p Post) ContainsID(rawURL string) bool {
	if p.ID == "" {
		return true
	}
	return strings.Contains(rawURL, p.ID)
}

// ReadList returns the non-empty trimmed lines of r, skipping # comments.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}
