package mrms

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// gridExtensions are the file suffixes treated as grid payloads.
var gridExtensions = []string{".grib2.gz", ".grib2", ".grib", ".grb"}

// ListingParseError reports a directory listing that could not be read.
type ListingParseError struct {
	URL string
	Err error
}

func (e *ListingParseError) Error() string {
	return fmt.Sprintf("parse listing %s: %v", e.URL, e.Err)
}

func (e *ListingParseError) Unwrap() error { return e.Err }

// parseListing returns the href of every anchor in body, in document order.
func parseListing(body []byte) ([]string, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var hrefs []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			return hrefs, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}

// isGridFile reports whether href names a grid payload.
func isGridFile(href string) bool {
	name := strings.ToLower(path.Base(strings.SplitN(href, "?", 2)[0]))
	for _, ext := range gridExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// pickCandidate prefers a file whose name contains "latest", else the first
// grid file. ok is false when the listing holds no grid files.
func pickCandidate(hrefs []string) (string, bool) {
	var first string
	for _, h := range hrefs {
		if !isGridFile(h) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(h)), "latest") {
			return h, true
		}
		if first == "" {
			first = h
		}
	}
	return first, first != ""
}

// resolve turns href into an absolute URL relative to the listing.
func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
