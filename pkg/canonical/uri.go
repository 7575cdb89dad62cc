package canonical

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	multiSlashRe = regexp.MustCompile(`/+`)
	sha256HexRe  = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// URI canonicalizes a URI for deterministic comparison:
//  1. Scheme and host lowercase.
//  2. Double slashes in the path collapsed.
//  3. Trailing slash stripped (root "/" kept).
//  4. Query parameters sorted by (key, value).
//  5. Fragment dropped.
func URI(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", newError(CodeParse, fmt.Sprintf("invalid URI: %q", uri))
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = normalizePath(parsed.Path)
	parsed.RawQuery = normalizeQuery(parsed.RawQuery)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	path = multiSlashRe.ReplaceAllString(path, "/")
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func normalizeQuery(query string) string {
	if query == "" {
		return ""
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return query
	}
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, pair{k, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.k) + "=" + url.QueryEscape(p.v)
	}
	return strings.Join(parts, "&")
}

// EvidenceURI normalizes an evidence reference URI. gs:// and s3://
// keep bucket-name case (bucket names are case-sensitive on some
// systems) and only normalize the object path; everything else gets the
// full URI canonicalization.
func EvidenceURI(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "gs://") || strings.HasPrefix(ref, "s3://") {
		scheme := ref[:5]
		rest := ref[5:]
		bucket, path, found := strings.Cut(rest, "/")
		if !found {
			return ref, nil
		}
		path = strings.TrimPrefix(normalizePath("/"+path), "/")
		if path == "" {
			return scheme + bucket, nil
		}
		return scheme + bucket + "/" + path, nil
	}
	return URI(ref)
}

// ValidateEvidenceHash reports whether s is a lowercase hex SHA-256.
func ValidateEvidenceHash(s string) bool {
	return sha256HexRe.MatchString(s)
}

// EvidenceHash canonicalizes an evidence content hash: lowercase, any
// 0x prefix stripped, then validated as 64 hex characters.
func EvidenceHash(s string) (string, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if !ValidateEvidenceHash(s) {
		return "", newError(CodeInvalidHash, fmt.Sprintf("invalid evidence hash: %q", s))
	}
	return s, nil
}
