// Package cookies implements an http.CookieJar backed by a Netscape cookie
// file, the format browser export extensions produce.
package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrNotNetscape = errors.New("not a netscape cookie file")

const (
	header         = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// Cookie is one line of a Netscape cookie file. A zero Expires is a session
// cookie.
type Cookie struct {
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	Expires  time.Time
	Name     string
	Value    string
	HTTPOnly bool
}

func (c *Cookie) key() string {
	return c.Domain + "\x00" + c.Path + "\x00" + c.Name
}

func (c *Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// Parse reads a Netscape cookie file. Unless force is set the file must
// start with the Netscape header and every cookie line must have seven
// tab-separated fields.
func Parse(r io.Reader, force bool) ([]*Cookie, error) {
	sc := bufio.NewScanner(r)
	var out []*Cookie
	lineNum := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		lineNum++
		if lineNum == 1 && !force && !isHeader(line) {
			return nil, ErrNotNetscape
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			if force {
				continue
			}
			return nil, fmt.Errorf("line %d is not valid", lineNum)
		}

		c := &Cookie{
			Domain:   strings.ToLower(strings.TrimPrefix(fields[0], ".")),
			HostOnly: !strings.HasPrefix(fields[0], "."),
			Path:     fields[2],
			Secure:   fields[3] == "TRUE",
			Name:     unescape(fields[5]),
			Value:    unescape(fields[6]),
			HTTPOnly: httpOnly,
		}
		if sec, err := strconv.ParseInt(fields[4], 10, 64); err == nil && sec > 0 {
			c.Expires = time.Unix(sec, 0)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if lineNum == 0 && !force {
		return nil, ErrNotNetscape
	}
	return out, nil
}

func isHeader(line string) bool {
	return strings.HasPrefix(line, header) || strings.HasPrefix(line, "# HTTP Cookie File")
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// Write serialises cookies in Netscape format.
func Write(w io.Writer, list []*Cookie) error {
	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString(header + "\n# This is a generated file! Do not edit.\n\n")
	for _, c := range list {
		domain := c.Domain
		if !c.HostOnly {
			domain = "." + domain
		}
		if c.HTTPOnly {
			domain = httpOnlyPrefix + domain
		}
		expires := "0"
		if !c.Expires.IsZero() {
			expires = strconv.FormatInt(c.Expires.Unix(), 10)
		}
		fields := []string{
			domain,
			boolField(!c.HostOnly),
			c.Path,
			boolField(c.Secure),
			expires,
			url.PathEscape(c.Name),
			url.PathEscape(c.Value),
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Jar is an http.CookieJar holding the cookies of one file.
type Jar struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	cookies map[string]*Cookie
	dirty   bool
}

// Load reads path into a new jar. A missing file yields an empty jar that
// Save will create.
func Load(path string, force bool, logger *zap.Logger) (*Jar, error) {
	j := &Jar{path: path, logger: logger, now: time.Now, cookies: make(map[string]*Cookie)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("cookie file not found, starting empty", zap.String("path", path))
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening cookie file: %w", err)
	}
	defer func() { _ = f.Close() }()

	list, err := Parse(f, force)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, c := range list {
		j.cookies[c.key()] = c
	}
	logger.Debug("loaded cookies", zap.String("path", path), zap.Int("count", len(list)))
	return j, nil
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	host := canonicalHost(u.Hostname())
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	now := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	var matched []*Cookie
	for _, c := range j.cookies {
		if c.expired(now) || !domainMatch(c, host) || !pathMatch(c.Path, path) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		matched = append(matched, c)
	}
	// Longer paths first, as browsers send them.
	sort.SliceStable(matched, func(a, b int) bool {
		if len(matched[a].Path) != len(matched[b].Path) {
			return len(matched[a].Path) > len(matched[b].Path)
		}
		return matched[a].Name < matched[b].Name
	})

	out := make([]*http.Cookie, 0, len(matched))
	for _, c := range matched {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := canonicalHost(u.Hostname())
	now := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, hc := range cookies {
		c := &Cookie{
			Domain:   host,
			HostOnly: true,
			Path:     hc.Path,
			Secure:   hc.Secure,
			Name:     hc.Name,
			Value:    hc.Value,
			HTTPOnly: hc.HttpOnly,
		}
		if hc.Domain != "" {
			d := canonicalHost(strings.TrimPrefix(hc.Domain, "."))
			if d != host && !strings.HasSuffix(host, "."+d) {
				j.logger.Debug("rejecting cookie for foreign domain", zap.String("domain", d), zap.String("host", host))
				continue
			}
			c.Domain = d
			c.HostOnly = false
		}
		if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
			c.Path = "/"
		}
		switch {
		case hc.MaxAge < 0:
			c.Expires = now
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		case !hc.Expires.IsZero():
			c.Expires = hc.Expires
		}

		if c.expired(now) {
			if _, ok := j.cookies[c.key()]; ok {
				delete(j.cookies, c.key())
				j.dirty = true
			}
			continue
		}
		if old, ok := j.cookies[c.key()]; ok && *old == *c {
			continue
		}
		j.cookies[c.key()] = c
		j.dirty = true
	}
}

// Save writes the jar back to its file when it changed since loading.
func (j *Jar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.dirty {
		return nil
	}

	keys := make([]string, 0, len(j.cookies))
	for k := range j.cookies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]*Cookie, 0, len(keys))
	for _, k := range keys {
		list = append(list, j.cookies[k])
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0750); err != nil {
		return fmt.Errorf("creating cookie dir: %w", err)
	}
	tmpPath := j.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	err = Write(f, list)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing cookies: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, j.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	j.dirty = false
	j.logger.Debug("saved cookies", zap.String("path", j.path), zap.Int("count", len(list)))
	return nil
}

func canonicalHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(h), ".")
}

func domainMatch(c *Cookie, host string) bool {
	if c.HostOnly {
		return host == c.Domain
	}
	return host == c.Domain || strings.HasSuffix(host, "."+c.Domain)
}

func pathMatch(cookiePath, reqPath string) bool {
	if cookiePath == "" || cookiePath == "/" || cookiePath == reqPath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}
