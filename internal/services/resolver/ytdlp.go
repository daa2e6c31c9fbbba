package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

const (
	titleTemplate  = "%(title)s"
	searchTemplate = "%(title)s||%(webpage_url)s"
	searchPrefix   = "ytsearch1:"
)

type commandRunner interface {
	Run(ctx context.Context, args ...string) (*ytdlp.Result, error)
}

// Ytdlp resolves URLs and search queries by asking yt-dlp for metadata.
type Ytdlp struct {
	cookies string
	proxy   string
	command func(printTemplate string) commandRunner
}

// NewYtdlp creates a yt-dlp backed resolver
func NewYtdlp(cookies, proxy string) *Ytdlp {
	y := &Ytdlp{cookies: cookies, proxy: proxy}
	y.command = y.build
	return y
}

func (y *Ytdlp) build(printTemplate string) commandRunner {
	cmd := ytdlp.New().
		Print(printTemplate).
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if y.cookies != "" {
		cmd.Cookies(y.cookies)
	}
	if y.proxy != "" {
		cmd.Proxy(y.proxy)
	}
	return cmd
}

// Resolve implements Resolver
func (y *Ytdlp) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	if IsURL(input) {
		return y.resolveURL(ctx, input)
	}
	return y.search(ctx, input)
}

func (y *Ytdlp) resolveURL(ctx context.Context, url string) (*Result, error) {
	res, err := y.command(titleTemplate).Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, describe(res, err))
	}

	title := parseTitle(res.Stdout)
	if title == "" {
		return nil, fmt.Errorf("%w: no title for %s", ErrInvalidSource, url)
	}
	return &Result{Title: title, URL: url}, nil
}

func (y *Ytdlp) search(ctx context.Context, query string) (*Result, error) {
	res, err := y.command(searchTemplate).Run(ctx, searchPrefix+query)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search failed: %s", describe(res, err))
	}
	return parseSearch(res.Stdout)
}

// parseTitle returns the first non-empty line.
func parseTitle(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// parseSearch reads the first "title||url" line.
func parseSearch(stdout string) (*Result, error) {
	line := parseTitle(stdout)
	if line == "" {
		return nil, ErrNoResults
	}

	idx := strings.LastIndex(line, "||")
	if idx < 0 {
		return nil, fmt.Errorf("%w: unexpected search output %q", ErrNoResults, line)
	}
	title := strings.TrimSpace(line[:idx])
	url := strings.TrimSpace(line[idx+2:])
	if !IsURL(url) {
		return nil, fmt.Errorf("%w: search returned no URL", ErrNoResults)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: search returned no title", ErrNoResults)
	}
	return &Result{Title: title, URL: url}, nil
}

func describe(res *ytdlp.Result, err error) string {
	if res != nil {
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return fmt.Sprintf("%v: %s", err, msg)
		}
	}
	return err.Error()
}
