package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"groovebox/pkg/logger"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrNoResults     = errors.New("no results")
	ErrInvalidSource = errors.New("invalid source")
	ErrUnsupported   = errors.New("input not supported by resolver")
)

var urlPattern = regexp.MustCompile(`(?i)^https?://`)

// IsURL reports whether input is treated as a direct source URL rather than a search query.
func IsURL(input string) bool {
	return urlPattern.MatchString(input)
}

// Result is a resolved playable source.
type Result struct {
	Title string
	URL   string
}

// Resolver turns user input (a URL or free-text query) into a playable source.
type Resolver interface {
	Resolve(ctx context.Context, input string) (*Result, error)
}

// Chain tries each resolver in order and returns the first success.
type Chain struct {
	resolvers []Resolver
	log       *logger.Logger
}

// NewChain creates a resolver chain
func NewChain(log *logger.Logger, resolvers ...Resolver) *Chain {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Chain{resolvers: resolvers, log: log.WithComponent("resolver")}
}

// Resolve implements Resolver
func (c *Chain) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	var errs []error
	for _, r := range c.resolvers {
		res, err := r.Resolve(ctx, input)
		if err == nil {
			c.log.Debug("Resolved input", logger.Fields{
				"resolver": fmt.Sprintf("%T", r),
				"title":    res.Title,
				"url":      res.URL,
			})
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resolution aborted: %w", ctxErr)
		}
		if !errors.Is(err, ErrUnsupported) {
			c.log.Debug("Resolver failed, trying next", logger.Fields{
				"resolver": fmt.Sprintf("%T", r),
				"error":    err.Error(),
			})
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, ErrNoResults
	}
	return nil, errors.Join(errs...)
}
