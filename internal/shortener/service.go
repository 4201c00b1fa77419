package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/linkforge/shortener/codegen"
	"github.com/linkforge/shortener/internal/errx"
)

const (
	DefaultCodeLength        = 7
	MaxCodeLength            = 64
	MinCodeLength            = 4
	MaxURLLength             = 2048
	DefaultShortenMaxRetries = 5
)

// Service defines the business logic operations for URL shortening.
type Service interface {
	Shorten(ctx context.Context, originalURL string) (Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	ListWithStats(ctx context.Context) ([]LinkStats, error)
	Aggregate(ctx context.Context) (AggregateStats, error)
}

// service implements the Service interface.
type service struct {
	links             LinkStore
	clicks            ClickCounter
	codeGenerator     codegen.Generator
	codeLength        int
	shortenMaxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator     codegen.Generator
	CodeLength        int
	ShortenMaxRetries int // attempts before giving up on a unique code (default: 5)
}

// NewService creates a new service instance.
func NewService(links LinkStore, clicks ClickCounter, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codeGen := config.CodeGenerator
	if codeGen == nil {
		codeGen = codegen.NewBase62()
	}

	codeLength := config.CodeLength
	if codeLength < MinCodeLength || codeLength > MaxCodeLength {
		codeLength = DefaultCodeLength
	}

	retries := config.ShortenMaxRetries
	if retries <= 0 {
		retries = DefaultShortenMaxRetries
	}

	return &service{
		links:             links,
		clicks:            clicks,
		codeGenerator:     codeGen,
		codeLength:        codeLength,
		shortenMaxRetries: retries,
	}
}

// Shorten creates a new short link for the given URL. Codes are random per
// call, so submitting the same URL twice yields two distinct links. Conflicts
// with existing codes are retried with fresh candidates up to the retry cap.
func (s *service) Shorten(ctx context.Context, originalURL string) (Link, error) {
	const op = "shortener.service.Shorten"

	if err := validateURL(originalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	for range s.shortenMaxRetries {
		code, err := s.codeGenerator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		created, err := s.links.Put(ctx, Link{
			ShortCode:   code,
			OriginalURL: originalURL,
		})
		if err == nil {
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Exhausted,
		fmt.Errorf("could not generate unique short code after %d attempts", s.shortenMaxRetries))
}

// Resolve looks up a code and accounts the click before returning the
// redirect target. The increment is synchronous: if it fails, the whole
// resolution fails, because silently dropping counts is worse than making
// the client retry the redirect.
func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "shortener.service.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.links.Get(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	if _, err := s.clicks.Increment(ctx, code); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	return link.OriginalURL, nil
}

// ListWithStats returns the full catalog, newest links first, each with its
// current click count.
func (s *service) ListWithStats(ctx context.Context) ([]LinkStats, error) {
	const op = "shortener.service.ListWithStats"

	stats, err := s.links.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return stats, nil
}

// Aggregate returns the total link and click counts.
func (s *service) Aggregate(ctx context.Context) (AggregateStats, error) {
	const op = "shortener.service.Aggregate"

	stats, err := s.clicks.Aggregate(ctx)
	if err != nil {
		return AggregateStats{}, errx.E(op, errx.KindOf(err), err)
	}
	return stats, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
