package resolver

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	kkdai "github.com/kkdai/youtube/v2"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

const watchURL = "https://www.youtube.com/watch?v="

type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
}

// SearchFunc returns the best match for a free-text query.
type SearchFunc func(ctx context.Context, query string) (*Result, error)

// YouTube resolves YouTube links natively and, when an API key is
// configured, search queries through the YouTube Data API.
type YouTube struct {
	videos videoClient
	search SearchFunc
}

// NewYouTube creates a YouTube resolver. Search is disabled without an API key.
func NewYouTube(ctx context.Context, apiKey string) (*YouTube, error) {
	y := &YouTube{videos: &kkdai.Client{}}
	if apiKey == "" {
		return y, nil
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	y.search = apiSearch(svc)
	return y, nil
}

// Resolve implements Resolver
func (y *YouTube) Resolve(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if !IsURL(input) {
		if y.search == nil {
			return nil, ErrUnsupported
		}
		return y.search(ctx, input)
	}

	if !isYouTubeLink(input) {
		return nil, ErrUnsupported
	}
	video, err := y.videos.GetVideoContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if video.Title == "" {
		return nil, fmt.Errorf("%w: video %s has no title", ErrInvalidSource, video.ID)
	}
	return &Result{Title: video.Title, URL: input}, nil
}

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

func isYouTubeLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

func apiSearch(svc *youtube.Service) SearchFunc {
	return func(ctx context.Context, query string) (*Result, error) {
		response, err := svc.Search.List([]string{"id", "snippet"}).
			Q(query).
			Type("video").
			MaxResults(1).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("youtube search failed: %w", err)
		}
		return firstVideo(response)
	}
}

func firstVideo(response *youtube.SearchListResponse) (*Result, error) {
	for _, item := range response.Items {
		if item.Id == nil || item.Id.Kind != "youtube#video" || item.Id.VideoId == "" {
			continue
		}
		var title string
		if item.Snippet != nil {
			title = strings.TrimSpace(html.UnescapeString(item.Snippet.Title))
		}
		if title == "" {
			return nil, fmt.Errorf("%w: video %s has no title", ErrNoResults, item.Id.VideoId)
		}
		return &Result{Title: title, URL: watchURL + item.Id.VideoId}, nil
	}
	return nil, ErrNoResults
}
