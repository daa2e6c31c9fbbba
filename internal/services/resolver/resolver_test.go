package resolver

import (
	"context"
	"errors"
	"testing"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	youtube "google.golang.org/api/youtube/v3"
)

type fakeRunner struct {
	stdout   string
	stderr   string
	err      error
	template string
	args     []string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (*ytdlp.Result, error) {
	f.args = args
	return &ytdlp.Result{Stdout: f.stdout, Stderr: f.stderr}, f.err
}

func newFakeYtdlp(runner *fakeRunner) *Ytdlp {
	return &Ytdlp{command: func(tmpl string) commandRunner {
		runner.template = tmpl
		return runner
	}}
}

type fakeResolver struct {
	result *Result
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, input string) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://youtu.be/abc"))
	assert.True(t, IsURL("http://example.com/a.mp3"))
	assert.False(t, IsURL("never gonna give you up"))
	assert.False(t, IsURL("ftp://example.com/file"))
	assert.False(t, IsURL(" https://leading.space"))
	assert.True(t, IsURL("HTTPS://youtu.be/abc"))
	assert.True(t, IsURL("Http://example.com"))
}

func TestYtdlp_ResolveURL(t *testing.T) {
	runner := &fakeRunner{stdout: "Some Song\n"}
	y := newFakeYtdlp(runner)

	res, err := y.Resolve(context.Background(), "https://example.com/watch?v=1")
	require.NoError(t, err)
	assert.Equal(t, "Some Song", res.Title)
	assert.Equal(t, "https://example.com/watch?v=1", res.URL)
	assert.Equal(t, titleTemplate, runner.template)
	assert.Equal(t, []string{"https://example.com/watch?v=1"}, runner.args)
}

func TestYtdlp_ResolveURLFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: "ERROR: Unsupported URL"}
	y := newFakeYtdlp(runner)

	_, err := y.Resolve(context.Background(), "https://example.com/nothing")
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.Contains(t, err.Error(), "Unsupported URL")

	runner.err = nil
	runner.stdout = "\n"
	_, err = y.Resolve(context.Background(), "https://example.com/nothing")
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestYtdlp_Search(t *testing.T) {
	runner := &fakeRunner{stdout: "Rick Astley - Never Gonna Give You Up||https://www.youtube.com/watch?v=dQw4w9WgXcQ\n"}
	y := newFakeYtdlp(runner)

	res, err := y.Resolve(context.Background(), "  never gonna  ")
	require.NoError(t, err)
	assert.Equal(t, "Rick Astley - Never Gonna Give You Up", res.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", res.URL)
	assert.Equal(t, searchTemplate, runner.template)
	assert.Equal(t, []string{"ytsearch1:never gonna"}, runner.args)
}

func TestYtdlp_EmptyInput(t *testing.T) {
	y := newFakeYtdlp(&fakeRunner{})
	_, err := y.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseSearch(t *testing.T) {
	_, err := parseSearch("")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = parseSearch("only a title")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = parseSearch("title||NA")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = parseSearch("||https://x.test/v")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = parseSearch("   ||https://x.test/v")
	assert.ErrorIs(t, err, ErrNoResults)

	res, err := parseSearch("a || b||https://x.test/v")
	require.NoError(t, err)
	assert.Equal(t, "a || b", res.Title)
	assert.Equal(t, "https://x.test/v", res.URL)
}

type fakeVideos struct {
	video *kkdai.Video
	err   error
	calls int
}

func (f *fakeVideos) GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error) {
	f.calls++
	return f.video, f.err
}

func TestYouTube_ResolveLink(t *testing.T) {
	videos := &fakeVideos{video: &kkdai.Video{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up"}}
	y := &YouTube{videos: videos}

	res, err := y.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", res.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", res.URL)
}

func TestYouTube_Unsupported(t *testing.T) {
	videos := &fakeVideos{}
	y := &YouTube{videos: videos}

	_, err := y.Resolve(context.Background(), "https://soundcloud.com/artist/track")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = y.Resolve(context.Background(), "a search query")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Zero(t, videos.calls)
}

func TestYouTube_SearchFunc(t *testing.T) {
	y := &YouTube{
		videos: &fakeVideos{},
		search: func(ctx context.Context, query string) (*Result, error) {
			return &Result{Title: "found " + query, URL: watchURL + "x"}, nil
		},
	}

	res, err := y.Resolve(context.Background(), "lofi")
	require.NoError(t, err)
	assert.Equal(t, "found lofi", res.Title)
}

func TestFirstVideo(t *testing.T) {
	response := &youtube.SearchListResponse{Items: []*youtube.SearchResult{
		{Id: &youtube.ResourceId{Kind: "youtube#channel", ChannelId: "c"}},
		{Id: &youtube.ResourceId{Kind: "youtube#video", VideoId: "v1"}, Snippet: &youtube.SearchResultSnippet{Title: "Rock &amp; Roll"}},
	}}

	res, err := firstVideo(response)
	require.NoError(t, err)
	assert.Equal(t, "Rock & Roll", res.Title)
	assert.Equal(t, watchURL+"v1", res.URL)

	_, err = firstVideo(&youtube.SearchListResponse{})
	assert.ErrorIs(t, err, ErrNoResults)

	untitled := &youtube.SearchListResponse{Items: []*youtube.SearchResult{
		{Id: &youtube.ResourceId{Kind: "youtube#video", VideoId: "v2"}, Snippet: &youtube.SearchResultSnippet{Title: ""}},
	}}
	_, err = firstVideo(untitled)
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = firstVideo(&youtube.SearchListResponse{Items: []*youtube.SearchResult{
		{Id: &youtube.ResourceId{Kind: "youtube#video", VideoId: "v3"}},
	}})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &fakeResolver{err: ErrUnsupported}
	second := &fakeResolver{result: &Result{Title: "t", URL: "https://u"}}
	third := &fakeResolver{err: errors.New("should not be called")}

	res, err := NewChain(nil, first, second, third).Resolve(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, "t", res.Title)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, third.calls)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(nil, &fakeResolver{err: ErrUnsupported}, &fakeResolver{err: ErrNoResults})

	_, err := chain.Resolve(context.Background(), "query")
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = chain.Resolve(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewChain(nil).Resolve(context.Background(), "query")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := &fakeResolver{result: &Result{Title: "t"}}

	_, err := NewChain(nil, &fakeResolver{err: errors.New("timeout")}, second).Resolve(ctx, "query")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.calls)
}

func TestIsYouTubeLink(t *testing.T) {
	assert.True(t, isYouTubeLink("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, isYouTubeLink("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, isYouTubeLink("https://music.youtube.com/watch?v=x"))
	assert.False(t, isYouTubeLink("https://soundcloud.com/artist/track"))
	assert.False(t, isYouTubeLink("https://notyoutube.com/watch?v=x"))
}
