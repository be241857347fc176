package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/talesofaneria/storefront/internal/domain"
)

const (
	youtubePageSize = 50
	youtubeMaxPages = 10
)

// YouTubeConfig configures the YouTube upstream. BaseURL overrides the API
// endpoint and is meant for tests.
type YouTubeConfig struct {
	APIKey  string
	BaseURL string
}

// YouTube fetches the videos of a playlist through the Data API v3.
type YouTube struct {
	cfg YouTubeConfig
	svc *youtube.Service
}

// NewYouTube returns a YouTube upstream. A nil client uses NewHTTPClient(0).
func NewYouTube(ctx context.Context, cfg YouTubeConfig, client *http.Client) (*YouTube, error) {
	if client == nil {
		client = NewHTTPClient(0)
	}
	// The API key travels as a per-call query parameter: with a custom
	// HTTP client the library ignores option.WithAPIKey.
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}
	return &YouTube{cfg: cfg, svc: svc}, nil
}

// Name implements Upstream.
func (y *YouTube) Name() string { return SourceYouTube }

// Configured implements Upstream.
func (y *YouTube) Configured() bool { return y.cfg.APIKey != "" }

// Fetch implements Upstream; key is the playlist id. Private and deleted
// entries are skipped. Missing video details are not an error.
func (y *YouTube) Fetch(ctx context.Context, playlistID string) ([]domain.Video, error) {
	if playlistID == "" {
		return nil, errors.New("youtube: playlist id is empty")
	}
	key := googleapi.QueryParameter("key", y.cfg.APIKey)

	var (
		out   []domain.Video
		ids   []string
		token string
	)
	for page := 0; page < youtubeMaxPages; page++ {
		call := y.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(youtubePageSize).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Do(key)
		if err != nil {
			return nil, upstreamError(err)
		}
		for _, it := range resp.Items {
			v, ok := mapPlaylistItem(it, playlistID)
			if !ok {
				continue
			}
			out = append(out, v)
			ids = append(ids, v.ID)
		}
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}

	details, err := y.videoDetails(ctx, ids, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("source", SourceYouTube).Str("key", playlistID).Msg("video details unavailable")
	}
	for i := range out {
		if d, ok := details[out[i].ID]; ok {
			out[i].Duration = d.duration
			out[i].ViewCount = d.views
		}
	}
	if out == nil {
		out = []domain.Video{}
	}
	return out, nil
}

type videoDetail struct {
	duration string
	views    uint64
}

func (y *YouTube) videoDetails(ctx context.Context, ids []string, key googleapi.CallOption) (map[string]videoDetail, error) {
	out := make(map[string]videoDetail, len(ids))
	for start := 0; start < len(ids); start += youtubePageSize {
		end := min(start+youtubePageSize, len(ids))
		resp, err := y.svc.Videos.List([]string{"contentDetails", "statistics"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do(key)
		if err != nil {
			return out, upstreamError(err)
		}
		for _, v := range resp.Items {
			var d videoDetail
			if v.ContentDetails != nil {
				d.duration = FormatDuration(v.ContentDetails.Duration)
			}
			if v.Statistics != nil {
				d.views = v.Statistics.ViewCount
			}
			out[v.Id] = d
		}
	}
	return out, nil
}

func mapPlaylistItem(it *youtube.PlaylistItem, playlistID string) (domain.Video, bool) {
	if it == nil || it.Snippet == nil {
		return domain.Video{}, false
	}
	s := it.Snippet
	id := ""
	if it.ContentDetails != nil {
		id = it.ContentDetails.VideoId
	}
	if id == "" && s.ResourceId != nil {
		id = s.ResourceId.VideoId
	}
	if id == "" || s.Title == "Private video" || s.Title == "Deleted video" {
		return domain.Video{}, false
	}

	published := s.PublishedAt
	if it.ContentDetails != nil && it.ContentDetails.VideoPublishedAt != "" {
		published = it.ContentDetails.VideoPublishedAt
	}
	return domain.Video{
		ID:          id,
		Title:       s.Title,
		Description: s.Description,
		Thumbnail:   bestThumbnail(s.Thumbnails),
		PublishedAt: published,
		URL:         "https://www.youtube.com/watch?v=" + id + "&list=" + playlistID,
	}, true
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return PlaceholderImage
	}
	for _, th := range []*youtube.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return PlaceholderImage
}

// upstreamError maps API errors with an HTTP status onto ErrUpstreamStatus.
func upstreamError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, gerr.Code, gerr.Message)
	}
	return err
}

// FormatDuration turns an ISO 8601 duration such as "PT1H2M3S" into a clock
// string ("1:02:03"; "4:05" under an hour). Unparseable input is returned
// unchanged.
func FormatDuration(iso string) string {
	d, ok := parseISODuration(iso)
	if !ok {
		return iso
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func parseISODuration(iso string) (time.Duration, bool) {
	rest, ok := strings.CutPrefix(iso, "P")
	if !ok || rest == "" {
		return 0, false
	}
	var (
		total  time.Duration
		inTime bool
		num    strings.Builder
	)
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, false
		}
		num.Reset()
		switch {
		case r == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, false
		}
	}
	if num.Len() > 0 {
		return 0, false
	}
	return total, true
}
