package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/types"
)

// Client is the Remote Exchange Client.
type Client interface {
	FetchCurrentVideo(ctx context.Context, videoID int) (types.VideoSegment, error)
	SubmitSpeech(ctx context.Context, blob media.Blob, currentVideoID int) (types.InteractionResult, error)
	SubmitTranscript(ctx context.Context, text string) (types.VoiceChatReply, error)
}

type HTTPClient struct {
	http *http.Client
	base string
}

// NewClient builds a client for the decision service at baseURL. No request timeout is set:
// calls are awaited until they complete or fail.
func NewClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		http: &http.Client{},
		base: strings.TrimRight(baseURL, "/"),
	}
}

func (c *HTTPClient) BaseURL() string { return c.base }

func (c *HTTPClient) FetchCurrentVideo(ctx context.Context, videoID int) (types.VideoSegment, error) {
	q := url.Values{}
	q.Set("videoId", strconv.Itoa(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/current-video?"+q.Encode(), nil)
	if err != nil {
		return types.VideoSegment{}, fmt.Errorf("current video: %w: %v", types.ErrTransport, err)
	}
	var seg types.VideoSegment
	if err := c.do(req, "current_video", &seg); err != nil {
		return types.VideoSegment{}, fmt.Errorf("current video: %w", err)
	}
	if !seg.Valid() {
		return types.VideoSegment{}, fmt.Errorf("current video: %w: malformed segment %+v", types.ErrTransport, seg)
	}
	seg.URL = c.Resolve(seg.URL)
	return seg, nil
}

func (c *HTTPClient) SubmitSpeech(ctx context.Context, blob media.Blob, currentVideoID int) (types.InteractionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mime := blob.MimeType
	if mime == "" {
		mime = media.DefaultMimeType
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, media.DefaultFilename))
	hdr.Set("Content-Type", mime)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w: %v", types.ErrTransport, err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w: %v", types.ErrTransport, err)
	}
	if err := mw.WriteField("currentVideoId", strconv.Itoa(currentVideoID)); err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w: %v", types.ErrTransport, err)
	}
	if err := mw.Close(); err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w: %v", types.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/process-speech", &body)
	if err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w: %v", types.ErrTransport, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res types.InteractionResult
	if err := c.do(req, "process_speech", &res); err != nil {
		return types.InteractionResult{}, fmt.Errorf("process speech: %w", err)
	}
	if res.NextVideo != nil {
		if !res.NextVideo.Valid() {
			return types.InteractionResult{}, fmt.Errorf("process speech: %w: malformed nextVideo %+v", types.ErrTransport, *res.NextVideo)
		}
		res.NextVideo.URL = c.Resolve(res.NextVideo.URL)
	}
	if res.FeedbackAudio != "" {
		res.FeedbackAudio = c.Resolve(res.FeedbackAudio)
	}
	return res, nil
}

func (c *HTTPClient) SubmitTranscript(ctx context.Context, text string) (types.VoiceChatReply, error) {
	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(map[string]string{"transcript": text}); err != nil {
		return types.VoiceChatReply{}, fmt.Errorf("voice chat: %w: %v", types.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/voice-chat", &out)
	if err != nil {
		return types.VoiceChatReply{}, fmt.Errorf("voice chat: %w: %v", types.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var reply types.VoiceChatReply
	if err := c.do(req, "voice_chat", &reply); err != nil {
		return types.VoiceChatReply{}, fmt.Errorf("voice chat: %w", err)
	}
	if !reply.ValidAudio() {
		return types.VoiceChatReply{}, fmt.Errorf("voice chat: %w: reply audio is not valid base64", types.ErrTransport)
	}
	return reply, nil
}

// Resolve prefixes root-relative references with the service base URL. Absolute URLs and
// data URIs pass through.
func (c *HTTPClient) Resolve(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return c.base + ref
	}
	return ref
}

func (c *HTTPClient) do(req *http.Request, kind string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metricRequests.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()
	metricLatencyMS.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metricRequests.WithLabelValues(kind, "http_"+strconv.Itoa(resp.StatusCode)).Inc()
		log.Printf("[exchange] %s %s status=%d body=%s", req.Method, req.URL.Path, resp.StatusCode, string(b))
		return fmt.Errorf("%w: status=%d body=%s", types.ErrTransport, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metricRequests.WithLabelValues(kind, "decode_error").Inc()
		return fmt.Errorf("%w: decode response: %v", types.ErrTransport, err)
	}
	metricRequests.WithLabelValues(kind, "ok").Inc()
	return nil
}
