package artwork

import (
	"fmt"
	"image"
	_ "image/jpeg" // cover art decoders
	_ "image/png"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	imageMaxWidth   = 256
	queueBufferSize = 16
)

// ImageSource resolves item artwork URLs. The Jellyfin client
// satisfies it.
type ImageSource interface {
	ImageURL(itemID, tag string, maxWidth int) string
	ImageHeaders() map[string]string
}

// Result carries an extracted palette back to the requester. ItemID
// identifies the request; callers drop results that no longer match
// their current item.
type Result struct {
	ItemID  string
	Palette Palette
	Err     error
}

type request struct {
	itemID   string
	imageTag string
}

// Loader fetches primary images and extracts palettes on a worker
// goroutine, keeping decode and clustering work off the caller.
type Loader struct {
	source ImageSource
	client *http.Client
	logger *slog.Logger

	// Results delivers palettes as they are extracted.
	Results <-chan Result

	requests  chan request
	resultCh  chan Result
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoader creates a loader and starts its worker.
func NewLoader(source ImageSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		source:   source,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		requests: make(chan request, queueBufferSize),
		resultCh: make(chan Result, queueBufferSize),
		done:     make(chan struct{}),
	}
	l.Results = l.resultCh
	go l.run()
	return l
}

// Request queues palette extraction for an item's primary image.
// Non-blocking; when the queue is full the request is dropped, since
// a newer request is about to supersede it anyway.
func (l *Loader) Request(itemID, imageTag string) {
	select {
	case l.requests <- request{itemID: itemID, imageTag: imageTag}:
	case <-l.done:
	default:
	}
}

// Close stops the worker. Pending requests are discarded.
func (l *Loader) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Loader) run() {
	for {
		select {
		case req := <-l.requests:
			// Coalesce to the newest queued request; anything older
			// is already superseded.
		drain:
			for {
				select {
				case next := <-l.requests:
					req = next
				default:
					break drain
				}
			}

			res := l.load(req)
			if res.Err != nil {
				l.logger.Debug("palette extraction failed",
					"item", req.itemID,
					"error", res.Err)
			}
			select {
			case l.resultCh <- res:
			case <-l.done:
				return
			default:
			}
		case <-l.done:
			return
		}
	}
}

func (l *Loader) load(req request) Result {
	res := Result{ItemID: req.itemID}

	url := l.source.ImageURL(req.itemID, req.imageTag, imageMaxWidth)
	if url == "" {
		res.Err = fmt.Errorf("no image for item %s", req.itemID)
		return res
	}

	httpReq, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("create request: %w", err)
		return res
	}
	for k, v := range l.source.ImageHeaders() {
		httpReq.Header.Set(k, v)
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		res.Err = fmt.Errorf("fetch image: %w", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("server returned status %d", resp.StatusCode)
		return res
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("decode image: %w", err)
		return res
	}

	res.Palette = ExtractPalette(img)
	return res
}
