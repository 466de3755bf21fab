package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"coinquote/metrics"
	"coinquote/orderbook"
)

const (
	keepaliveWindow  = 30 // seconds
	keepalivePayload = "keepalive"
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

var (
	ErrTransport    = errors.New("feed transport failure")
	ErrNotConnected = errors.New("feed not connected")
)

// Feed owns one Level2 websocket connection. A single goroutine reads and
// applies frames in arrival order; Subscribe and Unsubscribe may be called
// from any goroutine. A Feed is single-use: once stopped or failed it cannot
// be started again.
type Feed struct {
	id     string
	books  *orderbook.Registry
	logger zerolog.Logger
	now    func() time.Time // keepalive window only; I/O deadlines use time.Now

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	subMu      sync.Mutex
	subscribed map[string]struct{}

	started  atomic.Bool
	stopped  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	lastPing int64

	errMu sync.Mutex
	err   error
}

func NewFeed(books *orderbook.Registry, logger zerolog.Logger) *Feed {
	id := uuid.NewString()
	return &Feed{
		id:         id,
		books:      books,
		logger:     logger.With().Str("component", "feed").Str("conn", id).Logger(),
		now:        time.Now,
		subscribed: make(map[string]struct{}),
		done:       make(chan struct{}),
		lastPing:   -1,
	}
}

// Connect dials url. A trailing slash is removed first.
func (f *Feed) Connect(ctx context.Context, url string) error {
	url = strings.TrimSuffix(url, "/")
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, url, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: already connected", ErrTransport)
	}
	f.conn = conn
	f.logger.Info().Str("url", url).Msg("feed connected")
	return nil
}

// Subscribe sends one subscribe frame for the products not yet subscribed.
// It does nothing when every product is already subscribed.
func (f *Feed) Subscribe(productIDs []string) error {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	fresh := lo.Filter(lo.Uniq(productIDs), func(id string, _ int) bool {
		_, ok := f.subscribed[id]
		return !ok
	})
	if len(fresh) == 0 {
		return nil
	}
	if err := f.send(TypeSubscribe, fresh); err != nil {
		return err
	}
	for _, id := range fresh {
		f.subscribed[id] = struct{}{}
	}
	metrics.Subscriptions.Set(float64(len(f.subscribed)))
	f.logger.Info().Strs("products", fresh).Msg("subscribed")
	return nil
}

// Unsubscribe always sends one unsubscribe frame naming exactly the given
// products, subscribed or not, and forgets all of them.
func (f *Feed) Unsubscribe(productIDs []string) error {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	ids := lo.Uniq(productIDs)
	if len(ids) == 0 {
		return nil
	}
	if err := f.send(TypeUnsubscribe, ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.subscribed, id)
	}
	metrics.Subscriptions.Set(float64(len(f.subscribed)))
	f.logger.Info().Strs("products", ids).Msg("unsubscribed")
	return nil
}

func (f *Feed) Subscriptions() []string {
	f.subMu.Lock()
	ids := lo.Keys(f.subscribed)
	f.subMu.Unlock()
	sort.Strings(ids)
	return ids
}

// Start launches the receive loop. The loop ends on ctx cancellation, Stop,
// or the first transport or decode failure.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("feed already started")
	}

	ctx, f.cancel = context.WithCancel(ctx)
	// a blocked read only returns once its deadline passes
	context.AfterFunc(ctx, f.interrupt)

	f.wg.Add(1)
	go f.run(ctx, conn)
	return nil
}

// Stop cancels the loop, interrupts a pending read, waits for the loop to
// exit and closes the connection.
func (f *Feed) Stop() {
	f.stopped.Store(true)
	if f.cancel != nil {
		f.cancel()
	}
	f.interrupt()
	f.wg.Wait()
	f.closeTransport()
}

// Done is closed when the receive loop has exited.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Err returns the failure that halted the loop, if any.
func (f *Feed) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

func (f *Feed) run(ctx context.Context, conn *websocket.Conn) {
	defer f.wg.Done()
	defer close(f.done)
	f.logger.Info().Msg("listening")

	for !f.stopped.Load() && ctx.Err() == nil {
		if err := f.keepalive(conn); err != nil {
			f.fail(err)
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.stopped.Load() || ctx.Err() != nil {
				break
			}
			f.fail(fmt.Errorf("%w: read: %v", ErrTransport, err))
			return
		}

		frame, err := Decode(data)
		if err != nil {
			f.fail(err)
			return
		}
		f.handle(frame)
	}
	f.logger.Info().Msg("listener stopped")
}

// keepalive pings at most once per 30 second wall-clock window, on the
// first loop iteration that falls on a window boundary.
func (f *Feed) keepalive(conn *websocket.Conn) error {
	sec := f.now().Unix()
	if sec%keepaliveWindow != 0 || sec/keepaliveWindow == f.lastPing {
		return nil
	}

	f.writeMu.Lock()
	err := conn.WriteControl(websocket.PingMessage, []byte(keepalivePayload), time.Now().Add(writeWait))
	f.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: ping: %v", ErrTransport, err)
	}
	f.lastPing = sec / keepaliveWindow
	metrics.FeedPingsTotal.Inc()
	return nil
}

func (f *Feed) handle(frame Frame) {
	metrics.FeedMessagesTotal.WithLabelValues(frame.Type).Inc()
	switch {
	case frame.Book != nil:
		if !f.books.Dispatch(frame.Book) {
			metrics.FeedDroppedTotal.Inc()
		}
		if _, ok := frame.Book.(*orderbook.Snapshot); ok {
			metrics.BooksTracked.Set(float64(f.books.Len()))
			f.logger.Debug().Str("product", frame.ProductID).Msg("snapshot applied")
		}
	case frame.Type == TypeError:
		f.logger.Warn().Str("message", frame.Message).Str("reason", frame.Reason).Msg("feed reported error")
	default:
		f.logger.Trace().Str("type", frame.Type).Msg("frame ignored")
	}
}

func (f *Feed) fail(err error) {
	f.errMu.Lock()
	f.err = err
	f.errMu.Unlock()
	f.stopped.Store(true)

	kind := "transport"
	if errors.Is(err, ErrDecode) {
		kind = "decode"
	}
	metrics.FeedErrorsTotal.WithLabelValues(kind).Inc()
	f.logger.Error().Err(err).Str("kind", kind).Msg("feed halted")
}

func (f *Feed) send(kind string, productIDs []string) error {
	data, err := encodeSubscription(kind, productIDs)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, kind, err)
	}
	return nil
}

func (f *Feed) interrupt() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.conn != nil {
		_ = f.conn.SetReadDeadline(time.Now())
	}
}

func (f *Feed) closeTransport() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn == nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil && !isClosed(err) {
		f.logger.Warn().Err(err).Msg("close frame failed")
	}
	if err := conn.Close(); err != nil && !isClosed(err) {
		f.logger.Warn().Err(err).Msg("close failed")
	}
	f.logger.Info().Msg("feed closed")
}

func isClosed(err error) bool {
	return errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)
}
