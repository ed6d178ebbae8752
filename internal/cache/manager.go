package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pquerna/cachecontrol/cacheobject"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher performs a request against the network.
// Transport failures must wrap ErrNetworkUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// CatalogSink receives every catalog body successfully fetched from the network.
type CatalogSink interface {
	ReplaceCatalog(ctx context.Context, body []byte) error
}

// Config configures a Manager.
type Config struct {
	AppName             string
	Version             string
	Manifest            []string
	CatalogPath         string
	Rules               Rules
	NetworkTimeout      time.Duration
	PrecacheConcurrency int
	HTMLFallbacks       []string
	ImagePlaceholder    string
}

// Manager satisfies every outbound resource request through one of the caching
// strategies, against versioned cache partitions.
type Manager struct {
	cfg      Config
	storage  Storage
	network  Fetcher
	sink     CatalogSink
	logger   *zap.Logger
	manifest map[string]struct{}

	// versionMu is held for reading by every consumer of a partition version and
	// for writing by activation.
	versionMu sync.RWMutex
	active    string

	installMu     sync.Mutex
	installGen    uint64
	installCancel context.CancelFunc
	degraded      atomic.Bool

	revalidations singleflight.Group
	bgCtx         context.Context
	bgCancel      context.CancelFunc
	bg            sync.WaitGroup
}

// NewManager creates a Manager. sink may be nil.
func NewManager(cfg Config, storage Storage, network Fetcher, sink CatalogSink, logger *zap.Logger) *Manager {
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 3 * time.Second
	}
	if cfg.PrecacheConcurrency <= 0 {
		cfg.PrecacheConcurrency = 1
	}
	manifest := make(map[string]struct{}, len(cfg.Manifest))
	for _, u := range cfg.Manifest {
		manifest[u] = struct{}{}
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		storage:  storage,
		network:  network,
		sink:     sink,
		logger:   logger,
		manifest: manifest,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

// Start loads the version activated by a previous run.
func (m *Manager) Start(ctx context.Context) error {
	version, err := m.storage.ActiveVersion(ctx)
	if err != nil {
		return err
	}
	m.versionMu.Lock()
	m.active = version
	m.versionMu.Unlock()
	if version != "" {
		m.logger.Info("serving cache version", zap.String("version", version))
	}
	return nil
}

// Close stops background revalidation and waits for it.
func (m *Manager) Close() {
	m.bgCancel()
	m.bg.Wait()
}

// Wait blocks until pending background revalidations are done.
func (m *Manager) Wait() {
	m.bg.Wait()
}

// ActiveVersion returns the activated version, empty before the first activation.
func (m *Manager) ActiveVersion() string {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()
	return m.active
}

// Degraded reports that the last install failed and an older version (or nothing) is served.
func (m *Manager) Degraded() bool {
	return m.degraded.Load()
}

// servingVersion must be called with versionMu held.
func (m *Manager) servingVersion() string {
	if m.active != "" {
		return m.active
	}
	return m.cfg.Version
}

func (m *Manager) partition(kind string) string {
	return PartitionName(m.cfg.AppName, kind, m.servingVersion())
}

func (m *Manager) partitions() []string {
	names := make([]string, 0, len(partitionKinds))
	for _, kind := range partitionKinds {
		names = append(names, m.partition(kind))
	}
	return names
}

// Fetch classifies the request, applies its strategy and converts failures into
// the offline fallback. The error is only set when ctx is done.
func (m *Manager) Fetch(ctx context.Context, req *Request) (*Response, error) {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()

	var (
		resp *Response
		err  error
	)
	if req.Method != "" && req.Method != http.MethodGet {
		resp, err = m.network.Fetch(ctx, req)
	} else {
		switch m.cfg.Rules.Classify(req.Path()) {
		case StrategyNetworkFirst:
			resp, err = m.networkFirst(ctx, req)
		case StrategyStaleWhileRevalidate:
			resp, err = m.staleWhileRevalidate(ctx, req)
		default:
			resp, err = m.cacheFirst(ctx, req)
		}
	}
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	m.logger.Debug("serving offline fallback", zap.String("url", req.URL), zap.Error(err))
	return m.offlineFallback(ctx, req, err), nil
}

// CacheFirst serves from any partition, or fetches and stores into the dynamic partition.
func (m *Manager) CacheFirst(ctx context.Context, req *Request) (*Response, error) {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()
	return m.cacheFirst(ctx, req)
}

// NetworkFirst fetches with a bounded wait and falls back to the dynamic partition.
func (m *Manager) NetworkFirst(ctx context.Context, req *Request) (*Response, error) {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()
	return m.networkFirst(ctx, req)
}

// StaleWhileRevalidate serves the cached copy at once and refreshes it in the background.
func (m *Manager) StaleWhileRevalidate(ctx context.Context, req *Request) (*Response, error) {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()
	return m.staleWhileRevalidate(ctx, req)
}

func (m *Manager) cacheFirst(ctx context.Context, req *Request) (*Response, error) {
	if cached, err := m.match(ctx, m.partitions(), req.URL); err == nil {
		return cached, nil
	}

	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	m.afterNetwork(ctx, req, resp, PartitionDynamic)
	return resp, nil
}

func (m *Manager) networkFirst(ctx context.Context, req *Request) (*Response, error) {
	netCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()

	resp, err := m.network.Fetch(netCtx, req)
	if err == nil {
		m.afterNetwork(ctx, req, resp, PartitionDynamic)
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cached, cacheErr := m.match(ctx, []string{m.partition(PartitionDynamic)}, req.URL)
	if cacheErr != nil {
		return nil, err
	}
	m.logger.Debug("network failed, serving from cache", zap.String("url", req.URL), zap.Error(err))
	return cached, nil
}

func (m *Manager) staleWhileRevalidate(ctx context.Context, req *Request) (*Response, error) {
	if cached, err := m.match(ctx, m.partitions(), req.URL); err == nil {
		m.revalidateInBackground(req)
		return cached, nil
	}

	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	m.afterNetwork(ctx, req, resp, m.revalidationKind(req))
	return resp, nil
}

func (m *Manager) revalidationKind(req *Request) string {
	if _, ok := m.manifest[req.URL]; ok {
		return PartitionStatic
	}
	return PartitionDynamic
}

func (m *Manager) revalidateInBackground(req *Request) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		_, _, _ = m.revalidations.Do(req.URL, func() (any, error) {
			m.versionMu.RLock()
			defer m.versionMu.RUnlock()

			ctx, cancel := context.WithTimeout(m.bgCtx, m.cfg.NetworkTimeout)
			defer cancel()
			m.refresh(ctx, req, m.revalidationKind(req))
			return nil, nil
		})
	}()
}

// refresh must be called with versionMu held. Failures are swallowed: the stale copy
// stays authoritative until a later refresh succeeds.
func (m *Manager) refresh(ctx context.Context, req *Request, kind string) {
	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		m.logger.Debug("revalidation failed", zap.String("url", req.URL), zap.Error(err))
		return
	}
	m.afterNetwork(ctx, req, resp, kind)
}

// Revalidate refreshes the given resources from the network, typically on reconnect.
func (m *Manager) Revalidate(ctx context.Context, urls ...string) {
	m.versionMu.RLock()
	defer m.versionMu.RUnlock()
	for _, u := range urls {
		req := NewRequest(http.MethodGet, u)
		m.refresh(ctx, req, m.revalidationKind(req))
	}
}

// RevalidateAsync runs Revalidate in the background. Close cancels and waits for it.
func (m *Manager) RevalidateAsync(urls ...string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.Revalidate(m.bgCtx, urls...)
	}()
}

func (m *Manager) match(ctx context.Context, partitions []string, url string) (*Response, error) {
	resp, err := m.storage.Match(ctx, partitions, url)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		m.logger.Warn("cache lookup failed", zap.String("url", url), zap.Error(err))
	}
	return resp, err
}

// afterNetwork stores a successful network response and feeds the catalog sink.
func (m *Manager) afterNetwork(ctx context.Context, req *Request, resp *Response, kind string) {
	resp.Source = SourceNetwork
	if !resp.OK() {
		return
	}
	if cacheable(resp) {
		partition := m.partition(kind)
		if err := m.storage.Put(ctx, partition, req.URL, resp); err != nil {
			m.logger.Warn("failed to store response", zap.String("url", req.URL), zap.String("partition", partition), zap.Error(err))
		}
	}
	m.feedCatalog(ctx, req.Path(), resp)
}

func (m *Manager) feedCatalog(ctx context.Context, path string, resp *Response) {
	if m.sink == nil || m.cfg.CatalogPath == "" || path != m.cfg.CatalogPath {
		return
	}
	if err := m.sink.ReplaceCatalog(ctx, resp.Body); err != nil {
		m.logger.Warn("failed to replace menu snapshot", zap.Error(err))
	}
}

func cacheable(resp *Response) bool {
	directives, err := cacheobject.ParseResponseCacheControl(resp.Header.Get("Cache-Control"))
	if err != nil {
		return true
	}
	return !directives.NoStore
}

func (m *Manager) offlineFallback(ctx context.Context, req *Request, cause error) *Response {
	if req.Accepts("text/html") {
		for _, u := range m.cfg.HTMLFallbacks {
			if resp, err := m.match(ctx, m.partitions(), u); err == nil {
				return resp.withSource(SourceFallback)
			}
		}
	}
	if req.Accepts("image/") && m.cfg.ImagePlaceholder != "" {
		if resp, err := m.match(ctx, m.partitions(), m.cfg.ImagePlaceholder); err == nil {
			return resp.withSource(SourceFallback)
		}
	}
	return unavailable(cause)
}
