package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Setup installs the configured version and activates it. When the install fails
// the manager is left degraded and keeps serving the previously active version.
func (m *Manager) Setup(ctx context.Context) error {
	if err := m.Install(ctx); err != nil {
		return err
	}
	return m.Activate(ctx)
}

// Install precaches every manifest URL into the static partition of the configured
// version. Either all responses are committed or none. A newer Install cancels
// and supersedes one still in progress.
func (m *Manager) Install(ctx context.Context) error {
	ctx, gen := m.beginInstall(ctx)
	defer m.endInstall(gen)

	m.logger.Info("installing cache version",
		zap.String("version", m.cfg.Version), zap.Int("assets", len(m.cfg.Manifest)))

	responses := make([]*Response, len(m.cfg.Manifest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.PrecacheConcurrency)
	for i, u := range m.cfg.Manifest {
		g.Go(func() error {
			resp, err := m.network.Fetch(gctx, NewRequest(http.MethodGet, u))
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrPrecacheFailure, u, err)
			}
			if !resp.OK() {
				return fmt.Errorf("%w: %s: status %d", ErrPrecacheFailure, u, resp.StatusCode)
			}
			responses[i] = resp
			return nil
		})
	}
	err := g.Wait()

	m.installMu.Lock()
	defer m.installMu.Unlock()

	if gen != m.installGen {
		return ErrInstallSuperseded
	}
	if err != nil {
		m.degraded.Store(true)
		m.logger.Warn("cache install failed, previous version keeps serving",
			zap.String("version", m.cfg.Version), zap.Error(err))
		return err
	}

	entries := make(map[string]*Response, len(responses))
	for i, u := range m.cfg.Manifest {
		entries[u] = responses[i]
	}
	static := PartitionName(m.cfg.AppName, PartitionStatic, m.cfg.Version)
	if err := m.storage.ReplacePartition(ctx, static, entries); err != nil {
		m.degraded.Store(true)
		return fmt.Errorf("%w: %w", ErrPrecacheFailure, err)
	}
	for _, kind := range []string{PartitionDynamic, PartitionAPI} {
		if err := m.storage.CreatePartition(ctx, PartitionName(m.cfg.AppName, kind, m.cfg.Version)); err != nil {
			m.logger.Warn("failed to create partition", zap.String("kind", kind), zap.Error(err))
		}
	}

	m.degraded.Store(false)
	m.logger.Info("cache version installed", zap.String("version", m.cfg.Version))

	if resp, ok := entries[m.cfg.CatalogPath]; ok {
		m.feedCatalog(ctx, m.cfg.CatalogPath, resp)
	}
	return nil
}

func (m *Manager) beginInstall(ctx context.Context) (context.Context, uint64) {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	if m.installCancel != nil {
		m.installCancel()
	}
	m.installGen++
	ctx, cancel := context.WithCancel(ctx)
	m.installCancel = cancel
	return ctx, m.installGen
}

func (m *Manager) endInstall(gen uint64) {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	if gen == m.installGen && m.installCancel != nil {
		m.installCancel()
		m.installCancel = nil
	}
}

// Activate deletes every partition of another version and starts serving the
// configured one. It waits until no request is using the version being evicted.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.storage.Partitions(ctx)
	if err != nil {
		return err
	}
	static := PartitionName(m.cfg.AppName, PartitionStatic, m.cfg.Version)
	if !slices.Contains(names, static) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, m.cfg.Version)
	}

	m.versionMu.Lock()
	defer m.versionMu.Unlock()

	var errs []error
	for _, name := range names {
		_, version, ok := ParsePartitionName(m.cfg.AppName, name)
		if !ok || version == m.cfg.Version {
			continue
		}
		if err := m.storage.DeletePartition(ctx, name); err != nil {
			errs = append(errs, err)
			continue
		}
		m.logger.Info("deleted outdated cache partition", zap.String("partition", name))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to evict outdated partitions: %w", err)
	}

	if err := m.storage.SetActiveVersion(ctx, m.cfg.Version); err != nil {
		return err
	}
	m.active = m.cfg.Version
	m.logger.Info("cache version activated", zap.String("version", m.cfg.Version))
	return nil
}
