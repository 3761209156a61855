package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/example/claim-console/internal/claim"
	"github.com/example/claim-console/internal/logging"
)

// Manager runs user actions against the claims API on behalf of a session.
type Manager struct {
	client   claim.Client
	registry *Registry
	logger   *zap.Logger
}

func NewManager(client claim.Client, registry *Registry, logger *zap.Logger) *Manager {
	return &Manager{
		client:   client,
		registry: registry,
		logger:   logger.Named("session_manager"),
	}
}

// Session resolves the session bound to id.
func (m *Manager) Session(ctx context.Context, id string) *Session {
	return m.registry.Get(ctx, id)
}

// CheckHealth probes the API URL configured for the session.
func (m *Manager) CheckHealth(ctx context.Context, s *Session) claim.HealthStatus {
	s.acknowledge()
	status := m.client.ProbeHealth(ctx, s.BaseURL())
	logging.WithOperation(m.logger, "session.check_health", s.ID).Info("health checked",
		zap.Bool("reachable", status.Reachable),
		zap.Int("status", status.StatusCode),
		zap.String("api_url", s.BaseURL()),
	)
	return status
}

// UpdateBaseURL changes the API URL of the session. The caller validates the URL.
func (m *Manager) UpdateBaseURL(ctx context.Context, s *Session, baseURL string) {
	s.acknowledge()
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	opLogger := logging.WithOperation(m.logger, "session.update_api_url", s.ID)
	if err := m.registry.SetBaseURL(ctx, s, baseURL); err != nil {
		opLogger.Warn("API URL kept in memory only", zap.Error(err))
		return
	}
	opLogger.Info("API URL updated", zap.String("api_url", baseURL))
}

// Submit sends the image for processing. At most one submission per session is in flight:
// the same image is rejected with ErrDuplicateSubmission, a different one replaces the
// current call, whose late outcome then surfaces as ErrSuperseded.
func (m *Manager) Submit(ctx context.Context, s *Session, image claim.UploadedImage) (*claim.ClaimResult, error) {
	opLogger := logging.WithOperation(m.logger, "session.submit", s.ID).With(zap.String("digest", image.Digest()))

	callCtx, gen, err := s.begin(ctx, image.Digest())
	if err != nil {
		opLogger.Info("submission rejected", zap.Error(err))
		return nil, err
	}
	opLogger = opLogger.With(zap.Uint64("generation", gen))

	result, err := m.client.SubmitClaim(callCtx, s.BaseURL(), image)
	if !s.finish(gen, err == nil) {
		opLogger.Info("discarding stale submission outcome")
		return nil, ErrSuperseded
	}
	if err != nil {
		var claimErr *claim.ClaimError
		if errors.As(err, &claimErr) {
			opLogger.Warn("submission failed", zap.String("category", string(claimErr.Category)), zap.Int("status", claimErr.StatusCode), zap.Error(err))
		} else {
			opLogger.Error("submission failed", zap.Error(err))
		}
		return nil, err
	}

	opLogger.Info("submission succeeded")
	return result, nil
}

// Cancel aborts the session's submission in flight and reports whether there was one.
func (m *Manager) Cancel(s *Session) bool {
	canceled := s.abort()
	if canceled {
		logging.WithOperation(m.logger, "session.cancel", s.ID).Info("submission canceled")
	}
	return canceled
}
