package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/service/cycle"
	"photolabels/internal/service/websocket"
)

// ErrUnknownSession is returned for session ids that were never created or
// have been closed.
var ErrUnknownSession = errors.New("unknown session")

// Manager owns one cycle controller per viewer session.
type Manager struct {
	engine           cycle.Engine
	websocketService *websocket.HubService
	journal          cycle.Journal
	logger           *logger.Logger

	sessions map[string]*cycle.Controller
	mu       sync.RWMutex
}

func NewManager(engine cycle.Engine, websocketService *websocket.HubService, journal cycle.Journal, logger *logger.Logger) *Manager {
	return &Manager{
		engine:           engine,
		websocketService: websocketService,
		journal:          journal,
		logger:           logger,
		sessions:         make(map[string]*cycle.Controller),
	}
}

// CreateSession starts a controller presenting to the session's viewers and
// returns the new session id.
func (m *Manager) CreateSession() string {
	id := uuid.NewString()
	presenter := m.websocketService.Presenter(id)
	controller := cycle.New(
		m.engine,
		presenter,
		cycle.WithSession(id),
		cycle.WithJournal(m.journal),
		cycle.WithLogger(m.logger),
	)

	// Viewers that connect before the first cycle start on the empty report.
	presenter.Present(controller.Live())

	m.mu.Lock()
	m.sessions[id] = controller
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("🎬 Session %s created (%d active)", id, count)
	return id
}

func (m *Manager) controller(id string) (*cycle.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSession, "session %q", id)
	}
	return c, nil
}

// Select starts a cycle for image in session id.
func (m *Manager) Select(ctx context.Context, id string, image []byte) (uint64, error) {
	c, err := m.controller(id)
	if err != nil {
		return 0, err
	}
	return c.Select(ctx, image)
}

// Cancel records a cancelled image selection for session id.
func (m *Manager) Cancel(id string) error {
	c, err := m.controller(id)
	if err != nil {
		return err
	}
	c.Cancel()
	return nil
}

// Live returns the report currently presented in session id.
func (m *Manager) Live(id string) (models.CycleReport, error) {
	c, err := m.controller(id)
	if err != nil {
		return models.CycleReport{}, err
	}
	return c.Live(), nil
}

// CloseSession tears down the session's controller and forgets it.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrUnknownSession, "session %q", id)
	}
	c.Close()
	m.websocketService.Forget(id)
	m.logger.Info("Session %s closed", id)
	return nil
}

// HasSession reports whether id names an open session.
func (m *Manager) HasSession(id string) bool {
	_, err := m.controller(id)
	return err == nil
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

// Stop closes every session.
func (m *Manager) Stop() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*cycle.Controller)
	m.mu.Unlock()

	for id, c := range sessions {
		c.Close()
		m.websocketService.Forget(id)
	}
	m.logger.Info("🛑 All sessions closed")
}
