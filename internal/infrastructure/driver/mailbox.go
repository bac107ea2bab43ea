package driver

import (
	"context"
	"sync"
)

// Mailbox is the transport under the channel: three single-value slots
// shared with the driver. The command slot is written here and cleared by the
// driver; the status and response slots are written by the driver and
// consumed here.
type Mailbox interface {
	PutCommand(ctx context.Context, payload []byte) error
	CommandPending(ctx context.Context) (bool, error)
	// TakeResponse reads and clears the response slot
	TakeResponse(ctx context.Context) ([]byte, bool, error)
	// TakeStatus reads and clears the status slot
	TakeStatus(ctx context.Context) (string, bool, error)
	// Reset clears the command and response slots. The status slot belongs to the driver.
	Reset(ctx context.Context) error
}

// MemoryMailbox keeps the slots in process. The Driver* methods play the
// driver side, for tests and dry runs.
type MemoryMailbox struct {
	mu       sync.Mutex
	command  []byte
	response []byte
	status   string
	hasCmd   bool
	hasResp  bool
	hasStat  bool
	sent     [][]byte
	notifyCh chan struct{}
}

// NewMemoryMailbox creates an empty in-process mailbox
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{notifyCh: make(chan struct{}, 1)}
}

func (m *MemoryMailbox) PutCommand(_ context.Context, payload []byte) error {
	m.mu.Lock()
	m.command = append([]byte(nil), payload...)
	m.hasCmd = true
	m.sent = append(m.sent, m.command)
	m.mu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
	return nil
}

func (m *MemoryMailbox) CommandPending(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasCmd, nil
}

func (m *MemoryMailbox) TakeResponse(_ context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasResp {
		return nil, false, nil
	}
	resp := m.response
	m.response, m.hasResp = nil, false
	return resp, true, nil
}

func (m *MemoryMailbox) TakeStatus(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasStat {
		return "", false, nil
	}
	st := m.status
	m.status, m.hasStat = "", false
	return st, true, nil
}

func (m *MemoryMailbox) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.command, m.hasCmd = nil, false
	m.response, m.hasResp = nil, false
	return nil
}

// DriverTakeCommand consumes the pending command, as the driver would
func (m *MemoryMailbox) DriverTakeCommand() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasCmd {
		return nil, false
	}
	cmd := m.command
	m.command, m.hasCmd = nil, false
	return cmd, true
}

// DriverCommands returns a channel that is signalled whenever a command is written
func (m *MemoryMailbox) DriverCommands() <-chan struct{} {
	return m.notifyCh
}

// DriverRespond fills the response slot
func (m *MemoryMailbox) DriverRespond(payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = []byte(payload)
	m.hasResp = true
}

// DriverSetStatus fills the status slot
func (m *MemoryMailbox) DriverSetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.hasStat = true
}

// DriverReply fills the response and status slots together. Either may be empty.
func (m *MemoryMailbox) DriverReply(status, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if response != "" {
		m.response = []byte(response)
		m.hasResp = true
	}
	if status != "" {
		m.status = status
		m.hasStat = true
	}
}

// Sent returns every command payload written so far
func (m *MemoryMailbox) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}
