package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// Status slot values written by the driver
const (
	statusReady          = "READY"
	statusCompleted      = "COMPLETED"
	statusData           = "DATA"
	statusError          = "ERROR"
	statusShutdown       = "SHUTDOWN"
	statusWaitingForUser = "WAITING_FOR_USER"
)

// Observer receives channel activity, e.g. for metrics
type Observer interface {
	CommandSent(action domain.Action)
	ResponseReceived(action domain.Action, responseType string, wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) CommandSent(domain.Action)                              {}
func (nopObserver) ResponseReceived(domain.Action, string, time.Duration) {}

// Config holds configuration for the channel
type Config struct {
	PollInterval time.Duration
	Observer     Observer
	Logger       zerolog.Logger
}

// Channel is the single-in-flight correlation channel over a Mailbox.
// At most one command sent with Send is outstanding: a second Send blocks
// until AwaitResponse has consumed the first command's response.
type Channel struct {
	mailbox      Mailbox
	pollInterval time.Duration
	observer     Observer
	log          zerolog.Logger

	// slot holds a token while a command is in flight
	slot    chan struct{}
	writeMu sync.Mutex

	mu          sync.Mutex
	inflight    domain.Action
	inflightID  string
	pendingQuit bool
	// orphans holds the ids of timed-out commands whose replies may still arrive, oldest first
	orphans []string
}

// maxOrphans bounds how many timed-out command ids are remembered
const maxOrphans = 16

// NewChannel creates a channel over mailbox
func NewChannel(mailbox Mailbox, config Config) *Channel {
	interval := config.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	observer := config.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Channel{
		mailbox:      mailbox,
		pollInterval: interval,
		observer:     observer,
		log:          config.Logger.With().Str("component", "driver").Logger(),
		slot:         make(chan struct{}, 1),
	}
}

// Reset clears stale slots and any remembered quit
func (c *Channel) Reset(ctx context.Context) error {
	if err := c.mailbox.Reset(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.pendingQuit = false
	c.inflight = ""
	c.inflightID = ""
	c.orphans = nil
	c.mu.Unlock()
	c.release()
	return nil
}

// Send writes cmd once no other command is in flight and the driver has
// taken the previous command.
func (c *Channel) Send(ctx context.Context, cmd domain.Command) error {
	c.mu.Lock()
	quit := c.pendingQuit
	c.mu.Unlock()
	if quit {
		return domain.ErrSessionQuit
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.dropOrphanReply(ctx); err != nil {
		c.release()
		return err
	}
	if err := c.write(ctx, &cmd); err != nil {
		c.release()
		return err
	}

	c.mu.Lock()
	c.inflight = cmd.Action
	c.inflightID = cmd.ID
	c.mu.Unlock()
	return nil
}

// Notify writes a fire-and-forget command. It waits for the command slot to be
// clear but does not take part in the in-flight discipline.
func (c *Channel) Notify(ctx context.Context, cmd domain.Command) error {
	return c.write(ctx, &cmd)
}

// SendAndAwait sends cmd and waits for its response
func (c *Channel) SendAndAwait(ctx context.Context, cmd domain.Command, timeout time.Duration) (domain.Response, error) {
	if err := c.Send(ctx, cmd); err != nil {
		return nil, err
	}
	return c.AwaitResponse(ctx, timeout)
}

// AwaitResponse polls until a response or terminal status arrives. A zero
// timeout waits indefinitely. Time spent while the driver reports
// WAITING_FOR_USER does not count toward the timeout.
func (c *Channel) AwaitResponse(ctx context.Context, timeout time.Duration) (domain.Response, error) {
	defer c.release()

	c.mu.Lock()
	action, id := c.inflight, c.inflightID
	c.inflight, c.inflightID = "", ""
	quit := c.pendingQuit
	c.pendingQuit = false
	c.mu.Unlock()

	if quit {
		return nil, domain.ErrSessionQuit
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var (
		started = time.Now()
		last    = started
		spent   time.Duration
		waiting bool
	)

	for {
		resp, done, err := c.poll(ctx, &waiting)
		if done {
			c.observe(action, resp, err, time.Since(started))
			return resp, err
		}

		now := time.Now()
		if !waiting {
			spent += now.Sub(last)
		}
		last = now

		if timeout > 0 && spent >= timeout {
			c.orphan(id)
			err := fmt.Errorf("%w: %s after %s", domain.ErrDriverTimeout, actionName(action), timeout)
			c.observe(action, nil, err, time.Since(started))
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll reads the status slot, then the response slot. done reports that
// AwaitResponse should return resp and err. A shutdown status that arrives
// together with a response is remembered for the next Send or AwaitResponse.
func (c *Channel) poll(ctx context.Context, waiting *bool) (resp domain.Response, done bool, err error) {
	st, hasStatus, err := c.mailbox.TakeStatus(ctx)
	if err != nil {
		return nil, true, err
	}
	status := strings.ToUpper(strings.TrimSpace(st))

	if hasStatus && status == statusError {
		msg := "unspecified driver error"
		if raw, ok, _ := c.mailbox.TakeResponse(ctx); ok && len(raw) > 0 {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, true, &domain.DriverError{Message: msg}
	}

	raw, ok, err := c.mailbox.TakeResponse(ctx)
	if err != nil {
		return nil, true, err
	}
	if ok && c.stale(ctx, raw) {
		ok = false
		if quitReply(raw) {
			return nil, true, domain.ErrSessionQuit
		}
	}
	if ok {
		if status == statusShutdown {
			c.mu.Lock()
			c.pendingQuit = true
			c.mu.Unlock()
		}
		return DecodeResponse(raw), true, nil
	}
	if !hasStatus {
		return nil, false, nil
	}

	switch status {
	case statusWaitingForUser:
		if !*waiting {
			c.log.Debug().Msg("driver waiting for user")
		}
		*waiting = true
	case statusReady:
		return domain.StatusResponse{Value: domain.StatusReady}, true, nil
	case statusCompleted, statusData:
		*waiting = false
	case statusShutdown:
		return nil, true, domain.ErrSessionQuit
	default:
		c.log.Warn().Str("status", st).Msg("unknown driver status")
	}
	return nil, false, nil
}

// write waits until the driver has taken the previous command, then writes cmd
func (c *Channel) write(ctx context.Context, cmd *domain.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.waitCommandClear(ctx); err != nil {
		return err
	}

	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	payload, err := EncodeCommand(*cmd)
	if err != nil {
		return err
	}
	if err := c.mailbox.PutCommand(ctx, payload); err != nil {
		return err
	}

	c.observer.CommandSent(cmd.Action)
	c.log.Debug().Str("id", cmd.ID).Str("action", string(cmd.Action)).Msg("command sent")
	return nil
}

func (c *Channel) waitCommandClear(ctx context.Context) error {
	pending, err := c.mailbox.CommandPending(ctx)
	if err != nil || !pending {
		return err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if pending, err = c.mailbox.CommandPending(ctx); err != nil || !pending {
			return err
		}
	}
}

// orphan remembers the id of a command that timed out before its reply arrived
func (c *Channel) orphan(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orphans = append(c.orphans, id)
	if len(c.orphans) > maxOrphans {
		c.orphans = c.orphans[len(c.orphans)-maxOrphans:]
	}
}

// stale reports whether raw answers a timed-out command. A reply that echoes
// an id is stale only when that id timed out. A reply without an id is stale
// while a timed-out command is outstanding and the driver has not yet taken
// the current command; once it has, the driver has moved on and the
// timed-out ids are forgotten.
func (c *Channel) stale(ctx context.Context, raw []byte) bool {
	c.mu.Lock()
	n := len(c.orphans)
	c.mu.Unlock()
	if n == 0 {
		return false
	}

	if id := ResponseID(raw); id != "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		idx := slices.Index(c.orphans, id)
		if idx < 0 {
			return false
		}
		c.orphans = slices.Delete(c.orphans, idx, idx+1)
		c.log.Warn().Str("id", id).Msg("discarding late reply to a timed-out command")
		return true
	}

	pending, err := c.mailbox.CommandPending(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || !pending {
		c.orphans = nil
		return false
	}
	c.log.Warn().Str("id", c.orphans[0]).Msg("discarding late reply to a timed-out command")
	c.orphans = c.orphans[1:]
	return true
}

// dropOrphanReply clears a reply left in the response slot by a timed-out
// command before the next command is written. A quit reply is kept as a
// pending quit.
func (c *Channel) dropOrphanReply(ctx context.Context) error {
	c.mu.Lock()
	n := len(c.orphans)
	c.mu.Unlock()
	if n == 0 {
		return nil
	}

	raw, ok, err := c.mailbox.TakeResponse(ctx)
	if err != nil || !ok {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := ResponseID(raw)
	switch idx := slices.Index(c.orphans, id); {
	case id == "":
		c.orphans = c.orphans[1:]
	case idx >= 0:
		c.orphans = slices.Delete(c.orphans, idx, idx+1)
	}
	c.log.Warn().Str("id", id).Msg("discarding late reply to a timed-out command")
	if quitReply(raw) {
		return domain.ErrSessionQuit
	}
	return nil
}

func quitReply(raw []byte) bool {
	st, ok := DecodeResponse(raw).(domain.StatusResponse)
	return ok && st.Value.IsQuit()
}

func (c *Channel) release() {
	select {
	case <-c.slot:
	default:
	}
}

func (c *Channel) observe(action domain.Action, resp domain.Response, err error, wait time.Duration) {
	kind := "error"
	switch {
	case resp != nil:
		kind = string(resp.Type())
	case errors.Is(err, domain.ErrDriverTimeout):
		kind = "timeout"
	case errors.Is(err, domain.ErrSessionQuit):
		kind = "quit"
	}
	c.observer.ResponseReceived(action, kind, wait)
}

func actionName(a domain.Action) string {
	if a == "" {
		return "wait"
	}
	return string(a)
}
