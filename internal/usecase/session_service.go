package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// ItemOutcome is how a list item finished within a run
type ItemOutcome string

const (
	OutcomePurchased  ItemOutcome = "purchased"
	OutcomeSkipped    ItemOutcome = "skipped"
	OutcomeUnresolved ItemOutcome = "unresolved"
)

// SessionObserver receives run progress, e.g. for metrics
type SessionObserver interface {
	ItemFinished(outcome ItemOutcome)
	RunFinished(summary RunSummary)
}

type nopObserver struct{}

func (nopObserver) ItemFinished(ItemOutcome) {}
func (nopObserver) RunFinished(RunSummary)   {}

// SessionConfig holds configuration for the shopping session
type SessionConfig struct {
	// MachineTimeout bounds driver steps that need no human, such as OPEN_URL
	MachineTimeout time.Duration
	// ReadyTimeout bounds the startup handshake
	ReadyTimeout       time.Duration
	PostListActions    bool
	PromptMissingPrice bool
	CleanSearchTerms   bool
	Observer           SessionObserver
	Logger             zerolog.Logger
}

// RunSummary reports what a run did
type RunSummary struct {
	RunID      string        `json:"runId"`
	Pending    int           `json:"pending"`
	Purchased  int           `json:"purchased"`
	Skipped    int           `json:"skipped"`
	Unresolved int           `json:"unresolved"`
	Remaining  int           `json:"remaining"`
	Dropped    []string      `json:"dropped,omitempty"`
	Quit       bool          `json:"quit"`
	Duration   time.Duration `json:"duration"`
}

func (r *RunSummary) add(outcome ItemOutcome) {
	switch outcome {
	case OutcomePurchased:
		r.Purchased++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Unresolved++
	}
}

// SessionService runs one shopping session: it walks the pending list items
// through the item state machine and writes the list back exactly once.
type SessionService struct {
	driver   domain.DriverChannel
	lists    domain.ListSource
	catalog  *CatalogService
	matcher  *MatchingService
	queries  *SearchQueryBuilder
	observer SessionObserver
	config   SessionConfig
	log      zerolog.Logger

	mu      sync.Mutex
	state   *ListState
	loaded  bool
	flushed bool
}

// NewSessionService creates a new session service with dependencies
func NewSessionService(
	driver domain.DriverChannel,
	lists domain.ListSource,
	catalog *CatalogService,
	matcher *MatchingService,
	config SessionConfig,
) *SessionService {
	log := config.Logger.With().Str("component", "session").Logger()

	observer := config.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	if config.MachineTimeout == 0 {
		config.MachineTimeout = 5 * time.Minute
	}
	if config.ReadyTimeout == 0 {
		config.ReadyTimeout = 2 * time.Minute
	}

	return &SessionService{
		driver:   driver,
		lists:    lists,
		catalog:  catalog,
		matcher:  matcher,
		queries:  NewSearchQueryBuilder(config.CleanSearchTerms, config.Logger),
		observer: observer,
		config:   config,
		log:      log,
		state:    NewListState(config.Logger),
	}
}

// Run executes one session. The list is flushed to the list source exactly
// once on every path out of Run once it has been loaded. An operator quit is
// reported through RunSummary.Quit, not as an error.
func (s *SessionService) Run(ctx context.Context) (summary RunSummary, err error) {
	started := time.Now()
	summary.RunID = uuid.NewString()
	log := s.log.With().Str("run_id", summary.RunID).Logger()

	s.mu.Lock()
	s.state = NewListState(log)
	s.loaded = false
	s.flushed = false
	s.mu.Unlock()

	defer func() {
		s.terminate(ctx, log)
		summary.Duration = time.Since(started)
		s.observer.RunFinished(summary)
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
		}
		if err != nil {
			log.Error().Err(err).Msg("session failed")
			s.showError(ctx, err)
		}
		if flushErr := s.flush(context.WithoutCancel(ctx)); flushErr != nil {
			if err == nil {
				err = flushErr
			} else {
				log.Error().Err(flushErr).Msg("final flush failed")
			}
		}
	}()

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return summary, fmt.Errorf("load catalog: %w", err)
	}

	items, err := s.lists.LoadList(ctx)
	if err != nil {
		return summary, fmt.Errorf("load list: %w", err)
	}

	s.mu.Lock()
	summary.Dropped = s.state.Load(items)
	s.loaded = true
	s.mu.Unlock()

	if err := s.handshake(ctx); err != nil {
		return summary, err
	}

	s.mu.Lock()
	pending := s.state.Pending()
	listLen := s.state.Len()
	s.mu.Unlock()

	summary.Pending = len(pending)
	log.Info().
		Int("catalog", len(catalog)).
		Int("list", listLen).
		Int("pending", len(pending)).
		Msg("session started")

	for i, item := range pending {
		if err := ctx.Err(); err != nil {
			summary.Remaining = len(pending) - i
			return summary, err
		}

		m := newItemMachine(s, item, catalog, log)
		outcome, err := m.run(ctx)
		if errors.Is(err, domain.ErrSessionQuit) {
			log.Info().Str("item", item.Name).Int("remaining", len(pending)-i).Msg("operator quit")
			summary.Quit = true
			summary.Remaining = len(pending) - i
			return summary, nil
		}
		if err != nil {
			summary.Remaining = len(pending) - i
			return summary, fmt.Errorf("item %q: %w", item.Name, err)
		}

		summary.add(outcome)
		s.observer.ItemFinished(outcome)

		if m.catalogChanged {
			if catalog, err = s.catalog.Catalog(ctx); err != nil {
				return summary, fmt.Errorf("reload catalog: %w", err)
			}
		}
	}

	quit, err := s.finishList(ctx, log)
	summary.Quit = quit
	if err != nil {
		return summary, err
	}

	log.Info().
		Int("purchased", summary.Purchased).
		Int("skipped", summary.Skipped).
		Int("unresolved", summary.Unresolved).
		Msg("session complete")

	return summary, nil
}

// FlushOnExit writes the list if the current run has not done so yet.
// Errors are logged and swallowed.
func (s *SessionService) FlushOnExit(ctx context.Context) {
	if err := s.flush(ctx); err != nil {
		s.log.Error().Err(err).Msg("exit flush failed")
	}
}

// Snapshot returns the working list of the current or last run
func (s *SessionService) Snapshot() []domain.ShoppingListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

func (s *SessionService) upsert(name string, update domain.ShoppingListUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Upsert(name, update)
}

func (s *SessionService) flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded || s.flushed {
		s.mu.Unlock()
		return nil
	}
	s.flushed = true
	items := s.state.Snapshot()
	s.mu.Unlock()

	if err := s.lists.SaveList(ctx, items); err != nil {
		return fmt.Errorf("save list: %w", err)
	}
	s.log.Info().Int("items", len(items)).Msg("list saved")
	return nil
}

// handshake clears the mailbox and waits for the driver to report ready
func (s *SessionService) handshake(ctx context.Context) error {
	if err := s.driver.Reset(ctx); err != nil {
		return fmt.Errorf("reset driver channel: %w", err)
	}

	deadline := time.Now().Add(s.config.ReadyTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.ErrDriverNotReady
		}

		resp, err := s.driver.AwaitResponse(ctx, remaining)
		switch {
		case errors.Is(err, domain.ErrDriverTimeout):
			return fmt.Errorf("%w: no ready status within %s", domain.ErrDriverNotReady, s.config.ReadyTimeout)
		case err != nil:
			return fmt.Errorf("%w: %w", domain.ErrDriverNotReady, err)
		}

		if st, ok := resp.(domain.StatusResponse); ok && st.Value == domain.StatusReady {
			s.log.Debug().Msg("driver ready")
			return nil
		}
		s.log.Debug().Str("type", string(resp.Type())).Msg("ignoring response while waiting for ready")
	}
}

// finishList tells the driver the list is done and, when enabled, serves
// post-list actions until the operator quits.
func (s *SessionService) finishList(ctx context.Context, log zerolog.Logger) (bool, error) {
	if !s.config.PostListActions {
		_, err := s.driver.SendAndAwait(ctx, domain.SessionCompleteCommand(), s.config.MachineTimeout)
		switch {
		case errors.Is(err, domain.ErrSessionQuit):
			return true, nil
		case domain.IsDriverFailure(err):
			log.Warn().Err(err).Msg("session complete not acknowledged")
			return false, nil
		}
		return false, err
	}

	resp, err := s.driver.SendAndAwait(ctx, domain.ListCompleteCommand(), 0)
	for {
		switch {
		case errors.Is(err, domain.ErrSessionQuit):
			return true, nil
		case domain.IsDriverFailure(err):
			log.Warn().Err(err).Msg("driver failure during post-list actions")
		case err != nil:
			return false, err
		default:
			if done := s.postListAction(ctx, log, resp); done {
				return true, nil
			}
		}
		resp, err = s.driver.AwaitResponse(ctx, 0)
	}
}

// postListAction handles one response after the list. It reports true when the operator quit.
func (s *SessionService) postListAction(ctx context.Context, log zerolog.Logger, resp domain.Response) bool {
	switch r := resp.(type) {
	case domain.StatusResponse:
		if r.Value.IsQuit() {
			return true
		}
		log.Debug().Str("status", string(r.Value)).Msg("post-list status")
	case domain.LookupRequest:
		s.answerLookup(ctx, log, r.URL)
	case domain.AddAndPurchaseResponse:
		if r.Price == nil {
			price, err := s.askPrice(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrSessionQuit) {
					return true
				}
				log.Warn().Err(err).Msg("price prompt failed")
			}
			r.Price = price
		}
		if _, err := s.catalog.ApplyPurchase(ctx, r, nil); err != nil {
			log.Warn().Err(err).Str("url", r.URL).Msg("post-list purchase rejected")
		}
	default:
		log.Warn().Str("type", string(resp.Type())).Msg("ignoring post-list response")
	}
	return false
}

// answerLookup resolves a URL and reports it back without waiting for a reply
func (s *SessionService) answerLookup(ctx context.Context, log zerolog.Logger, url string) {
	result, err := s.catalog.Lookup(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("lookup failed")
		result = &domain.LookupResult{URL: url}
	}
	if err := s.driver.Notify(ctx, domain.LookupResultCommand(*result)); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to send lookup result")
	}
}

// askPrice prompts for a price. A nil price means the operator gave none.
func (s *SessionService) askPrice(ctx context.Context) (*domain.Cents, error) {
	if !s.config.PromptMissingPrice {
		return nil, nil
	}

	resp, err := s.driver.SendAndAwait(ctx, domain.GetPriceInputCommand(), 0)
	if err != nil {
		return nil, err
	}

	switch r := resp.(type) {
	case domain.PriceResponse:
		return r.Amount.Ptr(), nil
	case domain.StatusResponse:
		if r.Value.IsQuit() {
			return nil, domain.ErrSessionQuit
		}
	}
	return nil, nil
}

func (s *SessionService) showError(ctx context.Context, cause error) {
	if errors.Is(cause, domain.ErrDriverNotReady) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.driver.Notify(ctx, domain.ShowMessageCommand("Grocery session stopped: "+cause.Error())); err != nil {
		s.log.Debug().Err(err).Msg("could not show error message")
	}
}

func (s *SessionService) terminate(ctx context.Context, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.driver.Notify(ctx, domain.TerminateCommand()); err != nil {
		log.Debug().Err(err).Msg("could not send terminate")
	}
}
