package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

type itemState int

const (
	statePending itemState = iota
	stateResolving
	stateKnown
	stateUnknown
	stateAwaitingDisambiguation
	stateAwaitingUserAction
	statePurchased
	stateSkipped
	stateUnresolved
)

func (s itemState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateResolving:
		return "resolving"
	case stateKnown:
		return "known"
	case stateUnknown:
		return "unknown"
	case stateAwaitingDisambiguation:
		return "awaiting_disambiguation"
	case stateAwaitingUserAction:
		return "awaiting_user_action"
	case statePurchased:
		return "purchased"
	case stateSkipped:
		return "skipped"
	case stateUnresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("itemState(%d)", int(s))
	}
}

// itemMachine drives a single list item from Pending to a terminal state
type itemMachine struct {
	s       *SessionService
	item    domain.ShoppingListItem
	catalog []domain.CatalogItem
	log     zerolog.Logger

	state        itemState
	resolution   domain.Resolution
	candidate    *domain.MatchCandidate
	forceUnknown bool
	// first holds a response that arrived as the answer to the search
	// command and must be handled as a user action
	first    domain.Response
	purchase *PurchaseOutcome

	catalogChanged bool
}

func newItemMachine(s *SessionService, item domain.ShoppingListItem, catalog []domain.CatalogItem, log zerolog.Logger) *itemMachine {
	return &itemMachine{
		s:       s,
		item:    item,
		catalog: catalog,
		log:     log.With().Str("item", item.Name).Logger(),
		state:   statePending,
	}
}

// run steps the machine until the item finishes. Only ErrSessionQuit and
// run-scoped failures are returned as errors.
func (m *itemMachine) run(ctx context.Context) (ItemOutcome, error) {
	for {
		var (
			next itemState
			err  error
		)

		switch m.state {
		case statePending:
			next = stateResolving
		case stateResolving:
			next = m.resolve()
		case stateKnown:
			next, err = m.navigate(ctx)
		case stateUnknown:
			next, err = m.search(ctx)
		case stateAwaitingDisambiguation:
			next, err = m.disambiguate(ctx)
		case stateAwaitingUserAction:
			next, err = m.awaitUserAction(ctx)
		case statePurchased:
			m.completePurchased()
			return OutcomePurchased, nil
		case stateSkipped:
			m.s.upsert(m.item.Name, domain.SkippedUpdate())
			m.log.Info().Msg("item skipped")
			return OutcomeSkipped, nil
		case stateUnresolved:
			m.log.Warn().Msg("item left unresolved")
			return OutcomeUnresolved, nil
		}

		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSessionQuit):
				return "", err
			case domain.IsDriverFailure(err):
				m.log.Warn().Err(err).Str("state", m.state.String()).Msg("driver failure, skipping item")
				next = stateSkipped
			default:
				return "", err
			}
		}

		m.log.Debug().Str("from", m.state.String()).Str("to", next.String()).Msg("transition")
		m.state = next
	}
}

func (m *itemMachine) resolve() itemState {
	m.candidate = nil
	if m.forceUnknown {
		m.forceUnknown = false
		return stateUnknown
	}

	m.resolution = m.s.matcher.ResolveAndDecide(m.item.Name, m.catalog)
	switch m.resolution.Kind {
	case domain.ResolutionSelected:
		m.candidate = m.resolution.Selected
		m.log.Info().
			Str("id", m.candidate.Item.ID).
			Str("description", m.candidate.Item.Description).
			Str("kind", string(m.candidate.Kind)).
			Msg("matched catalog item")
		return stateKnown
	case domain.ResolutionAmbiguous:
		return stateAwaitingDisambiguation
	default:
		return stateUnknown
	}
}

// navigate opens the candidate page and shows the item prompt
func (m *itemMachine) navigate(ctx context.Context) (itemState, error) {
	item := m.candidate.Item

	resp, err := m.s.driver.SendAndAwait(ctx, domain.OpenURLCommand(item.URL), m.s.config.MachineTimeout)
	if err != nil {
		return 0, err
	}
	if next, handled, err := m.interrupting(resp); handled {
		return next, err
	}

	prompt := domain.ShowItemPromptCommand(domain.ItemPrompt{
		Name:            m.item.Name,
		IsKnown:         true,
		URL:             item.URL,
		ItemDescription: item.CombinedText(),
		DefaultQuantity: item.DefaultQuantity,
	})
	if err := m.s.driver.Send(ctx, prompt); err != nil {
		return 0, err
	}
	return stateAwaitingUserAction, nil
}

// search sends the cleaned name to the driver's search. The reply may be the
// operator's action for the item, so it is awaited without a timeout.
func (m *itemMachine) search(ctx context.Context) (itemState, error) {
	term := m.s.queries.Build(m.item.Name)

	resp, err := m.s.driver.SendAndAwait(ctx, domain.SearchCommand(term), 0)
	if err != nil {
		return 0, err
	}
	if next, handled, err := m.interrupting(resp); handled {
		return next, err
	}
	if _, ack := resp.(domain.StatusResponse); !ack {
		m.first = resp
	}

	m.log.Info().Str("term", term).Msg("searching for new item")
	return stateAwaitingUserAction, nil
}

func (m *itemMachine) disambiguate(ctx context.Context) (itemState, error) {
	candidates := m.resolution.Candidates
	options := make([]string, 0, len(candidates)+1)
	for _, c := range candidates {
		options = append(options, candidateLabel(c.Item))
	}
	options = append(options, fmt.Sprintf("Search for new item: '%s'", m.item.Name))

	title := fmt.Sprintf("Multiple matches for '%s'", m.item.Name)
	resp, err := m.s.driver.SendAndAwait(ctx, domain.ShowMultipleChoiceCommand(title, true, options), 0)
	if err != nil {
		return 0, err
	}

	switch r := resp.(type) {
	case domain.ChoiceResponse:
		switch {
		case r.Index >= 1 && r.Index <= len(candidates):
			picked := candidates[r.Index-1]
			m.candidate = &picked
			m.log.Info().Str("id", picked.Item.ID).Msg("operator picked catalog item")
			return stateKnown, nil
		case r.Index == len(candidates)+1 || r.IsSearchAgain():
			return stateUnknown, nil
		default:
			m.log.Warn().Int("choice", r.Index).Msg("invalid choice")
			return stateSkipped, nil
		}
	case domain.StatusResponse:
		if r.Value.IsQuit() {
			return 0, domain.ErrSessionQuit
		}
		return stateSkipped, nil
	case domain.ErrorResponse:
		return 0, &domain.DriverError{Message: r.Message}
	default:
		m.log.Warn().Str("type", string(resp.Type())).Msg("unexpected disambiguation response")
		return stateSkipped, nil
	}
}

// awaitUserAction waits, without a timeout, for the operator to finish the item
func (m *itemMachine) awaitUserAction(ctx context.Context) (itemState, error) {
	for {
		resp := m.first
		m.first = nil
		if resp == nil {
			var err error
			if resp, err = m.s.driver.AwaitResponse(ctx, 0); err != nil {
				return 0, err
			}
		}

		switch r := resp.(type) {
		case domain.AddAndPurchaseResponse:
			return m.applyAddAndPurchase(ctx, r)
		case domain.PurchaseResponse:
			return m.applyPurchase(ctx, r)
		case domain.LookupRequest:
			m.s.answerLookup(ctx, m.log, r.URL)
		case domain.ChoiceResponse:
			if r.IsSearchAgain() {
				m.forceUnknown = true
				return stateResolving, nil
			}
			m.log.Debug().Int("choice", r.Index).Msg("ignoring choice")
		case domain.StatusResponse:
			switch {
			case r.Value.IsQuit():
				return 0, domain.ErrSessionQuit
			case r.Value == domain.StatusSkipped || r.Value == domain.StatusCancelled:
				return stateSkipped, nil
			}
			m.log.Debug().Str("status", string(r.Value)).Msg("ignoring status")
		case domain.ErrorResponse:
			return 0, &domain.DriverError{Message: r.Message}
		case domain.MalformedResponse:
			m.log.Warn().Str("reason", r.Reason).Str("raw", r.Raw).Msg("malformed response")
			return stateSkipped, nil
		default:
			m.log.Warn().Str("type", string(resp.Type())).Msg("ignoring response")
		}
	}
}

func (m *itemMachine) applyAddAndPurchase(ctx context.Context, r domain.AddAndPurchaseResponse) (itemState, error) {
	if r.Price == nil {
		price, err := m.s.askPrice(ctx)
		if err != nil {
			return 0, err
		}
		r.Price = price
	}

	var fallback *domain.CatalogItem
	if m.candidate != nil {
		fallback = &m.candidate.Item
	}

	outcome, err := m.s.catalog.ApplyPurchase(ctx, r, fallback)
	if err != nil {
		return m.rejected(err)
	}
	m.purchase = outcome
	m.catalogChanged = true
	return statePurchased, nil
}

func (m *itemMachine) applyPurchase(ctx context.Context, r domain.PurchaseResponse) (itemState, error) {
	if r.Price == nil {
		price, err := m.s.askPrice(ctx)
		if err != nil {
			return 0, err
		}
		r.Price = price
	}

	if m.candidate == nil {
		m.log.Warn().Msg("purchase without a catalog item, ledger not updated")
		quantity := max(r.Quantity, 1)
		outcome := &PurchaseOutcome{Quantity: quantity}
		if r.Price != nil {
			outcome.UnitPrice = r.Price
			outcome.Total = r.Price.Mul(quantity)
		}
		m.purchase = outcome
		return statePurchased, nil
	}

	outcome, err := m.s.catalog.RecordKnownPurchase(ctx, m.candidate.Item, r)
	if err != nil {
		return m.rejected(err)
	}
	m.purchase = outcome
	m.catalogChanged = len(outcome.Updated) > 0
	return statePurchased, nil
}

// rejected maps item-scoped catalog failures to Unresolved
func (m *itemMachine) rejected(err error) (itemState, error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProductURL),
		errors.Is(err, domain.ErrMissingDescription),
		errors.Is(err, domain.ErrCatalogMutation):
		m.log.Warn().Err(err).Msg("purchase rejected")
		return stateUnresolved, nil
	}
	return 0, err
}

// interrupting handles responses that end a machine-speed step early
func (m *itemMachine) interrupting(resp domain.Response) (itemState, bool, error) {
	switch r := resp.(type) {
	case domain.StatusResponse:
		if r.Value.IsQuit() {
			return 0, true, domain.ErrSessionQuit
		}
		if r.Value == domain.StatusSkipped {
			return stateSkipped, true, nil
		}
	case domain.ErrorResponse:
		return 0, true, &domain.DriverError{Message: r.Message}
	case domain.MalformedResponse:
		m.log.Warn().Str("reason", r.Reason).Msg("malformed acknowledgement")
		return stateSkipped, true, nil
	}
	return 0, false, nil
}

func (m *itemMachine) completePurchased() {
	p := m.purchase
	m.s.upsert(m.item.Name, domain.PurchasedUpdate(p.Quantity, p.Total, p.Item.ID, p.URL))
	m.log.Info().
		Str("id", p.Item.ID).
		Int("quantity", p.Quantity).
		Stringer("total", p.Total).
		Msg("item purchased")
}

func candidateLabel(item domain.CatalogItem) string {
	label := item.Description
	if item.Modifier != "" {
		label += " (" + item.Modifier + ")"
	}
	return fmt.Sprintf("%s [priority %d]", label, item.NormalizedPriority())
}
