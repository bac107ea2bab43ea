package domain

import "strings"

// Action is the command tag understood by the automation driver
type Action string

const (
	ActionOpenURL            Action = "OPEN_URL"
	ActionSearch             Action = "SEARCH"
	ActionShowItemPrompt     Action = "SHOW_ITEM_PROMPT"
	ActionShowMultipleChoice Action = "SHOW_MULTIPLE_CHOICE"
	ActionGetPriceInput      Action = "GET_PRICE_INPUT"
	ActionShowMessage        Action = "SHOW_MESSAGE"
	ActionSessionComplete    Action = "SESSION_COMPLETE"
	ActionListComplete       Action = "LIST_COMPLETE"
	ActionLookupResult       Action = "LOOKUP_RESULT"
	ActionTerminate          Action = "TERMINATE"
)

// Param is one named command parameter. Order is preserved on the wire.
type Param struct {
	Name  string
	Value any
}

// Command is a single request to the driver
type Command struct {
	ID     string
	Action Action
	Params []Param
}

// Param returns the value of a named parameter, or nil
func (c Command) Param(name string) any {
	for _, p := range c.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

func OpenURLCommand(url string) Command {
	return Command{Action: ActionOpenURL, Params: []Param{{"url", url}}}
}

func SearchCommand(term string) Command {
	return Command{Action: ActionSearch, Params: []Param{{"term", term}}}
}

// ItemPrompt describes the item dialog shown while the human shops
type ItemPrompt struct {
	Name            string
	IsKnown         bool
	URL             string
	ItemDescription string
	DefaultQuantity int
}

func ShowItemPromptCommand(p ItemPrompt) Command {
	qty := p.DefaultQuantity
	if qty < 1 {
		qty = 1
	}
	return Command{Action: ActionShowItemPrompt, Params: []Param{
		{"name", p.Name},
		{"is_known", p.IsKnown},
		{"url", p.URL},
		{"item_description", p.ItemDescription},
		{"default_quantity", qty},
	}}
}

func ShowMultipleChoiceCommand(title string, allowSkip bool, options []string) Command {
	return Command{Action: ActionShowMultipleChoice, Params: []Param{
		{"title", title},
		{"allow_skip", allowSkip},
		{"options", options},
	}}
}

func GetPriceInputCommand() Command {
	return Command{Action: ActionGetPriceInput}
}

func ShowMessageCommand(text string) Command {
	return Command{Action: ActionShowMessage, Params: []Param{{"text", text}}}
}

func SessionCompleteCommand() Command {
	return Command{Action: ActionSessionComplete}
}

func ListCompleteCommand() Command {
	return Command{Action: ActionListComplete}
}

func TerminateCommand() Command {
	return Command{Action: ActionTerminate}
}

// LookupResultCommand reports catalog info for a URL the human navigated to
func LookupResultCommand(r LookupResult) Command {
	params := []Param{
		{"url", r.URL},
		{"found", r.Found},
		{"product_id", r.ProductID},
	}
	if r.Item != nil {
		params = append(params,
			Param{"description", r.Item.Description},
			Param{"modifier", r.Item.Modifier},
			Param{"priority", r.Item.NormalizedPriority()},
			Param{"default_quantity", r.Item.DefaultQuantity},
		)
	}
	if r.Stats != nil {
		params = append(params, Param{"purchase_count", r.Stats.PurchaseCount})
		if r.Stats.LastPurchased != nil {
			params = append(params, Param{"last_purchased", r.Stats.LastPurchased.Format("2006-01-02")})
		}
	}
	return Command{Action: ActionLookupResult, Params: params}
}

// Status is the value of a status response
type Status string

const (
	StatusReady        Status = "ready"
	StatusShutdown     Status = "shutdown"
	StatusQuit         Status = "quit"
	StatusSkipped      Status = "skipped"
	StatusCancelled    Status = "cancelled"
	StatusSessionReset Status = "session_reset"
	StatusContinue     Status = "continue"
)

// ParseStatus returns the status for a value, case-insensitively
func ParseStatus(v string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case StatusReady, StatusShutdown, StatusQuit, StatusSkipped,
		StatusCancelled, StatusSessionReset, StatusContinue:
		return s, true
	}
	return "", false
}

// IsQuit reports whether the status ends the whole session
func (s Status) IsQuit() bool {
	return s == StatusQuit || s == StatusShutdown
}

// SearchAgainChoice is the choice index meaning "search again"
const SearchAgainChoice = 999

// ResponseType is the wire discriminator of a response
type ResponseType string

const (
	TypeStatus         ResponseType = "status"
	TypeChoice         ResponseType = "choice"
	TypePrice          ResponseType = "price"
	TypeAddAndPurchase ResponseType = "add_and_purchase"
	TypePurchase       ResponseType = "purchase"
	TypeLookupRequest  ResponseType = "lookup_request"
	TypeError          ResponseType = "error"
	TypeMalformed      ResponseType = "malformed"
)

// Response is a decoded driver response. The set of implementations is closed.
type Response interface {
	Type() ResponseType
	isResponse()
}

type StatusResponse struct {
	Value Status
}

type ChoiceResponse struct {
	Index int
}

// IsSearchAgain reports whether the human asked to search again
func (c ChoiceResponse) IsSearchAgain() bool {
	return c.Index == SearchAgainChoice
}

type PriceResponse struct {
	Amount Cents
}

// AddAndPurchaseResponse is the structured capture sent from the add/purchase dialog.
// Blank strings and nil pointers mean the human left the field empty.
type AddAndPurchaseResponse struct {
	Description      string
	Modifier         string
	Priority         int
	DefaultQuantity  int
	URL              string
	Price            *Cents
	PurchaseQuantity int
	Subscribable     *bool
}

// PurchaseResponse confirms a purchase of the item the prompt was shown for
type PurchaseResponse struct {
	Price        *Cents
	Quantity     int
	Subscribable *bool
}

type LookupRequest struct {
	URL string
}

type ErrorResponse struct {
	Message string
}

// MalformedResponse carries a payload that matched no known shape
type MalformedResponse struct {
	Raw    string
	Reason string
}

func (StatusResponse) Type() ResponseType         { return TypeStatus }
func (ChoiceResponse) Type() ResponseType         { return TypeChoice }
func (PriceResponse) Type() ResponseType          { return TypePrice }
func (AddAndPurchaseResponse) Type() ResponseType { return TypeAddAndPurchase }
func (PurchaseResponse) Type() ResponseType       { return TypePurchase }
func (LookupRequest) Type() ResponseType          { return TypeLookupRequest }
func (ErrorResponse) Type() ResponseType          { return TypeError }
func (MalformedResponse) Type() ResponseType      { return TypeMalformed }

func (StatusResponse) isResponse()         {}
func (ChoiceResponse) isResponse()         {}
func (PriceResponse) isResponse()          {}
func (AddAndPurchaseResponse) isResponse() {}
func (PurchaseResponse) isResponse()       {}
func (LookupRequest) isResponse()          {}
func (ErrorResponse) isResponse()          {}
func (MalformedResponse) isResponse()      {}
