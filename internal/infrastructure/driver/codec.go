package driver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/grocerybot/assistant/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EncodeCommand renders the command envelope: {"id":..,"action":..,"params":{..}}
func EncodeCommand(cmd domain.Command) ([]byte, error) {
	out := []byte(`{}`)
	var err error

	if out, err = sjson.SetBytes(out, "id", cmd.ID); err != nil {
		return nil, fmt.Errorf("encode id: %w", err)
	}
	if out, err = sjson.SetBytes(out, "action", string(cmd.Action)); err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "params", []byte(`{}`)); err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	for _, p := range cmd.Params {
		if out, err = sjson.SetBytes(out, "params."+escapePath(p.Name), p.Value); err != nil {
			return nil, fmt.Errorf("encode param %s: %w", p.Name, err)
		}
	}
	return out, nil
}

// escapePath escapes the characters sjson treats as path syntax
func escapePath(name string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(name)
}

// ResponseID returns the command id a response echoes, or "" when it has none
func ResponseID(raw []byte) string {
	return strings.TrimSpace(gjson.GetBytes(raw, "id").String())
}

// DecodeResponse turns a raw response payload into a typed response.
// It never fails: anything unrecognized becomes a MalformedResponse.
func DecodeResponse(raw []byte) domain.Response {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return malformed(text, "empty response")
	}
	if !gjson.Valid(text) {
		return malformed(text, "invalid JSON")
	}

	root := gjson.Parse(text)
	if !root.IsObject() {
		return malformed(text, "response is not an object")
	}

	typ := domain.ResponseType(strings.ToLower(strings.TrimSpace(root.Get("type").String())))
	value := root.Get("value")

	switch typ {
	case domain.TypeStatus:
		st, ok := domain.ParseStatus(value.String())
		if !ok {
			return malformed(text, fmt.Sprintf("unknown status %q", value.String()))
		}
		return domain.StatusResponse{Value: st}

	case domain.TypeChoice:
		idx, ok := intValue(value)
		if !ok {
			return malformed(text, "choice is not an integer")
		}
		return domain.ChoiceResponse{Index: idx}

	case domain.TypePrice:
		amount, ok, err := centsValue(value)
		if err != nil || !ok {
			return malformed(text, "price is not an amount")
		}
		return domain.PriceResponse{Amount: amount}

	case domain.TypeAddAndPurchase:
		resp, err := decodeAddAndPurchase(root)
		if err != nil {
			return malformed(text, err.Error())
		}
		return resp

	case domain.TypePurchase:
		resp, err := decodePurchase(root)
		if err != nil {
			return malformed(text, err.Error())
		}
		return resp

	case domain.TypeLookupRequest:
		url := root.Get("url").String()
		if url == "" {
			url = value.String()
		}
		req := lookupPayload{URL: strings.TrimSpace(url)}
		if err := validate.Struct(req); err != nil {
			return malformed(text, "lookup_request without a URL")
		}
		return domain.LookupRequest{URL: req.URL}

	case domain.TypeError:
		msg := value.String()
		if msg == "" {
			msg = root.Get("message").String()
		}
		return domain.ErrorResponse{Message: msg}

	case "":
		return malformed(text, "missing type")
	default:
		return malformed(text, fmt.Sprintf("unknown type %q", typ))
	}
}

func malformed(raw, reason string) domain.MalformedResponse {
	return domain.MalformedResponse{Raw: raw, Reason: reason}
}

type lookupPayload struct {
	URL string `validate:"required"`
}

// addAndPurchasePayload is decoded weakly: the driver sends numbers as JSON
// numbers or strings and leaves unanswered fields blank.
type addAndPurchasePayload struct {
	Description      string `mapstructure:"description"`
	Modifier         string `mapstructure:"modifier"`
	Priority         string `mapstructure:"priority" validate:"omitempty,number"`
	DefaultQuantity  string `mapstructure:"default_quantity" validate:"omitempty,number"`
	URL              string `mapstructure:"url"`
	Price            string `mapstructure:"price"`
	PurchaseQuantity string `mapstructure:"purchase_quantity" validate:"omitempty,number"`
	Subscribable     string `mapstructure:"subscribable"`
}

type purchasePayload struct {
	Price        string `mapstructure:"price"`
	Quantity     string `mapstructure:"quantity" validate:"omitempty,number"`
	Subscribable string `mapstructure:"subscribable"`
}

func decodeAddAndPurchase(root gjson.Result) (domain.AddAndPurchaseResponse, error) {
	var p addAndPurchasePayload
	if err := decodePayload(root, &p); err != nil {
		return domain.AddAndPurchaseResponse{}, err
	}

	resp := domain.AddAndPurchaseResponse{
		Description: strings.TrimSpace(p.Description),
		Modifier:    strings.TrimSpace(p.Modifier),
		URL:         strings.TrimSpace(p.URL),
	}

	var err error
	if resp.Priority, err = optionalInt(p.Priority); err != nil {
		return resp, fmt.Errorf("priority: %w", err)
	}
	if resp.DefaultQuantity, err = optionalInt(p.DefaultQuantity); err != nil {
		return resp, fmt.Errorf("default_quantity: %w", err)
	}
	if resp.PurchaseQuantity, err = optionalInt(p.PurchaseQuantity); err != nil {
		return resp, fmt.Errorf("purchase_quantity: %w", err)
	}
	if resp.Price, err = optionalCents(p.Price); err != nil {
		return resp, fmt.Errorf("price: %w", err)
	}
	if resp.Subscribable, err = optionalBool(p.Subscribable); err != nil {
		return resp, fmt.Errorf("subscribable: %w", err)
	}
	return resp, nil
}

func decodePurchase(root gjson.Result) (domain.PurchaseResponse, error) {
	var p purchasePayload
	if err := decodePayload(root, &p); err != nil {
		return domain.PurchaseResponse{}, err
	}

	var (
		resp domain.PurchaseResponse
		err  error
	)
	if resp.Quantity, err = optionalInt(p.Quantity); err != nil {
		return resp, fmt.Errorf("quantity: %w", err)
	}
	if resp.Price, err = optionalCents(p.Price); err != nil {
		return resp, fmt.Errorf("price: %w", err)
	}
	if resp.Subscribable, err = optionalBool(p.Subscribable); err != nil {
		return resp, fmt.Errorf("subscribable: %w", err)
	}
	return resp, nil
}

// decodePayload weakly decodes the response object, or its "value" object
// when the fields are nested there, into out and validates it.
func decodePayload(root gjson.Result, out any) error {
	src := root
	if v := root.Get("value"); v.IsObject() {
		src = v
	}

	fields, ok := src.Value().(map[string]interface{})
	if !ok {
		return fmt.Errorf("payload is not an object")
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(fields); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func intValue(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		return n, err == nil
	default:
		return 0, false
	}
}

func centsValue(v gjson.Result) (domain.Cents, bool, error) {
	switch v.Type {
	case gjson.Number:
		if v.Float() < 0 {
			return 0, false, fmt.Errorf("negative amount")
		}
		return domain.CentsFromFloat(v.Float()), true, nil
	case gjson.String:
		return domain.ParseCents(v.Str)
	default:
		return 0, false, nil
	}
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

func optionalCents(s string) (*domain.Cents, error) {
	c, ok, err := domain.ParseCents(s)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func optionalBool(s string) (*bool, error) {
	var b bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "1", "true", "yes", "y":
		b = true
	case "0", "false", "no", "n":
		b = false
	default:
		return nil, fmt.Errorf("%q is not a boolean", s)
	}
	return &b, nil
}
