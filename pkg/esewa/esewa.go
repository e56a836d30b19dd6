package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/pkg/config"
)

// StatusComplete is the callback status eSewa reports for a captured payment.
const StatusComplete = "COMPLETE"

// requestFields are the fields signed when a payment form is initiated.
var requestFields = []string{"total_amount", "transaction_uuid", "product_code"}

var (
	ErrEmptyPayload     = errors.New("esewa payload is empty")
	ErrMissingSignature = errors.New("esewa payload is not signed")
	ErrBadSignature     = errors.New("esewa signature mismatch")
)

// Callback is the decoded body of a success redirect.
type Callback struct {
	TransactionCode  string `json:"transaction_code"`
	Status           string `json:"status"`
	TotalAmount      string `json:"-"`
	TransactionUUID  string `json:"transaction_uuid"`
	ProductCode      string `json:"product_code"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`

	fields map[string]string
}

// Field returns the raw string value of a signed field.
func (c Callback) Field(name string) string {
	return c.fields[name]
}

// IsComplete reports whether the provider captured the payment.
func (c Callback) IsComplete() bool {
	return strings.EqualFold(c.Status, StatusComplete)
}

// Credentials is what the client needs to post the eSewa payment form.
type Credentials struct {
	TransactionUUID  string          `json:"transaction_uuid"`
	ProductCode      string          `json:"product_code"`
	Amount           decimal.Decimal `json:"amount"`
	SignedFieldNames string          `json:"signed_field_names"`
	Signature        string          `json:"signature"`
	FormURL          string          `json:"form_url,omitempty"`
}

// Codec signs outgoing requests and decodes signed callbacks.
type Codec struct {
	secret      []byte
	productCode string
	formURL     string
	verify      bool
	newID       func() string
}

// NewCodec builds a codec from the gateway configuration.
func NewCodec(cfg config.ESewaConfig) (*Codec, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("esewa secret key is required")
	}
	if strings.TrimSpace(cfg.ProductCode) == "" {
		return nil, errors.New("esewa product code is required")
	}
	return &Codec{
		secret:      []byte(cfg.SecretKey),
		productCode: cfg.ProductCode,
		formURL:     cfg.FormURL,
		verify:      cfg.Verify,
		newID:       uuid.NewString,
	}, nil
}

// Sign returns the base64 HMAC-SHA256 of "k1=v1,k2=v2,..." in the order given.
func (c *Codec) Sign(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"="+f.Value)
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strings.Join(parts, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Field is one name/value pair of a signed message.
type Field struct {
	Name  string
	Value string
}

// Credentials prepares a signed payment request for amount.
func (c *Codec) Credentials(amount decimal.Decimal) Credentials {
	txUUID := c.newID()
	signature := c.Sign([]Field{
		{Name: "total_amount", Value: amount.String()},
		{Name: "transaction_uuid", Value: txUUID},
		{Name: "product_code", Value: c.productCode},
	})
	return Credentials{
		TransactionUUID:  txUUID,
		ProductCode:      c.productCode,
		Amount:           amount,
		SignedFieldNames: strings.Join(requestFields, ","),
		Signature:        signature,
		FormURL:          c.formURL,
	}
}

// Decode parses a base64 callback payload and, when verification is enabled, checks its
// signature over the fields listed in signed_field_names.
func (c *Codec) Decode(data string) (Callback, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Callback{}, ErrEmptyPayload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return Callback{}, fmt.Errorf("decode esewa payload: %w", err)
		}
	}

	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return Callback{}, fmt.Errorf("parse esewa payload: %w", err)
	}
	fields, err := flatten(raw)
	if err != nil {
		return Callback{}, err
	}
	cb.fields = fields
	cb.TotalAmount = fields["total_amount"]

	if strings.TrimSpace(cb.TransactionCode) == "" {
		return Callback{}, errors.New("esewa payload missing transaction_code")
	}
	if c.verify {
		if err := c.Verify(cb); err != nil {
			return Callback{}, err
		}
	}
	return cb, nil
}

// Verify recomputes the callback signature.
func (c *Codec) Verify(cb Callback) error {
	if cb.Signature == "" || cb.SignedFieldNames == "" {
		return ErrMissingSignature
	}
	names := strings.Split(cb.SignedFieldNames, ",")
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		fields = append(fields, Field{Name: name, Value: cb.fields[name]})
	}
	expected := c.Sign(fields)
	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		return ErrBadSignature
	}
	return nil
}

// flatten renders every top-level value as the string eSewa signed.
func flatten(raw []byte) (map[string]string, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse esewa payload: %w", err)
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = strings.TrimSpace(string(v))
	}
	return out, nil
}
