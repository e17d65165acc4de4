package x402

import "encoding/json"

// SchemeExact is the only payment scheme currently defined by the x402
// protocol: the client authorizes a transfer of exactly the amount the
// server asked for.
const SchemeExact = "exact"

// ProtocolVersion is the x402 protocol version this library speaks.
const ProtocolVersion = 1

// Header names used on the wire.
const (
	PaymentHeader         = "X-PAYMENT"
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)

// PaymentRequirement is one payment option offered in a 402 challenge.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier (e.g. "base", "solana").
	Network string `json:"network"`

	// MaxAmountRequired is the amount in atomic units, as a decimal string.
	// Amounts stay strings end to end; they are parsed with big.Int only.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Asset is the token contract address (EVM) or mint address (Solana).
	Asset string `json:"asset"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// Resource is the URL of the protected resource.
	Resource string `json:"resource"`

	// Description is an optional human-readable payment description.
	Description string `json:"description"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType"`

	// MaxTimeoutSeconds bounds the validity period of the authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Extra carries scheme-specific data, such as the EIP-712 domain
	// name and version of the token contract.
	Extra map[string]interface{} `json:"extra"`

	// OutputSchema describes the response of the protected resource.
	OutputSchema *OutputSchema `json:"outputSchema,omitempty"`
}

// PaymentRequirementsResponse is the JSON body of a 402 challenge.
type PaymentRequirementsResponse struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Error is a human-readable explanation of why payment is required.
	Error string `json:"error"`

	// Accepts lists the payment options the server will accept.
	Accepts []PaymentRequirement `json:"accepts"`
}

// PaymentPayload is the signed payment carried in the X-PAYMENT header.
type PaymentPayload struct {
	// X402Version echoes the protocol version from the challenge.
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`

	// Payload is the chain-specific signed payment data:
	// EVMPayload for EVM networks, SVMPayload for Solana.
	Payload interface{} `json:"payload"`
}

// EVMPayload carries an EIP-3009 authorization and its EIP-712 signature.
type EVMPayload struct {
	// Signature is the 65-byte ECDSA signature, hex encoded with 0x prefix.
	Signature string `json:"signature"`

	// Authorization holds the transferWithAuthorization parameters.
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization holds EIP-3009 transferWithAuthorization parameters.
// Numeric fields are decimal strings so they survive JSON round trips
// without precision loss.
type EVMAuthorization struct {
	// From is the payer address.
	From string `json:"from"`

	// To is the recipient address.
	To string `json:"to"`

	// Value is the amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp the authorization becomes valid at.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp the authorization expires at.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte value, hex encoded with 0x prefix.
	Nonce string `json:"nonce"`
}

// SVMPayload carries a partially signed Solana transaction. The client
// signs as the token authority; the facilitator adds the fee payer
// signature before broadcast.
type SVMPayload struct {
	Transaction string `json:"transaction"`
}

// SettlementResponse is the server's report after settling a payment,
// carried base64-encoded in the X-PAYMENT-RESPONSE header.
type SettlementResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
}

// TokenConfig describes a token a signer is willing to pay with.
type TokenConfig struct {
	// Address is the token contract address (EVM) or mint address (Solana).
	Address string

	// Symbol is the token symbol, e.g. "USDC".
	Symbol string

	// Decimals is the token's decimal precision.
	Decimals int

	// Priority orders tokens within a signer; lower wins. Zero default.
	Priority int

	// Name is an optional human-readable token name.
	Name string
}

// EVMPayloadData extracts the payload as an EVMPayload. Decoded payments
// carry Payload as a generic map; this re-marshals it into the concrete
// type.
func (p *PaymentPayload) EVMPayloadData() (*EVMPayload, error) {
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, NewPaymentError(ErrCodeInvalidRequirements, "payment payload is not serializable", err)
	}
	var evm EVMPayload
	if err := json.Unmarshal(raw, &evm); err != nil {
		return nil, NewPaymentError(ErrCodeInvalidRequirements, "payment payload is not an EVM payload", err)
	}
	return &evm, nil
}

// SVMPayloadData extracts the payload as an SVMPayload.
func (p *PaymentPayload) SVMPayloadData() (*SVMPayload, error) {
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, NewPaymentError(ErrCodeInvalidRequirements, "payment payload is not serializable", err)
	}
	var svm SVMPayload
	if err := json.Unmarshal(raw, &svm); err != nil {
		return nil, NewPaymentError(ErrCodeInvalidRequirements, "payment payload is not an SVM payload", err)
	}
	return &svm, nil
}

// InputSchemaType identifies the transport of a described input.
type InputSchemaType string

const (
	InputSchemaTypeHTTP InputSchemaType = "http"
)

// FieldDef describes a single field of a request or response body.
type FieldDef struct {
	Type        string              `json:"type,omitempty"`
	Required    bool                `json:"required,omitempty"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Properties  map[string]FieldDef `json:"properties,omitempty"`
}

// InputSchema describes the request the protected resource expects.
type InputSchema struct {
	Type         InputSchemaType     `json:"type"`
	Method       string              `json:"method"`
	BodyType     string              `json:"bodyType,omitempty"`
	QueryParams  map[string]FieldDef `json:"queryParams,omitempty"`
	BodyFields   map[string]FieldDef `json:"bodyFields,omitempty"`
	HeaderFields map[string]FieldDef `json:"headerFields,omitempty"`
}

// OutputSchema describes the protected resource's request and response.
type OutputSchema struct {
	Input  InputSchema         `json:"input,omitempty"`
	Output map[string]FieldDef `json:"output,omitempty"`
}
