package decode

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"strconv"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/std"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/cosmos-sdk/x/authz"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	govv1 "github.com/cosmos/cosmos-sdk/x/gov/types/v1"
	govv1beta1 "github.com/cosmos/cosmos-sdk/x/gov/types/v1beta1"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	gogoproto "github.com/cosmos/gogoproto/proto"
)

const txTypeURL = "/cosmos.tx.v1beta1.Tx"

// Decoder turns raw transaction bytes into the normalized decoded shape
// {"@type": "/cosmos.tx.v1beta1.Tx", body, auth_info, signatures}.
//
// Message payloads resolve through three tiers: the registered closed set of
// SDK types (fast path), the dynamic descriptor registry, and an opaque
// base64 fallback that preserves the bytes. The decoder is immutable after
// construction and shared across pool workers.
type Decoder struct {
	registry codectypes.InterfaceRegistry
	cdc      *codec.ProtoCodec
	dynamic  *DynamicRegistry // may be nil
	caseMode string
}

// NewDecoder builds the fast-path type registry and wires the optional
// dynamic registry behind it.
func NewDecoder(dynamic *DynamicRegistry, caseMode string) *Decoder {
	registry := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	stakingtypes.RegisterInterfaces(registry)
	distrtypes.RegisterInterfaces(registry)
	govv1.RegisterInterfaces(registry)
	govv1beta1.RegisterInterfaces(registry)
	authz.RegisterInterfaces(registry)

	if caseMode == "" {
		caseMode = CaseSnake
	}
	return &Decoder{
		registry: registry,
		cdc:      codec.NewProtoCodec(registry),
		dynamic:  dynamic,
		caseMode: caseMode,
	}
}

// DecodeTx decodes raw tx bytes. TxRaw is tried first; if its body bytes are
// empty the whole Tx shape is decoded instead. Total failure yields an
// empty-shaped placeholder and a warning, never an error: one undecodable tx
// must not fail its block.
func (d *Decoder) DecodeTx(bz []byte) map[string]any {
	var (
		body txtypes.TxBody
		auth txtypes.AuthInfo
		sigs [][]byte
		ok   bool
	)

	var raw txtypes.TxRaw
	if err := gogoproto.Unmarshal(bz, &raw); err == nil && len(raw.BodyBytes) > 0 {
		if err := gogoproto.Unmarshal(raw.BodyBytes, &body); err == nil {
			if err := gogoproto.Unmarshal(raw.AuthInfoBytes, &auth); err != nil {
				auth = txtypes.AuthInfo{}
			}
			sigs = raw.Signatures
			ok = true
		}
	}
	if !ok {
		var tx txtypes.Tx
		if err := gogoproto.Unmarshal(bz, &tx); err == nil && tx.Body != nil {
			body = *tx.Body
			if tx.AuthInfo != nil {
				auth = *tx.AuthInfo
			}
			sigs = tx.Signatures
			ok = true
		}
	}
	if !ok {
		prefix := bz
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		log.Printf("[decode] undecodable tx (%d bytes, prefix %s), emitting placeholder", len(bz), hex.EncodeToString(prefix))
		return map[string]any{
			"@type":      txTypeURL,
			"body":       map[string]any{"messages": []any{}},
			"auth_info":  map[string]any{},
			"signatures": []any{},
		}
	}

	msgs := make([]any, 0, len(body.Messages))
	for _, anyMsg := range body.Messages {
		msgs = append(msgs, ConvertKeys(d.DecodeAny(anyMsg.TypeUrl, anyMsg.Value), d.caseMode))
	}

	bodyMap := map[string]any{
		"messages": msgs,
		"memo":     body.Memo,
	}
	if body.TimeoutHeight > 0 {
		bodyMap["timeout_height"] = strconv.FormatUint(body.TimeoutHeight, 10)
	}

	sigsB64 := make([]any, len(sigs))
	for i, s := range sigs {
		sigsB64[i] = base64.StdEncoding.EncodeToString(s)
	}

	// Case conversion covers message payloads only; auth_info keeps the
	// codec's rendered key form in both modes.
	return map[string]any{
		"@type":      txTypeURL,
		"body":       bodyMap,
		"auth_info":  d.authInfoMap(&auth),
		"signatures": sigsB64,
	}
}

// DecodeAny decodes one protobuf Any payload through the three-tier path.
// The result always carries "@type".
func (d *Decoder) DecodeAny(typeURL string, bz []byte) map[string]any {
	// Fast path: closed set of generated SDK types.
	if msg, err := d.registry.Resolve(typeURL); err == nil {
		if err := gogoproto.Unmarshal(bz, msg); err == nil {
			if jz, err := d.cdc.MarshalJSON(msg); err == nil {
				var m map[string]any
				if err := json.Unmarshal(jz, &m); err == nil {
					m["@type"] = typeURL
					return m
				}
			}
		}
	}

	// Dynamic path: descriptor registry loaded at start-up.
	if d.dynamic != nil {
		if m, err := d.dynamic.Decode(typeURL, bz); err == nil {
			m["@type"] = typeURL
			return m
		}
	}

	// Fallback: preserve the bytes opaquely.
	return map[string]any{
		"@type":     typeURL,
		"value_b64": base64.StdEncoding.EncodeToString(bz),
	}
}

// authInfoMap renders AuthInfo via the proto codec; unregistered pubkey types
// (chain-specific curves) degrade to a manually assembled fee-only map.
func (d *Decoder) authInfoMap(auth *txtypes.AuthInfo) map[string]any {
	if jz, err := d.cdc.MarshalJSON(auth); err == nil {
		var m map[string]any
		if err := json.Unmarshal(jz, &m); err == nil {
			return m
		}
	}

	out := map[string]any{}
	if auth.Fee != nil {
		coins := make([]any, 0, len(auth.Fee.Amount))
		for _, c := range auth.Fee.Amount {
			coins = append(coins, map[string]any{
				"denom":  c.Denom,
				"amount": c.Amount.String(),
			})
		}
		fee := map[string]any{
			"amount":    coins,
			"gas_limit": strconv.FormatUint(auth.Fee.GasLimit, 10),
		}
		if auth.Fee.Payer != "" {
			fee["payer"] = auth.Fee.Payer
		}
		if auth.Fee.Granter != "" {
			fee["granter"] = auth.Fee.Granter
		}
		out["fee"] = fee
	}
	return out
}
