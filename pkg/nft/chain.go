package nft

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// DefaultIPFSGateway serves ipfs:// URIs over HTTP.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// ERC-721 function selectors.
const (
	selOwnerOf  = "0x6352211e"
	selTokenURI = "0xc87b56dd"
)

// ChainGateway reads NFT state from a deployed contract.
type ChainGateway interface {
	OwnerOf(ctx context.Context, tokenID *big.Int) (string, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
}

// TokenMetadata is the JSON document a tokenURI points at.
type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// RPCGateway implements ChainGateway over JSON-RPC eth_call.
type RPCGateway struct {
	endpoint   string
	contract   string
	httpClient *http.Client
}

// NewRPCGateway builds a read-only gateway against one contract.
func NewRPCGateway(endpoint, contract string, timeout time.Duration) *RPCGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RPCGateway{
		endpoint:   strings.TrimSpace(endpoint),
		contract:   strings.TrimSpace(contract),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OwnerOf returns the owning address of a token.
func (g *RPCGateway) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	result, err := g.ethCall(ctx, selOwnerOf, tokenID)
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil || len(raw) < 32 {
		return "", fmt.Errorf("malformed ownerOf result %q", result)
	}
	// address is the last 20 bytes of the 32-byte word
	return "0x" + hex.EncodeToString(raw[12:32]), nil
}

// TokenURI returns the metadata URI of a token.
func (g *RPCGateway) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	result, err := g.ethCall(ctx, selTokenURI, tokenID)
	if err != nil {
		return "", err
	}
	return decodeABIString(result)
}

func (g *RPCGateway) ethCall(ctx context.Context, selector string, tokenID *big.Int) (string, error) {
	data := selector + fmt.Sprintf("%064x", tokenID)
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_call",
		"params": []any{
			map[string]string{"to": g.contract, "data": data},
			"latest",
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chain rpc request: %w", err)
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result string `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("chain rpc decode: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("chain rpc error: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result == "" || rpcResp.Result == "0x" {
		return "", fmt.Errorf("empty chain rpc result")
	}
	return rpcResp.Result, nil
}

// decodeABIString unpacks a single ABI-encoded string return value:
// offset word, length word, then the bytes.
func decodeABIString(result string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return "", fmt.Errorf("malformed abi result: %w", err)
	}
	if len(raw) < 64 {
		return "", fmt.Errorf("abi result too short: %d bytes", len(raw))
	}
	offset := new(big.Int).SetBytes(raw[:32]).Uint64()
	if offset+32 > uint64(len(raw)) {
		return "", fmt.Errorf("abi offset out of range")
	}
	length := new(big.Int).SetBytes(raw[offset : offset+32]).Uint64()
	start := offset + 32
	if start+length > uint64(len(raw)) {
		return "", fmt.Errorf("abi length out of range")
	}
	return string(raw[start : start+length]), nil
}

// ResolveMetadataURL rewrites ipfs:// URIs to a public gateway URL; direct
// HTTP URLs pass through unchanged.
func ResolveMetadataURL(gateway, uri string) string {
	if gateway == "" {
		gateway = DefaultIPFSGateway
	}
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		rest = strings.TrimPrefix(rest, "ipfs/")
		return strings.TrimRight(gateway, "/") + "/" + rest
	}
	return uri
}

// FetchMetadata retrieves and decodes token metadata, rewriting ipfs:// URIs
// before fetching.
func FetchMetadata(ctx context.Context, client *http.Client, gateway, uri string) (TokenMetadata, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	url := ResolveMetadataURL(gateway, uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TokenMetadata{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return TokenMetadata{}, fmt.Errorf("fetch metadata: %s", resp.Status)
	}
	var meta TokenMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return TokenMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}
