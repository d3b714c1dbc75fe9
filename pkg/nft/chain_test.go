package nft

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolveMetadataURL(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"ipfs://abc123", "https://ipfs.io/ipfs/abc123"},
		{"ipfs://ipfs/abc123", "https://ipfs.io/ipfs/abc123"},
		{"https://example.com/meta.json", "https://example.com/meta.json"},
	}
	for _, c := range cases {
		if got := ResolveMetadataURL("", c.uri); got != c.want {
			t.Errorf("ResolveMetadataURL(%q) = %q, want %q", c.uri, got, c.want)
		}
	}
}

func TestResolveMetadataURLCustomGateway(t *testing.T) {
	got := ResolveMetadataURL("https://gw.example.com/ipfs/", "ipfs://abc")
	if got != "https://gw.example.com/ipfs/abc" {
		t.Fatalf("got %q", got)
	}
}

// abiString encodes s as a single ABI string return value.
func abiString(s string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%064x", 32))
	b.WriteString(fmt.Sprintf("%064x", len(s)))
	b.WriteString(hex.EncodeToString([]byte(s)))
	if pad := len(s) % 32; pad != 0 {
		b.WriteString(strings.Repeat("00", 32-pad))
	}
	return "0x" + b.String()
}

func newRPCServer(t *testing.T, owner, uri string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
		}
		if req.Method != "eth_call" {
			t.Errorf("method = %q, want eth_call", req.Method)
		}
		call, _ := req.Params[0].(map[string]any)
		data, _ := call["data"].(string)
		var result string
		switch {
		case strings.HasPrefix(data, selOwnerOf):
			result = "0x" + strings.Repeat("00", 12) + strings.TrimPrefix(owner, "0x")
		case strings.HasPrefix(data, selTokenURI):
			result = abiString(uri)
		default:
			t.Errorf("unexpected call data %q", data)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
}

func TestRPCGatewayOwnerOf(t *testing.T) {
	owner := "00112233445566778899aabbccddeeff00112233"
	srv := newRPCServer(t, owner, "")
	defer srv.Close()

	g := NewRPCGateway(srv.URL, "0xcontract", time.Second)
	got, err := g.OwnerOf(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("ownerOf: %v", err)
	}
	if got != "0x"+owner {
		t.Fatalf("owner = %q, want %q", got, "0x"+owner)
	}
}

func TestRPCGatewayTokenURI(t *testing.T) {
	srv := newRPCServer(t, strings.Repeat("11", 20), "ipfs://QmHash/7.json")
	defer srv.Close()

	g := NewRPCGateway(srv.URL, "0xcontract", time.Second)
	got, err := g.TokenURI(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("tokenURI: %v", err)
	}
	if got != "ipfs://QmHash/7.json" {
		t.Fatalf("uri = %q", got)
	}
}

func TestRPCGatewaySurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": -32000, "message": "execution reverted"},
		})
	}))
	defer srv.Close()

	g := NewRPCGateway(srv.URL, "0xcontract", time.Second)
	if _, err := g.OwnerOf(context.Background(), big.NewInt(1)); err == nil {
		t.Fatalf("expected an error from the rpc error response")
	}
}

func TestFetchMetadataRewritesIPFS(t *testing.T) {
	meta := TokenMetadata{Name: "Idea #7", Description: "d", Image: "ipfs://img"}
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(meta)
	}))
	defer srv.Close()

	got, err := FetchMetadata(context.Background(), srv.Client(), srv.URL+"/ipfs/", "ipfs://QmHash")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/ipfs/QmHash" {
		t.Fatalf("request path = %q, want /ipfs/QmHash", gotPath)
	}
	if got != meta {
		t.Fatalf("metadata = %+v, want %+v", got, meta)
	}
}
