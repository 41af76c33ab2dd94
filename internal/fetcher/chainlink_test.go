package fetcher

import (
	"context"
	"errors"
	"testing"
)

func TestChainlinkMissingConfig(t *testing.T) {
	c := NewChainlink(ChainlinkOptions{}, noopLogger())
	if _, err := c.FetchSpot(context.Background(), "XAU"); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	c = NewChainlink(ChainlinkOptions{RPCURL: "http://localhost"}, noopLogger())
	_, err := c.FetchSpot(context.Background(), "XAU")
	if !errors.Is(err, ErrSymbolNotSupported) {
		t.Fatalf("缺少 feed 地址应返回 ErrSymbolNotSupported, 实际 %v", err)
	}
}
