package main

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
)

// startTestServer serves over loopback TCP; the handler code is the same as on vsock
func startTestServer(t *testing.T, maxWorkers int) string {
	t.Helper()

	service, _ := newTestService(t, CreateMockEnclave(t))
	server := NewAuctionServer(0, service)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.serve(listener, maxWorkers)
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		<-done
	})

	return listener.Addr().String()
}

func roundTrip(t *testing.T, addr string, req any) map[string]any {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	assert.NoError(t, json.NewEncoder(conn).Encode(req))
	assert.NoError(t, conn.(*net.TCPConn).CloseWrite())

	var resp map[string]any
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestAuctionServer_RoundTrip(t *testing.T) {
	addr := startTestServer(t, 4)

	resp := roundTrip(t, addr, auctionapi.BaseRequest{Type: auctionapi.TypePing})
	check.Equal(t, auctionapi.TypePong, resp["type"])

	resp = roundTrip(t, addr, auctionapi.BidRequest{
		Type:   auctionapi.TypeBid,
		Bidder: alice,
		Amount: core.MustParseEther("0.01"),
	})
	check.Equal(t, auctionapi.TypeBidResponse, resp["type"])
	check.Equal(t, "10000000000000000", resp["highest_bid"])

	resp = roundTrip(t, addr, auctionapi.BidRequest{
		Type:   auctionapi.TypeBid,
		Bidder: bob,
		Amount: core.MustParseEther("0.005"),
	})
	check.Equal(t, auctionapi.TypeError, resp["type"])
	check.Equal(t, auctionapi.CodeBidTooLow, resp["code"])

	resp = roundTrip(t, addr, auctionapi.CompleteRequest{Type: auctionapi.TypeComplete, Caller: testOwner})
	check.Equal(t, auctionapi.TypeCompleteResponse, resp["type"])
	check.NotEqual(t, nil, resp["attestation_cose_base64"])

	resp = roundTrip(t, addr, auctionapi.BaseRequest{Type: auctionapi.TypeStatus})
	check.Equal(t, true, resp["is_auction_over"])
	check.Equal(t, alice, resp["highest_bidder"])
}

func TestAuctionServer_MalformedRequest(t *testing.T) {
	addr := startTestServer(t, 1)

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = conn.Write([]byte("not json"))
	assert.NoError(t, err)
	assert.NoError(t, conn.(*net.TCPConn).CloseWrite())

	var resp auctionapi.ErrorResponse
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	check.Equal(t, auctionapi.CodeInvalidRequest, resp.Code)
}

func TestAuctionServer_Start_RequiresWorkers(t *testing.T) {
	t.Setenv("AUCTIOND_MAX_WORKERS", "")
	check.Error(t, NewAuctionServer(5000, nil).Start())

	t.Setenv("AUCTIOND_MAX_WORKERS", "0")
	check.Error(t, NewAuctionServer(5000, nil).Start())
}
