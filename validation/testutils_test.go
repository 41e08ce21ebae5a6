package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/carauction/auctionapi"
	"github.com/cloudx-io/carauction/core"
)

var devPCRs = PCRSet{
	PCR0:       "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57",
	PCR1:       "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493",
	PCR2:       "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11",
	CommitHash: "test",
}

const (
	testAuctionID    = "ford-figo-2010"
	testItemNonce    = "item-nonce"
	testBidNonce     = "bid-nonce"
	testWinner       = "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
	testWinningBidID = "bid-3"
)

func testItem() core.ItemDescriptor {
	return core.ItemDescriptor{
		Make:         "Ford",
		Model:        "Figo",
		Color:        "Blue",
		Year:         2010,
		IsNew:        true,
		ReservePrice: core.MustParseEther("0.002"),
	}
}

type testBid struct {
	id    string
	ether string
}

var testBids = []testBid{
	{"bid-1", "0.01"},
	{"bid-2", "0.02"},
	{testWinningBidID, "0.04"},
}

// testPKI is a throwaway root and enclave signing key standing in for the AWS Nitro chain
type testPKI struct {
	roots   *x509.CertPool
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
	issued  time.Time
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()

	issued := time.Now().Truncate(time.Second)

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-nitro-root"},
		NotBefore:             issued.Add(-time.Hour),
		NotAfter:              issued.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	assert.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	assert.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-enclave"},
		NotBefore:    issued.Add(-time.Hour),
		NotAfter:     issued.Add(3 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootCert, &leafKey.PublicKey, rootKey)
	assert.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)

	return &testPKI{roots: roots, rootDER: rootDER, leafDER: leafDER, leafKey: leafKey, issued: issued}
}

func testUserData() *auctionapi.SettlementAttestationUserData {
	hashes := make([]string, 0, len(testBids))
	for _, b := range testBids {
		hashes = append(hashes, core.ComputeBidHash(b.id, core.MustParseEther(b.ether), testBidNonce))
	}

	item := testItem()
	return &auctionapi.SettlementAttestationUserData{
		AuctionID:         testAuctionID,
		ItemHash:          core.ComputeItemHash(item, testItemNonce),
		ItemHashNonce:     testItemNonce,
		ReservePrice:      item.ReservePrice,
		BidHashes:         hashes,
		BidHashNonce:      testBidNonce,
		Winner:            testWinner,
		HammerPrice:       core.MustParseEther("0.04"),
		ParticipantsCount: uint64(len(hashes)),
		ClosedAt:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Timestamp:         time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC),
	}
}

// signAttestation produces an untagged COSE_Sign1 Nitro document signed by the test PKI
func (p *testPKI) signAttestation(t *testing.T, userData *auctionapi.SettlementAttestationUserData) auctionapi.AttestationCOSE {
	t.Helper()

	userDataBytes, err := json.Marshal(userData)
	assert.NoError(t, err)

	pcrs := map[uint64][]byte{}
	for i, h := range []string{devPCRs.PCR0, devPCRs.PCR1, devPCRs.PCR2} {
		b, err := hex.DecodeString(h)
		assert.NoError(t, err)
		pcrs[uint64(i)] = b
	}

	payload, err := cbor.Marshal(map[string]any{
		"module_id":   "test-enclave-12345",
		"digest":      "SHA384",
		"timestamp":   uint64(p.issued.UnixMilli()),
		"pcrs":        pcrs,
		"certificate": p.leafDER,
		"cabundle":    [][]byte{p.rootDER},
		"public_key":  []byte{},
		"user_data":   userDataBytes,
		"nonce":       []byte("attestation-nonce"),
	})
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: -35}) // alg: ES384
	assert.NoError(t, err)

	toSign, err := sigStructure(protected, payload)
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, p.leafKey)
	assert.NoError(t, err)
	signature, err := signer.Sign(rand.Reader, toSign)
	assert.NoError(t, err)

	coseBytes, err := cbor.Marshal([]any{protected, map[string]any{}, payload, signature})
	assert.NoError(t, err)
	return coseBytes
}

func validInput(coseBytes auctionapi.AttestationCOSE, pki *testPKI) *SettlementValidationInput {
	return &SettlementValidationInput{
		AttestationCOSEBase64: coseBytes.EncodeBase64(),
		AuctionID:             testAuctionID,
		Item:                  testItem(),
		Winner:                testWinner,
		HammerPrice:           core.MustParseEther("0.04"),
		BidID:                 testWinningBidID,
		BidAmount:             core.MustParseEther("0.04"),
		KnownPCRs:             []PCRSet{devPCRs},
		RootCAs:               pki.roots,
	}
}
