package auctionapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/cloudx-io/carauction/auctionapi/parsing"
)

// AttestationCOSE is a raw COSE_Sign1 attestation as returned by the NSM
type AttestationCOSE []byte

// AttestationCOSEBase64 is standard base64 of AttestationCOSE, used in JSON bodies
type AttestationCOSEBase64 string

// AttestationCOSEURLBase64 is unpadded URL-safe base64 of AttestationCOSE
type AttestationCOSEURLBase64 string

// AttestationCOSEGzip is gzip-compressed AttestationCOSE in unpadded URL-safe base64
type AttestationCOSEGzip string

func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

func (a AttestationCOSE) EncodeURLSafe() AttestationCOSEURLBase64 {
	return AttestationCOSEURLBase64(base64.RawURLEncoding.EncodeToString(a))
}

// CompressGzip compresses the attestation for transport in URLs
func (a AttestationCOSE) CompressGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(a); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return AttestationCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc decodes the Nitro attestation document inside the COSE payload
// The user data is returned raw; its shape depends on what was attested
func (a AttestationCOSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	doc, err := parsing.ParseNitroDocument(a)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	return AttestationDoc{
		ModuleID:        doc.ModuleID,
		Timestamp:       time.UnixMilli(int64(doc.Timestamp)).UTC(),
		DigestAlgorithm: doc.Digest,
		PCRs:            extractPCRs(doc.PCRs),
		Certificate:     base64.StdEncoding.EncodeToString(doc.Certificate),
		CABundle:        parsing.EncodeCertificateBundle(doc.CABundle),
		PublicKey:       base64.StdEncoding.EncodeToString(doc.PublicKey),
		Nonce:           string(doc.Nonce),
	}, doc.UserData, nil
}

func (s AttestationCOSEBase64) String() string {
	return string(s)
}

func (s AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (s AttestationCOSEBase64) CompressGzip() (AttestationCOSEGzip, error) {
	coseBytes, err := s.Decode()
	if err != nil {
		return "", err
	}
	return coseBytes.CompressGzip()
}

func (s AttestationCOSEURLBase64) String() string {
	return string(s)
}

// Decode accepts input with or without padding
func (s AttestationCOSEURLBase64) Decode() (AttestationCOSE, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(s), "="))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64url: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (s AttestationCOSEGzip) String() string {
	return string(s)
}

func (s AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return AttestationCOSE(data), nil
}

func extractPCRs(raw map[uint64][]byte) PCRs {
	return PCRs{
		ImageFileHash:   parsing.FormatPCR(raw[0]),
		KernelHash:      parsing.FormatPCR(raw[1]),
		ApplicationHash: parsing.FormatPCR(raw[2]),
		IAMRoleHash:     parsing.FormatPCR(raw[3]),
		InstanceIDHash:  parsing.FormatPCR(raw[4]),
		SigningCertHash: parsing.FormatPCR(raw[8]),
	}
}
