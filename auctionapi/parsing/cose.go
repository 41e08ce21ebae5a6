package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// COSESign1 holds the parts of an untagged COSE_Sign1 message as AWS Nitro emits it:
// [protected, unprotected, payload, signature]
type COSESign1 struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// DecodeCOSESign1 splits an untagged COSE_Sign1 array
// The unprotected header is ignored
func DecodeCOSESign1(coseBytes []byte) (*COSESign1, error) {
	var coseArray []any
	if err := cbor.Unmarshal(coseBytes, &coseArray); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature")
	}

	return &COSESign1{Protected: protected, Payload: payload, Signature: signature}, nil
}

// ExtractCOSEPayload returns only the payload of a COSE_Sign1 message
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	msg, err := DecodeCOSESign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}
