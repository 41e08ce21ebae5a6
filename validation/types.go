package validation

// BaseValidationResult contains the checks every Nitro attestation goes through
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

// IsValid returns true if the enclave identity checks passed
func (r *BaseValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid
}

// SettlementValidationResult contains validation results specific to settlement attestations
type SettlementValidationResult struct {
	BaseValidationResult
	AuctionIDValid    bool
	ItemHashValid     bool
	ReservePriceValid bool
	BidHashValid      bool
	ParticipantsValid bool
	SettlementValid   bool
}

// IsValid returns true if all settlement validation checks passed
func (r *SettlementValidationResult) IsValid() bool {
	return r.BaseValidationResult.IsValid() &&
		r.AuctionIDValid &&
		r.ItemHashValid &&
		r.ReservePriceValid &&
		r.BidHashValid &&
		r.ParticipantsValid &&
		r.SettlementValid
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // carauction commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
