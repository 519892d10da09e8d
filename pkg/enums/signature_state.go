package enums

// SignatureState is derived from a movement's document ref and validity flag.
// It is never persisted.
type SignatureState string

const (
	SignatureStateUnsigned SignatureState = "unsigned"
	SignatureStateSigned   SignatureState = "signed"
	SignatureStateRejected SignatureState = "rejected"
)
