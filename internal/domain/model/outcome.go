package model

import "github.com/ericfisherdev/veeamdump/internal/domain/table"

// DecryptResult is the outcome of decrypting one ciphertext. Exactly one of
// the three statuses applies; Err is set only for DecryptFailed.
type DecryptResult struct {
	Status    DecryptStatus
	Plaintext string
	Err       error
}

// Decrypted wraps recovered plaintext. An empty plaintext is reported as Empty.
func Decrypted(plaintext string) DecryptResult {
	if plaintext == "" {
		return DecryptResult{Status: DecryptEmpty}
	}
	return DecryptResult{Status: DecryptValue, Plaintext: plaintext}
}

// EmptyResult reports that a backend produced no plaintext.
func EmptyResult() DecryptResult {
	return DecryptResult{Status: DecryptEmpty}
}

// FailedResult reports a definitive decrypt failure.
func FailedResult(err error) DecryptResult {
	return DecryptResult{Status: DecryptFailed, Err: err}
}

// Outcome aggregates a Row Processor run. It is returned fully computed and
// never modified afterwards.
type Outcome struct {
	Product              Product
	Processed            int
	Blank                int
	DecryptedLegacy      int
	DecryptedHostService int
	// Plaintext counts rows whose stored value was already plaintext. No
	// observed backend produces this disposition; it stays 0.
	Plaintext int
	Failed    int

	Result        *table.Table
	ResultRows    int
	ResultSecrets int
}

// Decrypted is the number of rows recovered by either backend.
func (o *Outcome) Decrypted() int {
	return o.DecryptedLegacy + o.DecryptedHostService
}

// Recovered is the number of rows with a usable plaintext.
func (o *Outcome) Recovered() int {
	return o.Decrypted() + o.Plaintext
}
