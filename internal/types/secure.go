package types

// redacted replaces secret values in logs and serialized output.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that keeps sensitive values out of logs and
// JSON output. String and MarshalJSON return a redacted placeholder, so
// secrets survive neither fmt formatting nor structured log serialization.
//
// Unmask returns the raw value for the few places that genuinely need it,
// such as building a database connection string.
type SecretString string

// String returns the redacted placeholder. Invoked by the fmt package through
// the Stringer interface.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
