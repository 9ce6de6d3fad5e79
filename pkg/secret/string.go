package secret

// String stores a string in an encrypted state in memory, so that
// it does not leak via logging or debug dumps.
type String = Any[string]
