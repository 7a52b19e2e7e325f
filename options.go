package appcache

import "fmt"

// DatabaseOption is a function that configures a [Database]. Mirrors the
// teacher's `TransportOption func(*Transport) error` shape exactly.
type DatabaseOption func(*Database) error

// WithEncryption enables AES-256-GCM encryption at rest for every value
// written through the Database's KVStores (manifest history, bindings,
// client-id bindings). Keys are left in the clear since backends need
// them for prefix scans and range deletes. Returns an error if the
// passphrase is empty or key derivation fails.
func WithEncryption(passphrase string) DatabaseOption {
	return func(d *Database) error {
		if passphrase == "" {
			return fmt.Errorf("appcache: encryption passphrase cannot be empty")
		}
		gcm, err := initEncryption(passphrase)
		if err != nil {
			return err
		}
		d.security = &securityConfig{gcm: gcm}
		return nil
	}
}
