// internal/security/helper.go
package security

import "strings"

// pathToEnvKey converts "wallet/key-passphrase" to "WALLET_KEY_PASSPHRASE"
func pathToEnvKey(path string) string {
	key := strings.ToUpper(strings.Trim(path, "/"))
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
