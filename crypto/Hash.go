package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func CreateRandomHash() string {
	bytes := make([]byte, 32) //32 symbols
	rand.Read(bytes)
	return hex.EncodeToString(bytes[:])
}

func CreateSHA256Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// TableDeletionToken returns the confirmation hash a caller must echo back
// to drop a table: HMAC-SHA256 over the table name, truncated to 128 bits.
// The token is never stored, it is recomputed on verification.
func TableDeletionToken(tableName string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(tableName))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

func VerifyTableDeletionToken(tableName string, secret string, token string) bool {
	expected := TableDeletionToken(tableName, secret)
	return hmac.Equal([]byte(expected), []byte(token))
}
