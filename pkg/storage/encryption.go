package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/quadrabot/quadra/pkg/schedule"
)

const encPrefix = "ENC:"

// encryptionKey derives a consistent AES key from the environment.
func encryptionKey() []byte {
	key := os.Getenv("QUADRA_ENCRYPTION_KEY")
	if key == "" {
		// Fallback for development/testing only.
		log.Printf("WARNING: Using default encryption key. Set QUADRA_ENCRYPTION_KEY for production!")
		key = "quadra-refresh-token-key"
	}
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}

// encryptScheduleSecrets returns a copy of the schedule with the refresh
// token encrypted for persistence.
func encryptScheduleSecrets(s *schedule.Schedule, key []byte) *schedule.Schedule {
	if s.RefreshToken == "" || strings.HasPrefix(s.RefreshToken, encPrefix) {
		return s
	}
	out := *s
	encrypted, err := encrypt(s.RefreshToken, key)
	if err != nil {
		log.Printf("Warning: failed to encrypt refresh token for schedule %s: %v", s.ID, err)
		out.RefreshToken = ""
		return &out
	}
	out.RefreshToken = encPrefix + encrypted
	return &out
}

// decryptScheduleSecrets reverses encryptScheduleSecrets. A value that
// fails to decrypt is kept as-is rather than dropped.
func decryptScheduleSecrets(s *schedule.Schedule, key []byte) *schedule.Schedule {
	if !strings.HasPrefix(s.RefreshToken, encPrefix) {
		return s
	}
	out := *s
	decrypted, err := decrypt(strings.TrimPrefix(s.RefreshToken, encPrefix), key)
	if err == nil {
		out.RefreshToken = decrypted
	}
	return &out
}

// encrypt encrypts a string using AES-CFB with a random IV.
func encrypt(text string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := []byte(text)
	ciphertext := make([]byte, aes.BlockSize+len(plaintext))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], plaintext)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt reverses encrypt.
func decrypt(cryptoText string, key []byte) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	if len(ciphertext) < aes.BlockSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(ciphertext, ciphertext)

	return string(ciphertext), nil
}
