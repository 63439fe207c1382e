package chunker

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint - ключ дедупликации: sha256 от пути и текста чанка.
// Текст должен быть тем же, что уходит в хранилище (уже обрезанным).
func Fingerprint(source, text string) string {
	hash := sha256.Sum256([]byte(source + text))
	return hex.EncodeToString(hash[:])
}
