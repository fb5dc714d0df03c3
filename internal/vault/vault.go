// Пакет vault — шифрование учётных данных источников перед сохранением.
// Ключ AES-256-GCM выводится отдельно для каждой организации из мастер-секрета,
// результат — текстовый конверт "iv:tag:ciphertext".
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

const (
	// nonceSize — размер IV (128 бит), совместимо с существующими конвертами.
	nonceSize = 16
	// tagSize — размер тега аутентификации GCM.
	tagSize = 16
	// minSecretLength — мастер-секрет короче дополняется символом '_'.
	minSecretLength = 32
	// envelopeSeparator — разделитель частей конверта.
	envelopeSeparator = ":"
)

// ErrCryptoIntegrity — конверт повреждён, подделан, имеет неверный формат
// или зашифрован ключом другой организации. Всегда фатальна.
var ErrCryptoIntegrity = errors.New("нарушена целостность зашифрованных данных")

// Vault — шифрование и дешифрование учётных данных в разрезе организаций.
// После создания не имеет изменяемого состояния, безопасен для конкурентного использования.
type Vault struct {
	secret string
}

// New создаёт Vault с мастер-секретом из конфигурации процесса.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, errors.New("мастер-секрет шифрования не задан")
	}
	if n := utf8.RuneCountInString(masterSecret); n < minSecretLength {
		masterSecret += strings.Repeat("_", minSecretLength-n)
	}
	return &Vault{secret: masterSecret}, nil
}

// DeriveOrganizationKey возвращает 256-битный ключ организации:
// SHA-256(мастер-секрет || orgID). Детерминирован для пары (секрет, организация).
// TODO: заменить на HKDF или KMS, сохранив возможность расшифровать старые конверты.
func (v *Vault) DeriveOrganizationKey(orgID string) [32]byte {
	return sha256.Sum256([]byte(v.secret + orgID))
}

// Encrypt сериализует учётные данные в JSON и шифрует ключом организации.
// Каждый вызов использует новый случайный IV, поэтому конверты для одинаковых
// данных различаются.
func (v *Vault) Encrypt(payload model.Credentials, orgID string) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации учётных данных: %w", err)
	}

	gcm, err := v.aead(orgID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации IV: %w", err)
	}

	// Seal возвращает ciphertext || tag
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, envelopeSeparator), nil
}

// Decrypt проверяет и расшифровывает конверт ключом организации.
// Любая ошибка формата, тега или JSON возвращается как ErrCryptoIntegrity,
// частичный результат не возвращается никогда. Принимается только
// каноническая запись: hex в нижнем регистре и base64 с паддингом,
// совпадающие с тем, что выдаёт Encrypt.
func (v *Vault) Decrypt(envelope string, orgID string) (model.Credentials, error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: неверный формат конверта", ErrCryptoIntegrity)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize || hex.EncodeToString(nonce) != parts[0] {
		return nil, fmt.Errorf("%w: некорректный IV", ErrCryptoIntegrity)
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize || hex.EncodeToString(tag) != parts[1] {
		return nil, fmt.Errorf("%w: некорректный тег аутентификации", ErrCryptoIntegrity)
	}

	ciphertext, err := base64.StdEncoding.Strict().DecodeString(parts[2])
	if err != nil || base64.StdEncoding.EncodeToString(ciphertext) != parts[2] {
		return nil, fmt.Errorf("%w: некорректный base64 шифротекста", ErrCryptoIntegrity)
	}

	gcm, err := v.aead(orgID)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: проверка тега не пройдена", ErrCryptoIntegrity)
	}

	var creds model.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("%w: расшифрованные данные не являются JSON-объектом", ErrCryptoIntegrity)
	}

	return creds, nil
}

// aead создаёт AES-256-GCM с 16-байтовым IV для ключа организации.
func (v *Vault) aead(orgID string) (cipher.AEAD, error) {
	key := v.DeriveOrganizationKey(orgID)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return gcm, nil
}
