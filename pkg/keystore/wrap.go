package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"tron-wallet-core/pkg/safe_random"
)

// 私钥在进入 Store 之前先做对称封装:
// 派生密钥 = scrypt(systemSecret || addressID || userID, salt)
// 密文   = AES-256-GCM(派生密钥, 私钥)
// KeyCheck 存派生密钥哈希的前 8 字节，输入错误时快速失败，
// 而不是解出一段乱码明文。

// WrappedKey 是写入 Store 的 JSON 结构
type WrappedKey struct {
	Version    int       `json:"version"`
	Cipher     string    `json:"cipher"` // "aes-256-gcm"
	CipherText string    `json:"ciphertext"`
	KDF        string    `json:"kdf"` // "scrypt"
	KDFParams  KDFParams `json:"kdfparams"`
	KeyCheck   string    `json:"keycheck"` // hex(sha256(derivedKey)[:8])
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

const (
	scryptN     = 32768
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
	keyCheckLen = 8
)

// ErrKeyCheckMismatch 表示派生输入 (系统密钥/地址/用户) 不匹配
var ErrKeyCheckMismatch = errors.New("keystore: derived key check mismatch")

// Wrapper 持有系统侧 KDF 输入，对外提供封装/解封
type Wrapper struct {
	systemSecret string
}

func NewWrapper(systemSecret string) *Wrapper {
	return &Wrapper{systemSecret: systemSecret}
}

func (w *Wrapper) deriveKey(addressID, userID string, salt []byte, params KDFParams) ([]byte, error) {
	password := []byte(w.systemSecret + "|" + addressID + "|" + userID)
	return scrypt.Key(password, salt, params.N, params.R, params.P, params.DKLen)
}

// WrapKey 将私钥字节封装为 WrappedKey JSON
func (w *Wrapper) WrapKey(addressID, userID string, privKey []byte) ([]byte, error) {
	salt, err := safe_random.GenerateRandomBytes(32)
	if err != nil {
		return nil, err
	}

	params := KDFParams{DKLen: scryptDKLen, N: scryptN, R: scryptR, P: scryptP, Salt: hex.EncodeToString(salt)}
	derivedKey, err := w.deriveKey(addressID, userID, salt, params)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(safe_random.Reader, nonce); err != nil {
		return nil, err
	}
	// nonce 拼在密文前面
	ciphertext := gcm.Seal(nonce, nonce, privKey, nil)

	check := sha256.Sum256(derivedKey)

	wk := WrappedKey{
		Version:    1,
		Cipher:     "aes-256-gcm",
		CipherText: hex.EncodeToString(ciphertext),
		KDF:        "scrypt",
		KDFParams:  params,
		KeyCheck:   hex.EncodeToString(check[:keyCheckLen]),
	}
	return json.Marshal(&wk)
}

// UnwrapKey 解封私钥。派生输入不匹配时返回 ErrKeyCheckMismatch。
func (w *Wrapper) UnwrapKey(addressID, userID string, payload []byte) ([]byte, error) {
	var wk WrappedKey
	if err := json.Unmarshal(payload, &wk); err != nil {
		return nil, fmt.Errorf("解析密文结构失败: %w", err)
	}

	salt, err := hex.DecodeString(wk.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(wk.CipherText)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	storedCheck, err := hex.DecodeString(wk.KeyCheck)
	if err != nil {
		return nil, fmt.Errorf("invalid keycheck: %w", err)
	}

	derivedKey, err := w.deriveKey(addressID, userID, salt, wk.KDFParams)
	if err != nil {
		return nil, err
	}

	// 先校验派生密钥哈希，输入错误时快速返回类型化错误
	check := sha256.Sum256(derivedKey)
	if subtle.ConstantTimeCompare(storedCheck, check[:keyCheckLen]) != 1 {
		return nil, ErrKeyCheckMismatch
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("密文太短")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
