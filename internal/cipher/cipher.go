package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// KeySize 是 AES-256 的密钥长度。
const KeySize = 32

var (
	ErrInvalidKey     = errors.New("加密密钥长度必须为 32 字节")
	ErrPayload        = errors.New("请求体无法序列化")
	ErrInvalidPadding = errors.New("PKCS7 填充无效")
)

// EncryptedBody 是平台接受的加密请求体。
type EncryptedBody struct {
	Value string `json:"value"`
}

// PayloadCipher 用 AES-256-ECB + PKCS7 加密 JSON 请求体，结果确定且无 IV。
// 平台协议要求如此，密文不具备语义安全性。
type PayloadCipher struct {
	block stdcipher.Block
}

// New 使用调用方提供的密钥创建加密器。
func New(key []byte) (*PayloadCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PayloadCipher{block: block}, nil
}

// Encrypt 将 payload 序列化为 JSON 后加密并 base64 编码。
func (c *PayloadCipher) Encrypt(payload any) (string, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayload, err)
	}
	return c.EncryptBytes(plain), nil
}

// Body 返回可直接作为请求体发送的 {"value": ...}。
func (c *PayloadCipher) Body(payload any) (EncryptedBody, error) {
	value, err := c.Encrypt(payload)
	if err != nil {
		return EncryptedBody{}, err
	}
	return EncryptedBody{Value: value}, nil
}

// EncryptBytes 对原始字节做 ECB 加密。
func (c *PayloadCipher) EncryptBytes(plain []byte) string {
	bs := c.block.BlockSize()
	padded := pkcs7Pad(plain, bs)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		c.block.Encrypt(out[i:i+bs], padded[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt 是 EncryptBytes 的逆过程，主要用于测试和本地桩服务。
func (c *PayloadCipher) Decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败: %w", err)
	}
	bs := c.block.BlockSize()
	if len(data) == 0 || len(data)%bs != 0 {
		return nil, fmt.Errorf("密文长度 %d 不是块大小的整数倍", len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		c.block.Decrypt(out[i:i+bs], data[i:i+bs])
	}
	return pkcs7Unpad(out, bs)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
