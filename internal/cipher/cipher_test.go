package cipher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type menuPayload struct {
	MenuID int64 `json:"menuId"`
}

type storePayload struct {
	StoreID      int64 `json:"storeId"`
	StoreGroupID int64 `json:"storeGroupId"`
}

func TestEncryptFixedVectors(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	// 向量由 openssl enc -aes-256-ecb 生成
	cases := []struct {
		payload any
		want    string
	}{
		{menuPayload{MenuID: 123}, "K+yRS6bqNrFwY9kJJq70mg=="},
		{menuPayload{MenuID: 124}, "5vKGSm+uueTOEuwwoO2/dQ=="},
		{storePayload{StoreID: 1001, StoreGroupID: 42}, "bPubV/uNGp2lADvqg7dPayRO6owhX+OOorqUt+cdj+/8zd8+opKcKE9UvLyjOOPU"},
	}
	for _, tc := range cases {
		got, err := c.Encrypt(tc.payload)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestEncryptFullBlockAddsPaddingBlock(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)
	assert.Equal(t, "+DyaYNwM25ghn3nW1dsWNYqjYkH96N8FTcMlxsaVuJ4=", c.EncryptBytes([]byte("0123456789abcdef")))
}

func TestEncryptIsDeterministicAndKeySensitive(t *testing.T) {
	c1, err := New(testKey)
	require.NoError(t, err)
	other := append([]byte(nil), testKey...)
	other[0] = 'X'
	c2, err := New(other)
	require.NoError(t, err)

	a, _ := c1.Encrypt(menuPayload{MenuID: 123})
	b, _ := c1.Encrypt(menuPayload{MenuID: 123})
	d, _ := c2.Encrypt(menuPayload{MenuID: 123})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, d)
}

func TestDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)
	body, err := c.Body(storePayload{StoreID: 5, StoreGroupID: 6})
	require.NoError(t, err)
	plain, err := c.Decrypt(body.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"storeId":5,"storeGroupId":6}`, string(plain))
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	for _, k := range [][]byte{nil, []byte("short"), []byte("0123456789abcdef")} {
		_, err := New(k)
		assert.True(t, errors.Is(err, ErrInvalidKey))
	}
}

func TestEncryptRejectsUnserializablePayload(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)
	_, err = c.Encrypt(map[string]any{"bad": make(chan int)})
	assert.True(t, errors.Is(err, ErrPayload))
}

func TestDecryptRejectsBadPadding(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)
	// 合法 base64, 但解密后填充字节不一致
	_, err = c.Decrypt("AAAAAAAAAAAAAAAAAAAAAA==")
	assert.Error(t, err)
}
