package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
)

// aesCodec implements the AES-256 whole-frame encryption used once a
// session has gone end-to-end. The wire protocol has no separate IV
// exchange, so the IV is derived deterministically from the key
// itself (sha256(key)[:16]); both ends hold the same key out of band,
// so this reproduces a shared IV without a handshake round-trip. This
// is a design decision recorded in DESIGN.md, not something the
// legacy protocol documents explicitly.
type aesCodec struct {
	key [32]byte
	iv  [aes.BlockSize]byte
}

func newAESCodec(key []byte) (*aesCodec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("transport: AES-256 key must be 32 bytes, got %d", len(key))
	}

	var c aesCodec
	copy(c.key[:], key)

	sum := sha256.Sum256(key)
	copy(c.iv[:], sum[:aes.BlockSize])

	return &c, nil
}

func (c *aesCodec) block() (cipher.Block, error) {
	return aes.NewCipher(c.key[:])
}

// encrypt PKCS7-pads the cleartext to a block boundary and encrypts
// it with AES-256-CBC.
func (c *aesCodec) encrypt(cleartext []byte) ([]byte, error) {
	blk, err := c.block()
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(cleartext, aes.BlockSize)
	out := make([]byte, len(padded))

	cipher.NewCBCEncrypter(blk, c.iv[:]).CryptBlocks(out, padded)

	return out, nil
}

func (c *aesCodec) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("transport: ciphertext length %d not a multiple of block size", len(ciphertext))
	}

	blk, err := c.block()
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(blk, c.iv[:]).CryptBlocks(out, ciphertext)

	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)

	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("transport: invalid PKCS7 padding")
	}

	return data[:len(data)-padLen], nil
}
