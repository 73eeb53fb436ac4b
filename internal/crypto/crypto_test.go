package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known hardhat account #0; never holds funds.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func init() {
	kdfIterations = 1000
}

func TestSignerAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())
	assert.Equal(t, int64(137), s.ChainID().Int64())

	_, err = NewSigner("zz", 137)
	assert.Error(t, err)
}

func TestSignOrderRecoversSigner(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	order := OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "10000000",
		TakerAmount: "18867924",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}
	sigHex, err := s.SignOrder(order)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sigHex, "0x"))

	sig := common.FromHex(sigHex)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	structHash, err := orderStructHash(order)
	require.NoError(t, err)
	digest := eip712Hash(s.orderDom, structHash)
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	_, err = s.SignOrder(OrderPayload{Salt: "x"})
	assert.ErrorContains(t, err, "invalid salt")
}

func TestSignTransaction(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	to := common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(137),
		Nonce:     1,
		GasTipCap: big.NewInt(30e9),
		GasFeeCap: big.NewInt(60e9),
		Gas:       200_000,
		To:        &to,
	})
	signed, err := s.SignTransaction(tx)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(137)), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
}

func TestL2HeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "key-1", Secret: "c2VjcmV0LXNlY3JldA==", Passphrase: "pass"}
	a := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	b := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	assert.Equal(t, a, b)
	assert.Equal(t, "1700000000", a["POLY_TIMESTAMP"])
	assert.Equal(t, "key-1", a["POLY_API_KEY"])
	assert.NotEmpty(t, a["POLY_SIGNATURE"])

	c := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":2}`, 1700000000)
	assert.NotEqual(t, a["POLY_SIGNATURE"], c["POLY_SIGNATURE"])
	assert.NotContains(t, auth.String(), "c2VjcmV0")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")

	_, err = EncryptKey(testKey, "")
	assert.Error(t, err)
	_, err = EncryptKey("abcd", "pw")
	assert.ErrorContains(t, err, "32-byte")
}

func TestLoadKey(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.ErrorIs(t, err, ErrNoKeySource)

	k, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, k)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, WriteEncryptedKey(path, testKey, "pw"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	k, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKey, k)
}
