package sxbet

// wallet.go: EIP-712 signing of SX.Bet fills.
//
// A fill is signed by the taker wallet and posted with the order; the
// exchange verifies the signature against the taker address.

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	sxChainID = int64(4162)

	fillDomainName    = "SX Bet"
	fillDomainVersion = "6.0"
)

// EIP-712 type hashes (computed once).
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	fillTypeHash = crypto.Keccak256Hash([]byte(
		"FillObject(string stakeWei,string marketHash,string baseToken,string desiredOdds,uint256 oddsSlippage,bool isTakerBettingOutcomeOne,uint256 fillSalt,address beneficiary)",
	))
)

// fill is the taker side of an order fill.
type fill struct {
	StakeWei                 string
	MarketHash               string
	BaseToken                string
	DesiredOdds              string
	OddsSlippage             int64
	IsTakerBettingOutcomeOne bool
	FillSalt                 *big.Int
	Beneficiary              common.Address
}

// wallet holds the taker key.
type wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int64
}

// newWallet parses a hex private key, with or without the 0x prefix.
func newWallet(privateKeyHex string, chainID int64) (*wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("sxbet: invalid private key: %w", err)
	}
	if chainID <= 0 {
		chainID = sxChainID
	}
	return &wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the wallet address.
func (w *wallet) Address() string {
	return w.address.Hex()
}

func (w *wallet) domainSeparator() common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(fillDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(fillDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(w.chainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// hash is the EIP-712 digest of f.
func (w *wallet) hash(f fill) common.Hash {
	isOne := big.NewInt(0)
	if f.IsTakerBettingOutcomeOne {
		isOne = big.NewInt(1)
	}
	salt := f.FillSalt
	if salt == nil {
		salt = new(big.Int)
	}

	var structBuf []byte
	structBuf = append(structBuf, fillTypeHash.Bytes()...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(f.StakeWei)).Bytes()...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(f.MarketHash)).Bytes()...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(f.BaseToken)).Bytes()...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(f.DesiredOdds)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(big.NewInt(f.OddsSlippage).Bytes(), 32)...)
	structBuf = append(structBuf, common.LeftPadBytes(isOne.Bytes(), 32)...)
	structBuf = append(structBuf, common.LeftPadBytes(salt.Bytes(), 32)...)
	structBuf = append(structBuf, common.LeftPadBytes(f.Beneficiary.Bytes(), 32)...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, w.domainSeparator().Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	return crypto.Keccak256Hash(rawBuf)
}

// sign returns the 0x-prefixed 65-byte signature of f, v in {27, 28}.
func (w *wallet) sign(f fill) (string, error) {
	sig, err := crypto.Sign(w.hash(f).Bytes(), w.key)
	if err != nil {
		return "", fmt.Errorf("sxbet: sign fill: %w", err)
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

// randomSalt is a random uint256.
func randomSalt() *big.Int {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return new(big.Int).SetBytes(b)
}

// toWei scales amount to the token's base units, truncating.
func toWei(amount float64, decimals int) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	out, _ := f.Int(nil)
	return out
}

// desiredOdds is the taker's implied probability scaled by 1e20.
func desiredOdds(price float64) string {
	if price <= 1 {
		return "0"
	}
	f := new(big.Float).SetFloat64(1 / price)
	f.Mul(f, new(big.Float).SetFloat64(oddsScale))
	out, _ := f.Int(nil)
	return out.String()
}

// parseChainID reads an optional chain id override.
func parseChainID(s string) (int64, error) {
	if s == "" {
		return sxChainID, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("sxbet: invalid chain_id %q", s)
	}
	return id, nil
}
