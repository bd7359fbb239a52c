// Package venue provides order execution against the Polymarket CLOB
//
// signer.go - Native Go EIP-712 signing for CTF Exchange orders.
// Reference: https://github.com/Polymarket/py-order-utils
package venue

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
)

// Polymarket CTF Exchange (Polygon mainnet)
const (
	polygonChainID     = 137
	ctfExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	zeroAddress        = "0x0000000000000000000000000000000000000000"
)

// ctfOrder is the on-chain order struct the exchange verifies.
type ctfOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

type signedOrder struct {
	order     *ctfOrder
	signature string
}

// orderSigner builds and signs CTF Exchange orders.
type orderSigner struct {
	privateKey    *ecdsa.PrivateKey
	signerAddr    common.Address
	funderAddr    common.Address
	signatureType int
}

func newOrderSigner(privateKey *ecdsa.PrivateKey, signerAddr, funderAddr common.Address, signatureType int) *orderSigner {
	return &orderSigner{
		privateKey:    privateKey,
		signerAddr:    signerAddr,
		funderAddr:    funderAddr,
		signatureType: signatureType,
	}
}

// signedOrderFor builds and signs a limit order.
func (s *orderSigner) signedOrderFor(tokenID string, side Side, price, size decimal.Decimal) (*signedOrder, error) {
	order, err := s.buildOrderAmounts(tokenID, side, price, size)
	if err != nil {
		return nil, err
	}

	sig, err := s.sign(order)
	if err != nil {
		return nil, err
	}
	return &signedOrder{order: order, signature: sig}, nil
}

// buildOrderAmounts constructs the unsigned order. Both USDC and
// shares use 6 decimal token units on Polygon.
func (s *orderSigner) buildOrderAmounts(tokenID string, side Side, price, size decimal.Decimal) (*ctfOrder, error) {
	tokenIDInt, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("token ID %q is not a decimal integer", tokenID)
	}

	var makerAmount, takerAmount *big.Int
	notional := size.Mul(price)
	if side == SideBuy {
		// Buying: give USDC, receive shares.
		makerAmount = toTokenUnits(notional, 2)
		takerAmount = toTokenUnits(size, 4)
	} else {
		// Selling: give shares, receive USDC.
		makerAmount = toTokenUnits(size, 4)
		takerAmount = toTokenUnits(notional, 4)
	}

	// Maker is whoever holds the funds.
	maker := s.funderAddr
	if maker == (common.Address{}) {
		maker = s.signerAddr
	}

	sideInt := uint8(0)
	if side == SideSell {
		sideInt = 1
	}

	return &ctfOrder{
		Salt:          big.NewInt(rand.Int63()),
		Maker:         maker,
		Signer:        s.signerAddr,
		Taker:         common.HexToAddress(zeroAddress),
		TokenID:       tokenIDInt,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(1000),
		Side:          sideInt,
		SignatureType: uint8(s.signatureType),
	}, nil
}

func (s *orderSigner) sign(order *ctfOrder) (string, error) {
	typedData := buildTypedData(order)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return "", fmt.Errorf("hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	hash := crypto.Keccak256Hash(rawData)

	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	// Ethereum expects V as 27/28
	if sig[64] < 27 {
		sig[64] += 27
	}
	return fmt.Sprintf("0x%x", sig), nil
}

func buildTypedData(order *ctfOrder) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(polygonChainID),
			VerifyingContract: common.HexToAddress(ctfExchangeAddress).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          fmt.Sprintf("%d", order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
	}
}

// toTokenUnits truncates an amount to the given decimal precision and
// scales it to 6 decimal token units. Truncation, never rounding up;
// the venue rejects amounts that exceed the stated precision.
func toTokenUnits(amount decimal.Decimal, places int32) *big.Int {
	truncated := amount.Truncate(places)
	scaled := truncated.Mul(decimal.NewFromInt(1_000_000))
	return scaled.BigInt()
}

// apiPayload converts a signed order to the CLOB API format. The owner
// field must be the API key, and the signature rides inside the order.
func (o *signedOrder) apiPayload(apiKey, orderType string) map[string]interface{} {
	sideStr := "BUY"
	if o.order.Side == 1 {
		sideStr = "SELL"
	}
	return map[string]interface{}{
		"order": map[string]interface{}{
			"salt":          o.order.Salt.Int64(),
			"maker":         o.order.Maker.Hex(),
			"signer":        o.order.Signer.Hex(),
			"taker":         o.order.Taker.Hex(),
			"tokenId":       o.order.TokenID.String(),
			"makerAmount":   o.order.MakerAmount.String(),
			"takerAmount":   o.order.TakerAmount.String(),
			"expiration":    o.order.Expiration.String(),
			"nonce":         o.order.Nonce.String(),
			"feeRateBps":    o.order.FeeRateBps.String(),
			"side":          sideStr,
			"signatureType": int(o.order.SignatureType),
			"signature":     o.signature,
		},
		"owner":     apiKey,
		"orderType": orderType,
		"postOnly":  false,
	}
}
