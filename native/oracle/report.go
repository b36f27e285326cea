package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RateDomainV1 is the domain separator delegates sign rate reports under.
const RateDomainV1 = "LENDCHAIN_RATE_V1"

// reportLength is the fixed wire size of a signed rate report:
// [timestamp:32][rate:32][decimals:32][v:1][r:32][s:32] big-endian.
const reportLength = 161

const maxReportDecimals = 32

var (
	errInvalidDataLength = errors.New("oracle: invalid data length")
	errInvalidTimestamp  = errors.New("oracle: timestamp required")
	errInvalidRate       = errors.New("oracle: rate must be positive")
	errInvalidDecimals   = errors.New("oracle: decimals out of range")
	errInvalidRecoveryID = errors.New("oracle: invalid signature recovery id")
)

// RateReport is a decoded signer-attested rate observation.
type RateReport struct {
	Timestamp int64
	Rate      *big.Int
	Decimals  uint64
	Signature []byte
}

// DecodeReport parses the fixed-width signed report layout. Any other length
// is a hard decode error, never a silent default.
func DecodeReport(data []byte) (*RateReport, error) {
	if len(data) != reportLength {
		return nil, errInvalidDataLength
	}
	timestamp := new(big.Int).SetBytes(data[0:32])
	if !timestamp.IsInt64() || timestamp.Sign() <= 0 {
		return nil, errInvalidTimestamp
	}
	rate := new(big.Int).SetBytes(data[32:64])
	if rate.Sign() <= 0 {
		return nil, errInvalidRate
	}
	decimals := new(big.Int).SetBytes(data[64:96])
	if !decimals.IsUint64() || decimals.Uint64() > maxReportDecimals {
		return nil, errInvalidDecimals
	}
	v := data[96]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v > 1 {
		return nil, errInvalidRecoveryID
	}
	sig := make([]byte, 65)
	copy(sig[0:32], data[97:129])
	copy(sig[32:64], data[129:161])
	sig[64] = v
	return &RateReport{
		Timestamp: timestamp.Int64(),
		Rate:      rate,
		Decimals:  decimals.Uint64(),
		Signature: sig,
	}, nil
}

// EncodeReport renders the wire layout for a report carrying a 65-byte
// [R || S || V] signature. Used by delegates and tests.
func EncodeReport(report *RateReport) ([]byte, error) {
	if report == nil {
		return nil, errInvalidDataLength
	}
	if len(report.Signature) != 65 {
		return nil, fmt.Errorf("oracle: signature must be 65 bytes long")
	}
	if report.Rate == nil || report.Rate.Sign() <= 0 {
		return nil, errInvalidRate
	}
	buf := make([]byte, reportLength)
	big.NewInt(report.Timestamp).FillBytes(buf[0:32])
	report.Rate.FillBytes(buf[32:64])
	new(big.Int).SetUint64(report.Decimals).FillBytes(buf[64:96])
	buf[96] = report.Signature[64]
	copy(buf[97:129], report.Signature[0:32])
	copy(buf[129:161], report.Signature[32:64])
	return buf, nil
}

// CanonicalMessage renders the domain-separated message a delegate signs for
// the given currency.
func (r *RateReport) CanonicalMessage(currency string) string {
	builder := strings.Builder{}
	builder.WriteString(RateDomainV1)
	builder.WriteString("|currency=")
	builder.WriteString(strings.ToUpper(strings.TrimSpace(currency)))
	builder.WriteString("|ts=")
	builder.WriteString(strconv.FormatInt(r.Timestamp, 10))
	builder.WriteString("|rate=")
	builder.WriteString(r.Rate.String())
	builder.WriteString("|dec=")
	builder.WriteString(strconv.FormatUint(r.Decimals, 10))
	return builder.String()
}

// Digest computes the keccak256 digest of the canonical message.
func (r *RateReport) Digest(currency string) []byte {
	return ethcrypto.Keccak256([]byte(r.CanonicalMessage(currency)))
}
