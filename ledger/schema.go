package ledger

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Every record lives under its own key. The only aggregate is the total
// paid by a company, which settlement updates once per payment.
var (
	// companyPrefix + company id (uint64 big endian) -> company record
	companyPrefix = []byte("pc-")

	// commitmentPrefix + company id (uint64 big endian) + employee -> commitment record
	commitmentPrefix = []byte("pcm-")

	// nullifierPrefix + nullifier -> nullifier record
	nullifierPrefix = []byte("pn-")

	// balancePrefix + principal -> token balance
	balancePrefix = []byte("pb-")

	// recipientPrefix + company id + recipient hash -> payout principal
	recipientPrefix = []byte("pr-")

	// paymentPrefix + company id + period (uint32 big endian) + employee -> payment record
	paymentPrefix = []byte("pp-")

	// totalPaidPrefix + company id -> amount paid by the company
	totalPaidPrefix = []byte("pt-")

	// nextCompanyIDKey tracks the next company id to hand out.
	nextCompanyIDKey = []byte("NextCompanyId")

	// sequenceKey tracks the current ledger sequence number.
	sequenceKey = []byte("LedgerSequence")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	key = append(key, prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func encodeID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// CompanyKey returns the key of a company record.
func CompanyKey(id uint64) []byte {
	return prefixed(companyPrefix, encodeID(id))
}

// CommitmentKey returns the key of the commitment record for one employee.
func CommitmentKey(company uint64, employee string) []byte {
	return prefixed(commitmentPrefix, encodeID(company), []byte(employee))
}

// NullifierKey returns the key of a nullifier record.
func NullifierKey(n common.Hash) []byte {
	return prefixed(nullifierPrefix, n.Bytes())
}

// NextCompanyIDKey returns the key of the company id counter.
func NextCompanyIDKey() []byte {
	return nextCompanyIDKey
}

// BalanceKey returns the key of a principal's token balance.
func BalanceKey(principal string) []byte {
	return prefixed(balancePrefix, []byte(principal))
}

// RecipientKey returns the key binding a recipient hash to a payout principal.
func RecipientKey(company uint64, recipient common.Hash) []byte {
	return prefixed(recipientPrefix, encodeID(company), recipient.Bytes())
}

// PaymentKey returns the key of an employee's payment for one period.
func PaymentKey(company uint64, employee string, period uint32) []byte {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], period)
	return prefixed(paymentPrefix, encodeID(company), p[:], []byte(employee))
}

// TotalPaidKey returns the key of the amount a company has paid out.
func TotalPaidKey(company uint64) []byte {
	return prefixed(totalPaidPrefix, encodeID(company))
}
