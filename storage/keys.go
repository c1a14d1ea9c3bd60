package storage

import "strconv"

// Record keys. The layout must stay stable across restarts of a wallet.
const (
	// AccountsKey holds the list of account indexes.
	AccountsKey = "accounts"
	// SaltKey holds the passphrase salt. It is always stored unencrypted.
	SaltKey = "storage-salt"
)

// AccountKey is the record holding account i's details.
func AccountKey(i uint32) string {
	return "account-" + strconv.FormatUint(uint64(i), 10)
}

// AccountOutputsKey is the record holding account i's cached outputs.
func AccountOutputsKey(i uint32) string {
	return AccountKey(i) + "-outputs"
}

// AccountTransactionsKey is the record holding account i's transactions.
func AccountTransactionsKey(i uint32) string {
	return AccountKey(i) + "-transactions"
}

// AccountRecordKeys lists every record belonging to account i.
func AccountRecordKeys(i uint32) []string {
	return []string{AccountKey(i), AccountOutputsKey(i), AccountTransactionsKey(i)}
}
