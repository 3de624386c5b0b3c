package session

import "errors"

var (
	// ErrNoValidTransactions is returned by Upload when a file yields no staged rows.
	// It wraps sniffer.ErrFormatNotDetected when the layout could not be detected.
	ErrNoValidTransactions = errors.New("no valid transactions")

	ErrInvalidAccount  = errors.New("invalid account context")
	ErrInvalidState    = errors.New("invalid session state")
	ErrUnknownRow      = errors.New("unknown row")
	ErrUnknownCategory = errors.New("unknown category")
	ErrNothingToCommit = errors.New("no rows selected for commit")
	ErrCommitFailed    = errors.New("commit failed")
)

// UserMessage is shown to the user for any whole-file defect.
const UserMessage = "could not find any valid transactions in this file"
