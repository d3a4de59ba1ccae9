package ledger

import (
	"context"
	"errors"
	"net"
	"os"

	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
)

// Classify maps a transport failure onto LEDGER_TIMEOUT or LEDGER_SYNC_FAILED. Errors that
// already carry a code pass through unchanged.
func Classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLedgerTimeout, err, method+" timed out; transaction outcome unknown")
	}
	return pkgerrors.Wrap(pkgerrors.CodeLedgerSync, err, method+" failed")
}

// IsTimeout reports deadline expiry from the context, the socket or the HTTP transport.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
