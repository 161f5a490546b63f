package cli

import (
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/internal/config"
)

// setupLogging installs the root log handler. Logs go to w, normally
// stderr, so they never mix with command output.
func setupLogging(c config.Log, w io.Writer) error {
	lvl, err := log.LvlFromString(c.Level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	format := log.TerminalFormat(false)
	if c.Format == "json" {
		format = log.JSONFormat()
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(w, format)))
	return nil
}
