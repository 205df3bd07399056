package commands

import (
	"os"
	"path/filepath"
)

// defaultStateDir mirrors edgelogd's own state directory resolution (the
// directory holding its PID and log files). edgelogd's ledger lives at its
// configured ledger.path, by default /var/lib/edgelogd/ledger.db, which is
// not under this directory; reading that ledger takes --ledger.
func defaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "edgelogd")
}

func defaultLedgerPath() string {
	return filepath.Join(defaultStateDir(), "ledger.db")
}

func resolveLedgerPath() string {
	if ledgerPath != "" {
		return ledgerPath
	}
	return defaultLedgerPath()
}
