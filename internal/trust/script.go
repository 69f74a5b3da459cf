package trust

import (
	"fmt"
	"strings"
)

const (
	outputAlreadyTrusted   = "ALREADY_TRUSTED"
	outputTrustEstablished = "TRUST_ESTABLISHED"
)

// authorizeScript builds the remote command that appends the staged key to
// authorized_keys unless a line already ends with marker. The staged file is
// removed either way. The append is a single write so an interrupted run
// leaves either the old file or a complete new line.
func authorizeScript(stagedPath, marker string) string {
	staged := shellQuote(stagedPath)
	m := shellQuote(marker)

	lines := []string{
		"set -e",
		"umask 077",
		"mkdir -p ~/.ssh",
		"touch ~/.ssh/authorized_keys",
		fmt.Sprintf("if awk -v m=%s '$NF == m { found = 1 } END { exit !found }' ~/.ssh/authorized_keys; then", m),
		fmt.Sprintf("  rm -f %s", staged),
		"  echo " + outputAlreadyTrusted,
		"else",
		`  if [ -s ~/.ssh/authorized_keys ] && [ -n "$(tail -c 1 ~/.ssh/authorized_keys)" ]; then echo >> ~/.ssh/authorized_keys; fi`,
		fmt.Sprintf("  cat %s >> ~/.ssh/authorized_keys", staged),
		fmt.Sprintf("  rm -f %s", staged),
		"  echo " + outputTrustEstablished,
		"fi",
	}
	return strings.Join(lines, "\n")
}

// shellQuote wraps s in single quotes for a POSIX shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
