package lease

import (
	"bufio"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ReadAddr extracts the IPv4 address from a dhcpleased state file.
// The file is line-oriented "key: value" text; the first line whose key
// is "ip" wins. A missing or unreadable file yields "", never an error:
// the lease simply has no resolvable address right now.
func ReadAddr(path string) string {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Lease file not readable")
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == "ip" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ReadPrefix extracts the delegated prefix and prefix length from a
// dhcp6leased state file. Rows are whitespace-delimited; the first row
// whose leading column is "ia_pd" carries the prefix in column 2 and
// the length in column 3. Rows too short to hold both are skipped.
func ReadPrefix(path string) (prefix, prefixLen string) {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Lease file not readable")
		return "", ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		cols := strings.Fields(scanner.Text())
		if len(cols) < 4 {
			continue
		}
		if cols[0] == "ia_pd" {
			return cols[2], cols[3]
		}
	}
	return "", ""
}
