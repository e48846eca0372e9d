package scan

import (
	"bufio"
	"os"
	"strings"
)

// arpTable reads the kernel ARP cache, mapping IP address to MAC address.
// A missing or unreadable table yields an empty map, never an error: the
// scanner works fine without vendor information.
func arpTable(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	table := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ip, mac := fields[0], fields[3]
		if mac == "00:00:00:00:00:00" {
			continue
		}
		table[ip] = mac
	}
	return table
}
