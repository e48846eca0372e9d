package scan

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// OUIResolver maps MAC address prefixes to hardware manufacturers.
type OUIResolver struct {
	prefixes map[string]string
}

// NewOUIResolver returns a resolver seeded with the prefixes common on
// home-lab and virtualization hardware.
func NewOUIResolver() *OUIResolver {
	return &OUIResolver{prefixes: map[string]string{
		"00:50:56": "VMware, Inc.",
		"08:00:27": "Oracle (VirtualBox)",
		"BC:24:11": "Proxmox Server",
		"B8:27:EB": "Raspberry Pi Foundation",
		"DC:A6:32": "Raspberry Pi Foundation (4)",
		"00:15:5D": "Microsoft (Hyper-V)",
	}}
}

// LoadCSV merges prefix,manufacturer pairs from a CSV file into the
// table. File entries override built-in ones. Lines starting with # are
// skipped.
func (r *OUIResolver) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening OUI table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading OUI table %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}
		prefix := strings.ToUpper(strings.TrimSpace(record[0]))
		r.prefixes[prefix] = strings.TrimSpace(record[1])
	}
	return nil
}

// Resolve returns the manufacturer for a MAC address, matching on the
// first three octets.
func (r *OUIResolver) Resolve(mac string) (string, bool) {
	if len(mac) < 8 {
		return "", false
	}
	manufacturer, ok := r.prefixes[strings.ToUpper(mac[:8])]
	return manufacturer, ok
}
