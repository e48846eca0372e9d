// Package hostinfo takes the machine snapshot that gets published to the
// directory: hostname, CPU usage, memory and uptime.
package hostinfo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/pharosdir/pharos/wire"
)

// Info is one machine snapshot.
type Info struct {
	Hostname      string
	OS            string
	Platform      string
	CPUPercent    float64
	MemUsedBytes  uint64
	MemTotalBytes uint64
	UptimeSeconds uint64
}

// Collect gathers a snapshot of the local machine. CPU usage is measured
// since the previous call, so on a periodic schedule it covers the whole
// interval without blocking.
func Collect(ctx context.Context) (Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("memory info: %w", err)
	}
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Info{}, fmt.Errorf("cpu usage: %w", err)
	}
	var cpuPercent float64
	if len(usage) > 0 {
		cpuPercent = usage[0]
	}

	return Info{
		Hostname:      h.Hostname,
		OS:            h.OS,
		Platform:      h.Platform,
		CPUPercent:    cpuPercent,
		MemUsedBytes:  vm.Used,
		MemTotalBytes: vm.Total,
		UptimeSeconds: h.Uptime,
	}, nil
}

// Fields renders the snapshot as directory record fields, in the layout
// machine records use. The caller adds the identifying type field.
func (i Info) Fields() []wire.Field {
	return []wire.Field{
		{Name: "name", Value: i.Hostname},
		{Name: "os", Value: i.OS},
		{Name: "platform", Value: i.Platform},
		{Name: "cpu", Value: strconv.FormatFloat(i.CPUPercent, 'f', 2, 64)},
		{Name: "mem_used", Value: strconv.FormatUint(i.MemUsedBytes, 10)},
		{Name: "mem_total", Value: strconv.FormatUint(i.MemTotalBytes, 10)},
		{Name: "uptime", Value: strconv.FormatUint(i.UptimeSeconds, 10)},
	}
}
