package scan

import "slices"

// Role strings reported for discovered nodes.
const (
	RoleHypervisor = "Proxmox Virtualization Server"
	RoleMedia      = "Plex Media Server"
	RoleWeb        = "Web Server"
	RoleSSH        = "SSH-enabled Linux/UNIX Server"
	RoleUnknown    = "Unknown Infrastructure Asset"
)

// InferRole guesses what a machine is from its open ports. The most
// specific service wins: a hypervisor usually runs a web console and ssh
// too, so those ports must not shadow it.
func InferRole(ports []int) string {
	switch {
	case slices.Contains(ports, 8006):
		return RoleHypervisor
	case slices.Contains(ports, 32400):
		return RoleMedia
	case slices.Contains(ports, 80), slices.Contains(ports, 443):
		return RoleWeb
	case slices.Contains(ports, 22):
		return RoleSSH
	default:
		return RoleUnknown
	}
}
