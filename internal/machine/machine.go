// Package machine derives the stable per-machine identity the store protocol
// binds purchases and downloads to.
package machine

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// MacAddress returns the hardware address of the first interface that has
// one.
func MacAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		addr := iface.HardwareAddr.String()
		if addr != "" {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no network interfaces found")
}

// Guid is the MAC address colon-stripped and uppercased, the form the
// MZFinance endpoints expect in the `guid` field.
func Guid() (string, error) {
	mac, err := MacAddress()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.ToUpper(mac), ":", ""), nil
}

// HomeDir returns the current user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}
	return home, nil
}
