// Package manifest retrieves the list of network interfaces the cloud
// control plane believes are attached to this host.
//
// The manifest is the desired-state input of the reconciliation loop: each
// fetch supersedes the previous one wholesale. Fetch failures are reported
// as FETCH_ERROR and cause the loop to skip the pass without touching
// kernel state.
package manifest

import "context"

// InterfaceDescriptor describes one attached interface as reported by the
// metadata API. Immutable once received for a cycle.
type InterfaceDescriptor struct {
	// ID is the stable identifier: a device name (eth1) or a MAC address.
	ID string `json:"id"`
	// MAC is the hardware address, used to match kernel links when ID is
	// not a device name.
	MAC string `json:"mac,omitempty"`
	// Address is the primary address with prefix length, e.g. "10.0.1.5/24".
	Address string `json:"address"`
	// Gateway is the subnet gateway address.
	Gateway string `json:"gateway"`
	// DeviceIndex is the attachment index hint from the control plane.
	// When present it anchors the interface's route table id; when absent
	// the table id is derived by hashing ID.
	DeviceIndex *int `json:"device_index,omitempty"`
}

// Provider returns the current ordered interface manifest.
type Provider interface {
	Fetch(ctx context.Context) ([]InterfaceDescriptor, error)
}
