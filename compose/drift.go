package compose

import (
	"fmt"
	"maps"
)

// MountSpec describes how a provisioned network filesystem should be mounted
// by the container runtime. Providers fill it from their infra outputs.
type MountSpec struct {
	// Address is the live NFS endpoint IP.
	Address string
	// ExportPath is the exported path, including the leading slash.
	ExportPath string
	// FSType is the local-driver mount type (nfs for both providers).
	FSType string
	// Options is the comma-joined mount option list appended after addr=.
	Options string
}

// DriverOpts renders the compose volume driver_opts implied by the mount spec.
func (m MountSpec) DriverOpts() map[string]string {
	return map[string]string{
		"type":   m.FSType,
		"o":      "addr=" + m.Address + "," + m.Options,
		"device": ":" + m.ExportPath,
	}
}

// VolumeDiscrepancy records one volume whose declared driver options no
// longer match the live infrastructure. Transient; consumed by FixVolumeDrift.
type VolumeDiscrepancy struct {
	VolumeName   string
	CurrentOpts  map[string]string
	ExpectedOpts map[string]string
}

// Reason summarizes the mismatch for log output.
func (d VolumeDiscrepancy) Reason() string {
	if d.CurrentOpts == nil {
		return fmt.Sprintf("volume is not declared; want driver_opts %v", d.ExpectedOpts)
	}
	return fmt.Sprintf("declared driver_opts %v, want %v", d.CurrentOpts, d.ExpectedOpts)
}

// CheckVolumeDrift compares the named volumes against the mount spec. A
// missing volume entry, a non-local driver, or differing driver_opts all
// count as drift.
func CheckVolumeDrift(doc *Document, names []string, spec MountSpec) []VolumeDiscrepancy {
	expected := spec.DriverOpts()
	var out []VolumeDiscrepancy
	for _, name := range names {
		vol := doc.Volumes[name]
		if vol == nil {
			out = append(out, VolumeDiscrepancy{VolumeName: name, ExpectedOpts: expected})
			continue
		}
		if vol.Driver != "local" || !maps.Equal(vol.DriverOpts, expected) {
			out = append(out, VolumeDiscrepancy{
				VolumeName:   name,
				CurrentOpts:  vol.DriverOpts,
				ExpectedOpts: expected,
			})
		}
	}
	return out
}

// FixVolumeDrift rewrites the named volumes to the expected local-driver
// definition. The caller saves the document.
func FixVolumeDrift(doc *Document, names []string, spec MountSpec) {
	expected := spec.DriverOpts()
	for _, name := range names {
		doc.SetVolumeDriver(name, "local", expected)
	}
}
