package types

import "fmt"

// HardwareSnapshot is the resource capacity a peer announces in its
// heartbeats. Values are operator-declared, not probed.
type HardwareSnapshot struct {
	CPUCores     int    `json:"cpu_cores"`
	RAMMB        int    `json:"ram_mb"`
	GPUModel     string `json:"gpu_model"` // "none" when no GPU is present
	GPUAvailable bool   `json:"gpu_available"`
	StorageGB    int    `json:"storage_gb"`
}

// Validate checks that the snapshot has plausible, fully-populated fields.
func (h HardwareSnapshot) Validate() error {
	if h.CPUCores <= 0 {
		return fmt.Errorf("cpu_cores must be positive, got %d", h.CPUCores)
	}
	if h.RAMMB <= 0 {
		return fmt.Errorf("ram_mb must be positive, got %d", h.RAMMB)
	}
	if h.StorageGB <= 0 {
		return fmt.Errorf("storage_gb must be positive, got %d", h.StorageGB)
	}
	if h.GPUModel == "" {
		return fmt.Errorf("gpu_model must be set (use %q when absent)", "none")
	}
	if h.GPUAvailable && h.GPUModel == "none" {
		return fmt.Errorf("gpu_available set but gpu_model is %q", "none")
	}
	return nil
}

// Fingerprint identifies physically identical hardware. Two records with
// the same fingerprint are treated as duplicate announcements of one
// machine during deduplication. It is derived, never persisted.
type Fingerprint struct {
	CPUCores int
	RAMMB    int
	GPUModel string
}

// FingerprintOf derives the dedup fingerprint from a hardware snapshot.
func FingerprintOf(h HardwareSnapshot) Fingerprint {
	return Fingerprint{CPUCores: h.CPUCores, RAMMB: h.RAMMB, GPUModel: h.GPUModel}
}

// String renders the fingerprint tuple, mainly for logs.
func (f Fingerprint) String() string {
	return fmt.Sprintf("(%d,%d,%s)", f.CPUCores, f.RAMMB, f.GPUModel)
}
