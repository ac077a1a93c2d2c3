package registry

// NetworkStats aggregates the capacity of all active peers.
type NetworkStats struct {
	ActivePeers    int `json:"active_peers"`
	TotalCPUCores  int `json:"total_cpu_cores"`
	TotalRAMMB     int `json:"total_ram_mb"`
	TotalStorageGB int `json:"total_storage_gb"`
	TotalGPUs      int `json:"total_gpus"`
}

// Stats sums the resources of the currently active records.
func (r *Registry) Stats() NetworkStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s NetworkStats
	for _, rec := range r.records {
		if !rec.IsActive {
			continue
		}
		s.ActivePeers++
		s.TotalCPUCores += rec.Hardware.CPUCores
		s.TotalRAMMB += rec.Hardware.RAMMB
		s.TotalStorageGB += rec.Hardware.StorageGB
		if rec.Hardware.GPUAvailable {
			s.TotalGPUs++
		}
	}
	return s
}
