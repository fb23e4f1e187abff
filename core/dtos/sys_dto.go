package dtos

type RootRes struct {
	Message string `json:"message"`
}

// HealthRes keeps status before service on the wire.
type HealthRes struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type SysInfoRes struct {
	DeviceName     string `json:"device_name"`
	CPUCores       int    `json:"cpu_cores"`
	GoVersion      string `json:"go_version"`
	Uptime         string `json:"uptime"`
	SupportedDrugs int    `json:"supported_drugs"`
}
