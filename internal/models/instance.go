package models

// Instance is a rented GPU instance as reported by the provider.
type Instance struct {
	ID           int     `json:"id"`
	MachineID    int     `json:"machine_id"`
	ActualStatus string  `json:"actual_status"`
	Label        string  `json:"label"`
	GPUName      string  `json:"gpu_name"`
	NumGPUs      int     `json:"num_gpus"`
	ImageUUID    string  `json:"image_uuid"`
	CostPerHour  float64 `json:"dph_total"`
	PublicIP     string  `json:"public_ipaddr"`
	SSHHost      string  `json:"ssh_host"`
	SSHPort      int     `json:"ssh_port"`
	StartDate    float64 `json:"start_date"`
	GPUUtil      float64 `json:"gpu_util"`
	DiskUsage    float64 `json:"disk_usage"`
	StatusMsg    string  `json:"status_msg"`
	UptimeMins   float64 `json:"uptime_mins"`
}

// Offer is a rentable machine listing.
type Offer struct {
	ID          int     `json:"id"`
	GPUName     string  `json:"gpu_name"`
	NumGPUs     int     `json:"num_gpus"`
	CPUName     string  `json:"cpu_name"`
	CPURAM      float64 `json:"cpu_ram"`
	DiskSpace   float64 `json:"disk_space"`
	CostPerHour float64 `json:"dph_total"`
	Geolocation string  `json:"geolocation"`
	Reliability float64 `json:"reliability2"`
	CUDAVersion float64 `json:"cuda_max_good"`
	InetDown    float64 `json:"inet_down"`
	InetUp      float64 `json:"inet_up"`
}

// VolumeOffer is a rentable storage volume listing.
type VolumeOffer struct {
	ID          int     `json:"id"`
	DiskSpace   float64 `json:"disk_space"`
	StorageCost float64 `json:"storage_cost"`
	Geolocation string  `json:"geolocation"`
	Reliability float64 `json:"reliability2"`
	DiskBW      float64 `json:"disk_bw"`
	InetDown    float64 `json:"inet_down"`
	InetUp      float64 `json:"inet_up"`
}

// Template is a provider-side launch template.
type Template struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
	RunType     string `json:"runtype"`
	OnStart     string `json:"onstart"`
}

// UserInfo is the provider account summary.
type UserInfo struct {
	ID         int     `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Credit     float64 `json:"credit"`
	TotalSpent float64 `json:"total_spent"`
	SSHKey     string  `json:"ssh_key"`
}
