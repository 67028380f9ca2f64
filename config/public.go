package config

import "time"

// safe for API structure
type PublicConfig struct {
	General struct {
		NodeID   string `json:"nodeId"`
		LogLevel string `json:"logLevel"`
	} `json:"general"`

	Watcher struct {
		Backend       string        `json:"backend"`
		Debounce      time.Duration `json:"debounce"`
		Immediate     bool          `json:"immediate"`
		PreciseEvents bool          `json:"preciseEvents"`
		NoticeEvents  bool          `json:"noticeEvents"`
		Ignore        []string      `json:"ignore"`
	} `json:"watcher"`

	HTTP struct {
		Address string `json:"address"`
		Port    int    `json:"port"`
		TLS     bool   `json:"tls"`
	} `json:"http"`

	GRPC struct {
		Enabled bool   `json:"enabled"`
		Address string `json:"address"`
		Port    int    `json:"port"`
	} `json:"grpc"`

	Metrics struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"metrics"`
}

// ToPublic strips file-system locations and key material from the config.
func (c *Config) ToPublic() *PublicConfig {
	p := &PublicConfig{}

	p.General.NodeID = c.General.NodeID
	p.General.LogLevel = c.General.LogLevel

	p.Watcher.Backend = c.Watcher.Backend
	p.Watcher.Debounce = c.Watcher.Debounce
	p.Watcher.Immediate = c.Watcher.Immediate
	p.Watcher.PreciseEvents = c.Watcher.PreciseEvents
	p.Watcher.NoticeEvents = c.Watcher.NoticeEvents
	p.Watcher.Ignore = append([]string(nil), c.Watcher.Ignore...)

	p.HTTP.Address = c.HTTP.Address
	p.HTTP.Port = c.HTTP.Port
	p.HTTP.TLS = c.HTTP.TLS

	p.GRPC.Enabled = c.GRPC.Enabled
	p.GRPC.Address = c.GRPC.Address
	p.GRPC.Port = c.GRPC.Port

	p.Metrics.Enabled = c.Metrics.Enabled
	p.Metrics.Path = c.Metrics.Path

	return p
}
