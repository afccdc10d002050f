package osc

import (
	"strings"

	"pulselink/internal/config"
)

// Addresses 出站OSC参数地址集合
// 由配置前缀构建一次，会话期间不可变
type Addresses struct {
	BeatToggle string
	BeatPulse  string
	IntHR      string
	FloatHR    string
	Connected  string
	LatestRR   string
}

// NewAddresses 根据配置构建地址集合
func NewAddresses(cfg *config.OSCConfig) Addresses {
	return Addresses{
		BeatToggle: FormatAddress(cfg.AddressPrefix, cfg.ParamBeatToggle),
		BeatPulse:  FormatAddress(cfg.AddressPrefix, cfg.ParamBeatPulse),
		IntHR:      FormatAddress(cfg.AddressPrefix, cfg.ParamBPMInt),
		FloatHR:    FormatAddress(cfg.AddressPrefix, cfg.ParamBPMFloat),
		Connected:  FormatAddress(cfg.AddressPrefix, cfg.ParamConnected),
		LatestRR:   FormatAddress(cfg.AddressPrefix, cfg.ParamLatestRR),
	}
}

// FormatAddress 拼接前缀与参数名，并折叠重复的路径分隔符
func FormatAddress(prefix, param string) string {
	address := prefix + "/" + param
	for strings.Contains(address, "//") {
		address = strings.ReplaceAll(address, "//", "/")
	}
	return address
}
