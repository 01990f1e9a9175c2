package config

import (
	"fmt"

	"github.com/marmos91/dittoiso/pkg/adapter"
	"github.com/marmos91/dittoiso/pkg/adapter/ftp"
	"github.com/marmos91/dittoiso/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete DittoISO configuration
//   - ftpMetrics: Optional FTP metrics collector (nil = no metrics)
func CreateAdapters(cfg *Config, ftpMetrics metrics.FTPMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.FTP.Enabled {
		adapters = append(adapters, ftp.New(cfg.Adapters.FTP, ftpMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
