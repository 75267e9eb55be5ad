package chains

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalogueFile is the YAML shape of an external chain table. Amounts and
// durations are strings ("0.001", "4m") and parsed during load.
type catalogueFile struct {
	Chains []chainRow `yaml:"chains"`
	Routes []routeRow `yaml:"routes"`
}

type chainRow struct {
	Key          string `yaml:"key"`
	DisplayName  string `yaml:"display_name"`
	ChainID      uint64 `yaml:"chain_id"`
	NativeSymbol string `yaml:"native_symbol"`
	ExplorerURL  string `yaml:"explorer_url"`
	MinTransfer  string `yaml:"min_transfer"`
	Supported    bool   `yaml:"supported"`
}

type routeRow struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	MinTransfer string `yaml:"min_transfer"`
	Duration    string `yaml:"estimated_duration"`
}

// LoadFile reads a chain catalogue from a YAML file. Rows with missing
// required fields are skipped with a warning rather than failing the load.
func LoadFile(path string, logger *zap.Logger) (*Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read chains file: %w", err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chains file: %w", err)
	}
	if len(file.Chains) == 0 {
		return nil, fmt.Errorf("no chains defined in %s", path)
	}

	descriptors := make([]Descriptor, 0, len(file.Chains))
	for _, row := range file.Chains {
		if row.Key == "" || row.DisplayName == "" {
			logger.Warn("Skipping chain with missing key or display name",
				zap.String("key", row.Key))
			continue
		}
		min := DefaultMinTransfer
		if row.MinTransfer != "" {
			parsed, err := decimal.NewFromString(row.MinTransfer)
			if err != nil || !parsed.IsPositive() {
				logger.Warn("Invalid min_transfer value, using default",
					zap.String("chain", row.Key),
					zap.String("value", row.MinTransfer))
			} else {
				min = parsed
			}
		}
		descriptors = append(descriptors, Descriptor{
			Key:          row.Key,
			DisplayName:  row.DisplayName,
			ChainID:      row.ChainID,
			NativeSymbol: row.NativeSymbol,
			ExplorerURL:  row.ExplorerURL,
			MinTransfer:  min,
			Supported:    row.Supported,
		})
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no valid chains in %s", path)
	}

	routes := make(map[Route]RouteInfo, len(file.Routes))
	for _, row := range file.Routes {
		if row.Source == "" || row.Destination == "" || row.Source == row.Destination {
			logger.Warn("Skipping invalid route",
				zap.String("source", row.Source),
				zap.String("destination", row.Destination))
			continue
		}
		info := RouteInfo{
			MinTransfer:       DefaultMinTransfer,
			EstimatedDuration: DefaultEstimatedDuration,
		}
		if row.MinTransfer != "" {
			if parsed, err := decimal.NewFromString(row.MinTransfer); err == nil && parsed.IsPositive() {
				info.MinTransfer = parsed
			}
		}
		if row.Duration != "" {
			if d, err := time.ParseDuration(row.Duration); err == nil && d > 0 {
				info.EstimatedDuration = d
			}
		}
		routes[Route{Source: row.Source, Destination: row.Destination}] = info
	}

	logger.Info("Chain catalogue loaded",
		zap.String("path", path),
		zap.Int("chains", len(descriptors)),
		zap.Int("routes", len(routes)))
	return NewRegistry(descriptors, routes), nil
}
