// Package store holds what the storage backends share: seeding instance
// configurations from a YAML file.
package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tournevent/parcelgate/pkg/shipping"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Instances []yaml.Node `yaml:"instances"`
}

// ParseInstances reads instance configs from YAML of the form
//
//	instances:
//	  - instance_id: 3
//	    api_key: ...
//	    available_services: [fan_courier, fanbox]
//
// Fields left out keep the admin form defaults.
func ParseInstances(r io.Reader) ([]*shipping.ShippingConfig, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing instances: %w", err)
	}

	configs := make([]*shipping.ShippingConfig, 0, len(file.Instances))
	seen := make(map[int]struct{}, len(file.Instances))
	for i := range file.Instances {
		var head struct {
			InstanceID int `yaml:"instance_id"`
		}
		if err := file.Instances[i].Decode(&head); err != nil {
			return nil, fmt.Errorf("instance #%d: %w", i+1, err)
		}
		if head.InstanceID <= 0 {
			return nil, fmt.Errorf("instance #%d: instance_id must be positive", i+1)
		}
		if _, dup := seen[head.InstanceID]; dup {
			return nil, fmt.Errorf("instance #%d: duplicate instance_id %d", i+1, head.InstanceID)
		}
		seen[head.InstanceID] = struct{}{}

		cfg := shipping.NewShippingConfig(head.InstanceID)
		if err := file.Instances[i].Decode(cfg); err != nil {
			return nil, fmt.Errorf("instance %d: %w", head.InstanceID, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// LoadInstances reads instance configs from a YAML file.
func LoadInstances(path string) ([]*shipping.ShippingConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening instances file: %w", err)
	}
	defer f.Close()
	return ParseInstances(f)
}

// Seed saves every config into repo.
func Seed(ctx context.Context, repo shipping.ConfigRepository, configs []*shipping.ShippingConfig) error {
	for _, cfg := range configs {
		if err := repo.Save(ctx, cfg); err != nil {
			return fmt.Errorf("seeding instance %d: %w", cfg.InstanceID, err)
		}
	}
	return nil
}
