package layers

import (
	glzcms "github.com/go-go-golems/glazed/pkg/cmds"
)

type adder func(glzcms.Command) (glzcms.Command, error)

// AddStoreLayers attaches the storage, validation and vault layers, and the
// queue layer when withQueue is set.
func AddStoreLayers(c glzcms.Command, withQueue bool) error {
	adders := []adder{AddStorageLayerToCommand, AddValidationLayerToCommand, AddVaultLayerToCommand}
	if withQueue {
		adders = append(adders, AddQueueLayerToCommand)
	}
	for _, add := range adders {
		if _, err := add(c); err != nil {
			return err
		}
	}
	return nil
}
