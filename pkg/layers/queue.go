package layers

import (
	"fmt"

	glzcms "github.com/go-go-golems/glazed/pkg/cmds"
	glzlayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

const QueueSlug = "queue"

type QueueSettings struct {
	KafkaBrokers []string `glazed.parameter:"kafka-brokers"`
	KafkaTopic   string   `glazed.parameter:"kafka-topic"`
	KafkaGroupID string   `glazed.parameter:"kafka-group-id"`
}

func NewQueueLayer() (glzlayers.ParameterLayer, error) {
	return glzlayers.NewParameterLayer(
		QueueSlug,
		"Dispatch queue settings",
		glzlayers.WithParameterDefinitions(
			parameters.NewParameterDefinition(
				"kafka-brokers",
				parameters.ParameterTypeStringList,
				parameters.WithHelp("Kafka broker addresses"),
				parameters.WithDefault([]string{}),
			),
			parameters.NewParameterDefinition(
				"kafka-topic",
				parameters.ParameterTypeString,
				parameters.WithHelp("Topic ready batches are published to"),
				parameters.WithDefault("batches"),
			),
			parameters.NewParameterDefinition(
				"kafka-group-id",
				parameters.ParameterTypeString,
				parameters.WithHelp("Consumer group of the validators"),
				parameters.WithDefault("batch-validator"),
			),
		),
	)
}

func AddQueueLayerToCommand(c glzcms.Command) (glzcms.Command, error) {
	l, err := NewQueueLayer()
	if err != nil {
		return nil, err
	}
	c.Description().Layers.Set(QueueSlug, l)
	return c, nil
}

func GetQueueSettings(parsed *glzlayers.ParsedLayers) (*QueueSettings, error) {
	var s QueueSettings
	if err := parsed.InitializeStruct(QueueSlug, &s); err != nil {
		return nil, fmt.Errorf("failed to parse queue settings: %w", err)
	}
	return &s, nil
}
