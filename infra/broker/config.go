package broker

import (
	"github.com/taskmesh/task-delivery-service/config"
)

// ProducerConfigFrom maps the environment-derived settings onto the producer
// config of the active backend. The second return is false when messaging is
// disabled entirely.
func ProducerConfigFrom(m config.MessagingConfig) (ProducerConfig, bool) {
	if m.Broker == nil {
		return ProducerConfig{}, false
	}

	cfg := ProducerConfig{Backend: *m.Broker}
	switch *m.Broker {
	case config.BrokerKafka:
		cfg.Kafka = KafkaProducerConfig{
			Brokers:      m.KafkaBrokers,
			DefaultTopic: m.KafkaDefaultTopic,
		}
	case config.BrokerRedis:
		cfg.Redis = RedisProducerConfig{
			URL:            m.RedisURL,
			DefaultChannel: m.RedisDefaultChannel,
		}
	case config.BrokerRabbitMQ:
		cfg.RabbitMQ = RabbitMQProducerConfig{
			URL:          m.RabbitMQURL,
			DefaultQueue: m.RabbitMQDefaultQueue,
		}
	}
	return cfg, true
}

// ConsumerConfigFrom maps the settings onto the worker consumer config, which
// covers every configured task destination.
func ConsumerConfigFrom(m config.MessagingConfig) (ConsumerConfig, bool) {
	if m.Broker == nil {
		return ConsumerConfig{}, false
	}

	cfg := ConsumerConfig{Backend: *m.Broker}
	switch *m.Broker {
	case config.BrokerKafka:
		cfg.Kafka = KafkaConsumerConfig{
			Brokers: m.KafkaBrokers,
			Group:   m.KafkaConsumerGroup,
			Topics:  m.KafkaTopics,
		}
	case config.BrokerRedis:
		cfg.Redis = RedisConsumerConfig{
			URL:      m.RedisURL,
			Channels: m.RedisChannels,
		}
	case config.BrokerRabbitMQ:
		cfg.RabbitMQ = RabbitMQConsumerConfig{
			URL:    m.RabbitMQURL,
			Queues: m.RabbitMQQueues,
		}
	}
	return cfg, true
}

// ForwarderConfigFrom maps the settings onto a consumer config covering only
// the reserved broadcasts destination. Kafka forwarders join a dedicated
// consumer group so they do not steal messages from the workers.
func ForwarderConfigFrom(m config.MessagingConfig) (ConsumerConfig, bool) {
	if m.Broker == nil {
		return ConsumerConfig{}, false
	}

	cfg := ConsumerConfig{Backend: *m.Broker}
	switch *m.Broker {
	case config.BrokerKafka:
		cfg.Kafka = KafkaConsumerConfig{
			Brokers: m.KafkaBrokers,
			Group:   m.KafkaConsumerGroup + "-forwarder",
			Topics:  []string{config.DestinationBroadcasts},
		}
	case config.BrokerRedis:
		cfg.Redis = RedisConsumerConfig{
			URL:      m.RedisURL,
			Channels: []string{config.DestinationBroadcasts},
		}
	case config.BrokerRabbitMQ:
		cfg.RabbitMQ = RabbitMQConsumerConfig{
			URL:    m.RabbitMQURL,
			Queues: []string{config.DestinationBroadcasts},
		}
	}
	return cfg, true
}
