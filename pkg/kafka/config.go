package kafka

import (
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// SASL mechanisms understood by Config.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismScramSHA512 = "SCRAM-SHA-512"
)

// Config holds broker addresses and transport security shared by Producer
// and Consumer.
type Config struct {
	ConsumerGroup string

	// SASLMechanism is one of the Mechanism* constants; empty means PLAIN.
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string

	Brokers []string

	TLS         bool
	SASLEnabled bool
}

// Validate reports a missing broker list or SASL settings that cannot be
// turned into a mechanism.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if !c.SASLEnabled {
		return nil
	}
	if c.SASLUsername == "" {
		return errors.New("kafka: SASL username is required")
	}
	_, err := resolveSASL(c)
	return err
}

func resolveSASL(c Config) (sasl.Mechanism, error) {
	switch c.SASLMechanism {
	case MechanismPlain, "":
		return &plain.Mechanism{Username: c.SASLUsername, Password: c.SASLPassword}, nil
	case MechanismScramSHA256:
		return scramMechanism(scram.SHA256, c)
	case MechanismScramSHA512:
		return scramMechanism(scram.SHA512, c)
	default:
		return nil, fmt.Errorf("kafka: unsupported SASL mechanism %q", c.SASLMechanism)
	}
}

func scramMechanism(algo scram.Algorithm, c Config) (sasl.Mechanism, error) {
	m, err := scram.Mechanism(algo, c.SASLUsername, c.SASLPassword)
	if err != nil {
		return nil, fmt.Errorf("kafka: %s mechanism: %w", c.SASLMechanism, err)
	}
	return m, nil
}
