// Package producer exposes common logic that all Go collectors can use for shipping
// sample batches into the service. Batches are wrapped in the cloud event envelope the
// consumer expects here so collectors only deal in samples
package producer

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"regexp"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/evanfeinberg/deepchem/api/types"
)

// ipPort represents a valid ipv4 address with format ip:port
var ipPort = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?):\d{1,5}$`)

// Producer is an abstraction over how a collector delivers sample batches to the
// service. The subject names where the batch came from (usually the dataset file)
type Producer interface {
	Send(subject string, sb *types.SampleBatch) error
	Close()
}

// Config holds the necessary configuration to set up a producer
type Config struct {
	Addresses []string      `json:"addresses"`
	Source    string        `json:"source"` // Collector name stamped on every event
	Timeout   time.Duration `json:"timeout"`
	Topic     string        `json:"topic"`
	Type      string        `json:"type"`
}

// New returns a producer of the type selected in the configuration
func New(conf Config) (Producer, error) {
	if conf.Source == "" {
		conf.Source = "collector"
	}
	switch conf.Type {
	case "kafka":
		return NewKafkaProducer(conf)
	case "rest":
		return NewRestProducer(conf)
	default:
		return nil, errors.New(conf.Type + " is not a valid producer type")
	}
}

// envelope wraps a sample batch in the cloud event the batch processor consumes
func envelope(source, subject string, sb *types.SampleBatch) ([]byte, error) {
	event := cloudevents.NewEvent()
	event.SetDataContentType("application/json")
	event.SetDataSchema("github.com/evanfeinberg/deepchem/api/types/")
	event.SetID(uuid.New().String())
	event.SetSource(source)
	event.SetSubject(subject)
	event.SetType(types.SampleBatchEvent)
	if err := event.SetData("application/json", sb); err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

// oneUp is used to check if at least one of the given addresses is usable. Only endpoints that use TCP are supported
func oneUp(addrs []string, timeout time.Duration) bool {
	for _, addr := range addrs {
		clean, err := cleanHostPort(addr)
		if err != nil {
			continue
		}
		d := net.Dialer{Timeout: timeout}
		conn, err := d.Dial("tcp", clean)
		if err != nil {
			continue
		}
		conn.Close()
		return true
	}
	return false
}

// cleanHostPort is needed so that invalid addresses can be detected quickly and so that we can check the connection to
// addresses with a scheme in them
func cleanHostPort(addr string) (string, error) {
	if ipPort.MatchString(addr) {
		return addr, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		clean := addr[8:]
		if u.Port() == "" {
			clean += ":443"
		}
		return clean, nil
	case "http":
		clean := addr[7:]
		if u.Port() == "" {
			clean += ":80"
		}
		return clean, nil
	default:
		return addr, nil
	}
}
