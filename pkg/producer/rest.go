package producer

import (
	"bytes"
	"crypto/tls"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
)

// RestProducer is a Producer implementation for handing sample batches straight to the
// service's ingestion endpoint. Its use is discouraged when pairing it with a
// production setup given that it doesn't support load balancing by model ID
type RestProducer struct {
	client    *http.Client
	endpoints []string
	source    string
}

// NewRestProducer checks the provided addresses and creates a rest producer
func NewRestProducer(conf Config) (*RestProducer, error) {
	if !oneUp(conf.Addresses, conf.Timeout) {
		return nil, errors.New("none of the provided endpoints are usable")
	}
	rand.Seed(time.Now().UnixNano())
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &RestProducer{
		client:    &http.Client{Transport: tr, Timeout: conf.Timeout},
		endpoints: conf.Addresses,
		source:    conf.Source,
	}, nil
}

// Close is required to be defined to comply with the Producer interface but not really needed for rest
func (rp *RestProducer) Close() {
	return
}

// Send wraps the batch in its event envelope and posts it to one of the defined
// addresses picked at random
func (rp *RestProducer) Send(subject string, sb *types.SampleBatch) error {
	raw, err := envelope(rp.source, subject, sb)
	if err != nil {
		return err
	}
	i := rand.Intn(len(rp.endpoints))
	url := rp.endpoints[i] + "/api/v1/batches/process"
	resp, err := rp.client.Post(url, "application/json", bytes.NewBuffer(raw))
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusAccepted {
		return errors.New("received http status " + resp.Status)
	}
	return nil
}
