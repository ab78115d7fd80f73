package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/pkg/producer"
)

func main() {
	// Get arguments
	var (
		batchSize, inN        int
		pc                    producer.Config
		modelID, sep, targets string
	)
	flag.IntVar(&batchSize, "batch", 10, "Maximum number of samples to bundle in a single batch event")
	flag.IntVar(&inN, "in", 1, "Number of feature columns, counted left to right, all others will be considered labels")
	flag.DurationVar(&pc.Timeout, "timeout", 15*time.Second, "Maximum time to wait for the production of a message")
	flag.StringVar(&pc.Topic, "topic", "deepchem-batches", "Where to produce the messages when using Kafka")
	flag.StringVar(&pc.Type, "producer", "rest", "What producer to use. Supported values are rest and kafka")
	flag.StringVar(&sep, "sep", " ", "String sequence that denotes the end of one field and the start of the next")
	flag.StringVar(&modelID, "model", "", "ID of the model that these samples belong to")
	flag.StringVar(
		&targets,
		"targets",
		"",
		"Comma separated list of protocol://host:port for service instances when using rest, host:port of Kafka brokers when using kafka",
	)
	flag.Parse()

	// Check arguments
	path := flag.Arg(0)
	if path == "" {
		fmt.Println("ERROR: No file path specified")
		os.Exit(1)
	}
	if modelID == "" {
		fmt.Println("ERROR: No model specified")
		os.Exit(1)
	}
	if targets == "" {
		fmt.Println("ERROR: No targets specified")
		os.Exit(1)
	}

	// Initialize producer
	pc.Addresses = strings.Split(targets, ",")
	pc.Source = "dcfeed"
	p, err := producer.New(pc)
	if err != nil {
		fmt.Println("ERROR: Failed to start producer (" + err.Error() + ")")
		os.Exit(1)
	}
	defer p.Close()
	fmt.Println(pc.Type + " producer initialized with targets: " + targets)

	// Initialize collector
	out := make(chan types.Sample, 10)
	fc := NewFileCollector(inN, out, path, sep)
	fmt.Println("file collector created for path: " + path)

	batch := []types.Sample{}
	sent := 0
	go fc.Collect()
	fmt.Println("collection started")
	for sample := range out {
		batch = append(batch, sample)
		if len(batch) < batchSize {
			continue
		}
		sb := types.SampleBatch{
			ModelID: modelID,
			Samples: batch,
		}
		if err = p.Send(path, &sb); err != nil {
			fmt.Println("ERROR: " + err.Error())
			os.Exit(1)
		}
		sent += len(batch)
		batch = []types.Sample{}
	}
	if fc.Err() != nil {
		fmt.Println("ERROR: " + fc.Err().Error())
		os.Exit(1)
	}
	// Send any remaining samples
	if len(batch) != 0 {
		sb := types.SampleBatch{
			ModelID: modelID,
			Samples: batch,
		}
		if err = p.Send(path, &sb); err != nil {
			fmt.Println("ERROR: " + err.Error())
			os.Exit(1)
		}
		sent += len(batch)
	}
	fmt.Println("successfully produced " + strconv.Itoa(sent) + " samples")
}
