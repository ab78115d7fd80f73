package samplestores

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	elastic "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/evanfeinberg/deepchem/api/types"
	"github.com/evanfeinberg/deepchem/internal/config"
	"github.com/evanfeinberg/deepchem/internal/logger"
)

// ElasticAdapter is a sample store implementation for Elasticsearch
type ElasticAdapter struct {
	client *elastic.Client
}

// QResponse is used to facilitate parsing elasticsearch sample query responses
type QResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int    `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
			S     Sample `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticAdapter returns an initialized Elasticsearch sample store
func NewElasticAdapter(tp config.TrainingParams) (*ElasticAdapter, error) {
	cfg := elastic.Config{
		Addresses: strings.Split(tp.StoreParams["URLs"].(string), ","),
		Username:  tp.StoreUser,
		Password:  tp.StorePass,
	}
	client, err := elastic.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticAdapter{client}, nil
}

type mappingProps struct {
	Type  string `json:"type"`
	Index bool   `json:"index"`
}

// AddSample upserts a training example into the index of a given model
func (ea ElasticAdapter) AddSample(modelID string, s Sample) error {
	index := prefix + strings.ToLower(modelID)
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: s.ID(),
		Body:       strings.NewReader(string(data)),
	}
	logger.Trace("Indexing document with this content: " + string(data))

	res, err := req.Do(context.Background(), ea.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode == 404 {
			err = ea.AddSet(modelID, s)
			if err != nil {
				return err
			}
			return ea.AddSample(modelID, s)
		}
		return esToErr("indexing document", res.Status())
	}
	// Deserialize the response into a map.
	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return err
	}
	// Print the response status and indexed document version.
	logger.Trace(fmt.Sprintf("[%s] %s; version=%d", res.Status(), r["result"], int(r["_version"].(float64))))

	return nil
}

// AddSet creates and configures a new index in Elasticsearch to hold a model's samples
func (ea ElasticAdapter) AddSet(modelID string, sample Sample) error {
	index := prefix + strings.ToLower(modelID)
	props := map[string]mappingProps{
		"@timestamp": {"date", true},
		"features":   {"float", false},
		"labels":     {"float", false},
		"weights":    {"float", false},
	}

	jProps, err := json.Marshal(props)
	if err != nil {
		return err
	}
	mapping := `{"mappings":{"date_detection": false, "properties":` + string(jProps) + "}}"
	logger.Info("Creating new index for model " + modelID + " with this mapping: " + mapping)
	res, err := ea.client.Indices.Create(index, ea.client.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return err
	}
	if res.IsError() {
		return esToErr("creating index", res.Status())
	}
	return nil
}

// DeleteSet removes the index used to store a model's samples
func (ea ElasticAdapter) DeleteSet(modelID string) error {
	index := prefix + strings.ToLower(modelID)
	res, err := ea.client.Indices.Delete([]string{index})
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

// Exists returns true if an index for the specified model is present in elasticsearch,
// false if not or in case of error (make sure to check if error is nil before looking
// at the boolean)
func (ea ElasticAdapter) Exists(modelID string) (bool, error) {
	index := prefix + strings.ToLower(modelID)
	req := esapi.IndicesExistsRequest{
		Index: []string{index},
	}
	res, err := req.Do(context.Background(), ea.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode == 404 {
			return false, nil
		}
		return false, esToErr("checking if index exists", res.Status())
	}
	return true, nil
}

// GetCount retrieves the number of samples recorded for the given model (returns 0 if
// the set doesn't exist)
func (ea ElasticAdapter) GetCount(modelID string) (int, error) {
	index := prefix + strings.ToLower(modelID)
	res, err := ea.client.Count(
		ea.client.Count.WithContext(context.Background()),
		ea.client.Count.WithIndex(index),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode == 404 {
			return 0, nil
		}
		buf := new(strings.Builder)
		_, err = io.Copy(buf, res.Body)
		if err != nil {
			return 0, err
		}
		return 0, esToErr("performing count query", buf.String())
	}
	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, err
	}

	return int(r["count"].(float64)), nil
}

// GetLastN retrieves the n most recent samples for the given model
func (ea ElasticAdapter) GetLastN(modelID string, n int) ([]Sample, error) {
	index := prefix + strings.ToLower(modelID)
	stmt := `{"sort": [{"@timestamp": {"order": "desc"}}],"size": ` + strconv.Itoa(n) + `}`
	res, err := ea.query(index, stmt)
	if err != nil {
		return nil, err
	}
	samples := []Sample{}
	for _, hit := range res.Hits.Hits {
		samples = append(samples, hit.S)
	}

	return samples, nil
}

// ListSets as its name implies, returns a list of all the sample sets that are
// available in elasticsearch
func (ea ElasticAdapter) ListSets() ([]types.BriefSampleSet, error) {
	req := esapi.CatIndicesRequest{
		Index:  []string{prefix + "*"},
		Format: "json",
		H:      []string{"index", "docs.count"},
	}
	res, err := req.Do(context.Background(), ea.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, esToErr("listing indices", res.Status())
	}
	logger.Trace(res.String())
	var r []map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}
	var sets []types.BriefSampleSet
	for _, s := range r {
		count := 0
		if s["docs.count"] != nil {
			count, err = strconv.Atoi(s["docs.count"].(string))
			if err != nil {
				return nil, err
			}
		}
		sets = append(sets, types.BriefSampleSet{ModelID: s["index"].(string)[len(prefix):], Count: count})
	}

	return sets, nil
}

func esToErr(context, err string) error {
	return fmt.Errorf("Error encountered while %s: %s", context, err)
}

func (ea ElasticAdapter) query(index, stmt string) (QResponse, error) {
	logger.Trace("Executing query " + stmt + " for index " + index)
	res, err := ea.client.Search(
		ea.client.Search.WithContext(context.Background()),
		ea.client.Search.WithIndex(index),
		ea.client.Search.WithBody(strings.NewReader(stmt)),
		ea.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return QResponse{}, err
	}
	defer res.Body.Close()
	if res.IsError() {
		buf := new(strings.Builder)
		_, err = io.Copy(buf, res.Body)
		if err != nil {
			return QResponse{}, err
		}
		return QResponse{}, esToErr("performing this ("+stmt+") query", buf.String())
	}

	var r QResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return QResponse{}, err
	}

	if len(r.Hits.Hits) <= 3 {
		logger.Trace("Response from elasticsearch: " + res.String())
	} else {
		logger.Trace(
			fmt.Sprintf(
				"Response from elasticsearch too big to print in full, status: %d hits: %d",
				res.StatusCode,
				len(r.Hits.Hits),
			),
		)
	}

	return r, nil
}
