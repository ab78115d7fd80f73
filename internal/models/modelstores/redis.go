package modelstores

import (
	"bufio"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/evanfeinberg/deepchem/internal/logger"
	redis "github.com/mediocregopher/radix/v3"
	"github.com/mediocregopher/radix/v3/resp/resp2"
)

// RedisAdapter is the model store implementation for Redis
type RedisAdapter struct {
	client   redis.Client
	sentinel *redis.Sentinel
}

// NewRedisAdapter returns an initialized Redis model store object. When a sentinel
// group is configured the adapter routes writes to the primary and spreads reads
func NewRedisAdapter(conf map[string]interface{}) (*RedisAdapter, error) {
	group, found := conf["group"]
	if found {
		sentinel, err := redis.NewSentinel(group.(string), strings.Split(conf["URLs"].(string), ","))
		return &RedisAdapter{sentinel: sentinel}, err
	}
	pool, err := redis.NewPool("tcp", conf["URL"].(string), 10)
	return &RedisAdapter{client: pool}, err
}

// readClient returns a client for a random Redis instance, as reads can be handled by
// secondary replicas too
func (ra *RedisAdapter) readClient() (redis.Client, error) {
	if ra.sentinel == nil {
		return ra.client, nil
	}
	primary, secondaries := ra.sentinel.Addrs()
	secondaries = append(secondaries, primary)
	rand.Seed(time.Now().UnixNano())
	i := rand.Intn(len(secondaries))
	return ra.sentinel.Client(secondaries[i])
}

// writeClient returns a client for the primary Redis instance, as that's the only one
// that can handle writes
func (ra *RedisAdapter) writeClient() (redis.Client, error) {
	if ra.sentinel == nil {
		return ra.client, nil
	}
	primary, _ := ra.sentinel.Addrs()
	return ra.sentinel.Client(primary)
}

// Delete can be used to remove the record of a specific model from Redis
func (ra *RedisAdapter) Delete(id string) error {
	var (
		value    int
		redisErr resp2.Error
	)
	client, err := ra.writeClient()
	if err != nil {
		return err
	}
	err = client.Do(redis.Cmd(&value, "DEL", prefix+id))
	if errors.As(err, &redisErr) {
		logger.Error("Redis error returned while deleting a model record", redisErr.E)
		return redisErr.E
	}
	return err
}

type scanResult struct {
	cur  int
	keys []string
}

// UnmarshalRESP is based on the private method with the same name in the radix library
// and needed here because said library doesn't provide a good interface for decoupled
// iteration (where the client of the API needs to know what the value of the cursor is)
// which means that we have to use the plain Cmd approach and parse the result ourselves
func (s *scanResult) UnmarshalRESP(br *bufio.Reader) error {
	var ah resp2.ArrayHeader
	err := ah.UnmarshalRESP(br)
	if err != nil {
		return err
	} else if ah.N != 2 {
		return errors.New("not enough parts returned")
	}

	var c resp2.BulkString
	if err := c.UnmarshalRESP(br); err != nil {
		return err
	}

	s.cur, err = strconv.Atoi(c.S)
	if err != nil {
		logger.Error("Error trying to convert cursor to int (raw: "+c.S+")", err)
		return err
	}
	s.keys = s.keys[:0]

	return (resp2.Any{I: &s.keys}).UnmarshalRESP(br)
}

// List can be used to page through the IDs of the models that are stored in Redis by
// starting with offset 0 and then continuing to call the method with the updated cursor
// value it returns until it becomes 0
func (ra *RedisAdapter) List(offset, limit int, pattern string) ([]string, int, error) {
	var (
		res      scanResult
		redisErr resp2.Error
	)
	client, err := ra.readClient()
	if err != nil {
		return nil, 0, err
	}
	args := []string{strconv.Itoa(offset), "COUNT", strconv.Itoa(limit), "MATCH", prefix + pattern}
	err = client.Do(redis.Cmd(&res, "SCAN", args...))
	if errors.As(err, &redisErr) {
		logger.Error("Redis error returned while listing model records", redisErr.E)
		return nil, 0, redisErr.E
	}

	ids := make([]string, 0, len(res.keys))
	for _, key := range res.keys {
		ids = append(ids, strings.TrimPrefix(key, prefix))
	}
	return ids, res.cur, nil
}

// Load can be used to retrieve the record of a specific model from Redis
func (ra *RedisAdapter) Load(id string, r Record) (bool, error) {
	var (
		value    string
		redisErr resp2.Error
	)
	client, err := ra.readClient()
	if err != nil {
		return false, err
	}
	err = client.Do(redis.Cmd(&value, "GET", prefix+id))
	if errors.As(err, &redisErr) {
		logger.Error("Redis error returned while loading a model record", redisErr.E)
		return false, redisErr.E
	}
	if value == "" {
		return false, err
	}
	err = r.Unmarshal([]byte(value))
	return true, err
}

// Save can be used to upsert the record of a specific model to Redis
func (ra *RedisAdapter) Save(id string, r Record) error {
	value, err := r.Marshal()
	if err != nil {
		return err
	}
	client, err := ra.writeClient()
	if err != nil {
		return err
	}
	return client.Do(redis.Cmd(nil, "SET", prefix+id, string(value)))
}
