package modelstores

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// FileAdapter is a model store implementation that uses the filesystem, its main
// purpose is to facilitate testing. Given its low performance it is strongly
// discouraged for production use
type FileAdapter struct {
	Path string
}

// NewFileAdapter returns an initialized file model store object
func NewFileAdapter(conf map[string]interface{}) (*FileAdapter, error) {
	return &FileAdapter{Path: conf["Path"].(string)}, nil
}

// Delete can be used to remove the record of a specific model from disk
func (fa FileAdapter) Delete(id string) error {
	err := os.Remove(filepath.Join(fa.Path, prefix+id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List can be used to get the IDs of the stored models. The file adapter doesn't page,
// it returns everything that matches the pattern in one go
func (fa FileAdapter) List(offset, limit int, pattern string) ([]string, int, error) {
	files, err := ioutil.ReadDir(fa.Path)
	if err != nil {
		return nil, 0, err
	}
	var ids []string
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), prefix) {
			continue
		}
		id := strings.TrimPrefix(file.Name(), prefix)
		match, err := filepath.Match(pattern, id)
		if err != nil {
			return nil, 0, err
		}
		if match {
			ids = append(ids, id)
		}
	}
	return ids, 0, nil
}

// Load can be used to retrieve the record of a specific model from disk
func (fa FileAdapter) Load(id string, r Record) (bool, error) {
	value, err := ioutil.ReadFile(filepath.Join(fa.Path, prefix+id))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	err = r.Unmarshal(value)
	return true, err
}

// Save can be used to upsert the record of a specific model to disk
func (fa FileAdapter) Save(id string, r Record) error {
	value, err := r.Marshal()
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(fa.Path, prefix+id))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = f.Write(value); err != nil {
		return err
	}
	return f.Sync()
}
