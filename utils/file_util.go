package utils

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

func Exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

func EnsureDir(dir string, perm os.FileMode) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, perm)
	}
	return nil
}

/*
WriteJsonFile
Marshal obj to indented JSON and write it atomically (tmp file + rename).
*/
func WriteJsonFile(path string, obj interface{}) *errs.Error {
	data, err_ := json.MarshalIndent(obj, "", "  ")
	if err_ != nil {
		return errs.New(core.ErrMarshalFail, err_)
	}
	if err := EnsureDir(filepath.Dir(path), 0755); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	tmp := path + ".tmp"
	if err_ = os.WriteFile(tmp, data, 0644); err_ != nil {
		return errs.New(core.ErrIOWriteFail, err_)
	}
	if err_ = os.Rename(tmp, path); err_ != nil {
		return errs.New(core.ErrIOWriteFail, err_)
	}
	return nil
}

func ReadJsonFile(path string, obj interface{}) *errs.Error {
	data, err_ := os.ReadFile(path)
	if err_ != nil {
		return errs.New(core.ErrIOReadFail, err_)
	}
	if err_ = json.Unmarshal(data, obj); err_ != nil {
		return errs.New(core.ErrMarshalFail, err_)
	}
	return nil
}
