package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// takes a save path and a variable number of strings and writes them to file separated by new lines
func WriteToFile(savePath string, content ...string) error {
	if err := EnsureDir(filepath.Dir(savePath)); err != nil {
		return err
	}
	singleString := ""
	for i, c := range content {
		if i == 0 {
			singleString = c
			continue
		}
		singleString = fmt.Sprintf("%s\n%s", singleString, c)
	}

	return os.WriteFile(savePath, []byte(singleString), 0644)
}

// AppendToFile writes each string as a new line at the end of the file, creating it if needed
func AppendToFile(savePath string, content ...string) error {
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}

	defer f.Close()

	for _, s := range content {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SaveJson writes data as indented json, the parent folder is created if missing
func SaveJson(savePath string, data interface{}) error {
	bs, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", savePath, err)
	}
	if err := EnsureDir(filepath.Dir(savePath)); err != nil {
		return err
	}
	return os.WriteFile(savePath, bs, 0644)
}

// EnsureDir creates the directory and its parents if they do not exist
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}
