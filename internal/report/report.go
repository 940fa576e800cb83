// Package report prepares run reports for output and writes them to disk.
//
// Every float in a written report is finite: NaN and ±Inf are replaced by 0
// before encoding, since JSON cannot represent them and downstream consumers
// treat 0 as "undefined" for ratios.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"

	"github.com/rewired-gh/ldarsim/internal/models"
)

// Default permissions for report files and their directories.
const (
	DefaultFilePermissions os.FileMode = 0644
	DefaultDirPermissions  os.FileMode = 0755
)

// Finite replaces every NaN or infinite float reachable from v with 0 and
// returns how many values it replaced. v must be a pointer.
func Finite(v interface{}) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return 0
	}
	return sanitize(rv.Elem())
}

func sanitize(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if (math.IsNaN(f) || math.IsInf(f, 0)) && v.CanSet() {
			v.SetFloat(0)
			return 1
		}
	case reflect.Struct:
		n := 0
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				n += sanitize(v.Field(i))
			}
		}
		return n
	case reflect.Slice, reflect.Array:
		n := 0
		for i := 0; i < v.Len(); i++ {
			n += sanitize(v.Index(i))
		}
		return n
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return sanitize(v.Elem())
		}
	}
	return 0
}

// WriteJSON sanitizes r and writes it to path atomically: the JSON goes to a
// temporary file in the same directory which is then renamed over path.
func WriteJSON(path string, r *models.RunReport, filePerm, dirPerm os.FileMode) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	Finite(r)

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, filePerm); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename report: %w", err)
	}
	return nil
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*models.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r models.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}
