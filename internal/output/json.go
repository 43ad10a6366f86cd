package output

import (
	"encoding/json"

	"github.com/fieldsync/fieldsync/internal/core"
)

// JSONFormatter renders views as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatStatus renders the combined diagnostic view as JSON.
func (f *JSONFormatter) FormatStatus(status Status) (string, error) {
	return f.marshal(status)
}

// FormatActions renders pending actions as JSON.
func (f *JSONFormatter) FormatActions(actions []core.OfflineAction) (string, error) {
	if actions == nil {
		actions = []core.OfflineAction{}
	}
	return f.marshal(actions)
}

// FormatErrorRecords renders the permanent-failure log as JSON.
func (f *JSONFormatter) FormatErrorRecords(records []core.OfflineErrorRecord) (string, error) {
	if records == nil {
		records = []core.OfflineErrorRecord{}
	}
	return f.marshal(records)
}

// FormatSyncReport renders a replay pass summary as JSON.
func (f *JSONFormatter) FormatSyncReport(report core.SyncReport) (string, error) {
	return f.marshal(report)
}
