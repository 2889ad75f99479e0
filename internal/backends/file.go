package backends

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oxsecrets/oxsecrets/internal/config"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// storedNote marks rows written by StoreSecrets in the notes column.
const storedNote = "stored by oxsecrets"

// fileHeader is the exact CSV header the file backend reads and regenerates.
var fileHeader = []string{"name", "category", "value", "notes"}

// FileBackend reads and writes secrets in a local CSV, JSON or raw file.
// Loader params:
//
//	filename         explicit path; falls back to OX_SECRETS_FILE, then the
//	                 configured default (~/.ox_secrets.csv)
//	file_type        csv, json or raw; inferred from the extension otherwise
//	encoding         only utf8 is supported
//	default_category category for rows/entries that carry none (default root)
//
// Every load reads the whole file; there is no per-name partial load.
type FileBackend struct {
	defaultPath string
	logger      *logging.Logger
}

// NewFileBackend creates the file backend with the configured default path.
func NewFileBackend(defaultPath string, logger *logging.Logger) *FileBackend {
	if defaultPath == "" {
		defaultPath = config.DefaultSecretsFile()
	}
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &FileBackend{defaultPath: defaultPath, logger: logger}
}

// Mode implements secrets.Backend.
func (f *FileBackend) Mode() secrets.Mode {
	return secrets.ModeFile
}

// Load implements secrets.Backend by reading the whole secrets file.
func (f *FileBackend) Load(_ context.Context, req secrets.LoadRequest) (secrets.Snapshot, error) {
	filename := f.resolvePath(req.Params)
	if err := checkEncoding(req.Params); err != nil {
		return nil, err
	}

	f.logger.Warn("opening secrets file %q", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "file", Err: err}
	}

	defaultCategory := paramOr(req.Params, "default_category", secrets.DefaultCategory)
	switch fileType(filename, req.Params) {
	case "csv":
		return parseCSV(filename, data, defaultCategory)
	case "json":
		return parseJSON(filename, data, defaultCategory)
	case "raw":
		snap := make(secrets.Snapshot)
		snap.Set(defaultCategory, defaultCategory, string(data))
		return snap, nil
	default:
		return nil, &secrets.FormatError{
			Source: filename,
			Detail: "unrecognized file type (want .csv, .json or .raw)",
		}
	}
}

// Store implements secrets.Writer with a whole-file read-modify-write: any
// existing row whose name appears in values under the target category is
// dropped, then the surviving rows and the new rows are written back under
// the regenerated header. The engine holds the cache mutex around this call;
// writers in other processes are not coordinated.
func (f *FileBackend) Store(_ context.Context, values map[string]string, category string, params secrets.Params) (secrets.Snapshot, error) {
	filename := f.resolvePath(params)
	if err := checkEncoding(params); err != nil {
		return nil, err
	}

	rows, err := f.readRowsForStore(filename)
	if err != nil {
		return nil, err
	}

	kept := rows[:0]
	for _, row := range rows {
		if row.category == category {
			if _, replaced := values[row.name]; replaced {
				continue
			}
		}
		kept = append(kept, row)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kept = append(kept, secretRow{name: name, category: category, value: values[name], notes: storedNote})
	}

	if err := writeRows(filename, kept); err != nil {
		return nil, &secrets.UnavailableError{Backend: "file", Err: err}
	}

	snap := make(secrets.Snapshot)
	for name, value := range values {
		snap.Set(category, name, value)
	}
	return snap, nil
}

type secretRow struct {
	name     string
	category string
	value    string
	notes    string
}

// readRowsForStore reads the existing rows, treating a missing file as empty
// (stores create the file; loads never do).
func (f *FileBackend) readRowsForStore(filename string) ([]secretRow, error) {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &secrets.UnavailableError{Backend: "file", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, &secrets.FormatError{Source: filename, Detail: err.Error()}
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := headerIndex(filename, records[0])
	if err != nil {
		return nil, err
	}
	rows := make([]secretRow, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, secretRow{
			name:     field(record, cols["name"]),
			category: field(record, cols["category"]),
			value:    field(record, cols["value"]),
			notes:    field(record, cols["notes"]),
		})
	}
	return rows, nil
}

func writeRows(filename string, rows []secretRow) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o700); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fileHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.name, row.category, row.value, row.notes}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0o600)
}

func parseCSV(filename string, data []byte, defaultCategory string) (secrets.Snapshot, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &secrets.FormatError{Source: filename, Detail: err.Error()}
	}
	if len(records) == 0 {
		return make(secrets.Snapshot), nil
	}

	cols, err := headerIndex(filename, records[0])
	if err != nil {
		return nil, err
	}

	snap := make(secrets.Snapshot)
	for _, record := range records[1:] {
		category := field(record, cols["category"])
		if category == "" {
			category = defaultCategory
		}
		snap.Set(category, field(record, cols["name"]), field(record, cols["value"]))
	}
	return snap, nil
}

func parseJSON(filename string, data []byte, defaultCategory string) (secrets.Snapshot, error) {
	flat := make(map[string]string)
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, &secrets.FormatError{
			Source: filename,
			Detail: fmt.Sprintf("want a flat name-to-value object: %v", err),
		}
	}
	snap := make(secrets.Snapshot)
	for name, value := range flat {
		snap.Set(defaultCategory, name, value)
	}
	return snap, nil
}

// headerIndex maps column names to positions. The name and value columns are
// required; category and notes are optional.
func headerIndex(filename string, header []string) (map[string]int, error) {
	cols := map[string]int{"name": -1, "category": -1, "value": -1, "notes": -1}
	for i, col := range header {
		cols[strings.TrimSpace(col)] = i
	}
	if cols["name"] < 0 || cols["value"] < 0 {
		return nil, &secrets.FormatError{
			Source: filename,
			Detail: fmt.Sprintf("header must contain name and value columns, got %v", header),
		}
	}
	return cols, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func (f *FileBackend) resolvePath(params secrets.Params) string {
	if filename := params["filename"]; filename != "" {
		return filename
	}
	if filename := os.Getenv(config.EnvFile); filename != "" {
		return filename
	}
	return f.defaultPath
}

func fileType(filename string, params secrets.Params) string {
	ft := params["file_type"]
	if ft == "" {
		ft = filepath.Ext(filename)
	}
	return strings.ToLower(strings.TrimPrefix(ft, "."))
}

func checkEncoding(params secrets.Params) error {
	enc := strings.ToLower(params["encoding"])
	switch enc {
	case "", "utf8", "utf-8":
		return nil
	default:
		return &secrets.FormatError{Source: "loader params", Detail: fmt.Sprintf("unsupported encoding %q", enc)}
	}
}
