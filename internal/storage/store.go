package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/structure"
)

const (
	metadataFile = "metadata.json"
	profileFile  = "profile.csv"
	sweepFile    = "sweep.csv"
)

var (
	ErrRunNotFound = errors.New("storage: run not found")
	ErrWrongKind   = errors.New("storage: run has a different kind")
)

type Kind string

const (
	KindProfile Kind = "profile"
	KindSweep   Kind = "sweep"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// RunInfo is what the caller knows about a run beyond its result.
type RunInfo struct {
	Solver  string
	Params  structure.Params
	Metrics map[string]float64
}

type RunMetadata struct {
	ID          string                `json:"id"`
	Kind        Kind                  `json:"kind"`
	Timestamp   time.Time             `json:"timestamp"`
	Solver      string                `json:"solver"`
	Constants   eos.Constants         `json:"constants"`
	Params      structure.Params      `json:"params"`
	PCentral    float64               `json:"p_central,omitempty"`
	Termination structure.Termination `json:"termination,omitempty"`
	RadiusSolar float64               `json:"radius_rsun,omitempty"`
	MassSolar   float64               `json:"mass_msun,omitempty"`
	Samples     int                   `json:"samples,omitempty"`
	Entries     int                   `json:"entries,omitempty"`
	Failed      int                   `json:"failed,omitempty"`
	Metrics     map[string]float64    `json:"metrics,omitempty"`
}

// SweepRow is one line of a stored sweep.
type SweepRow struct {
	PCentral    float64 `json:"p_central"`
	RadiusSolar float64 `json:"radius_rsun"`
	MassSolar   float64 `json:"mass_msun"`
	// Status is "ok" or the failure kind.
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r SweepRow) OK() bool { return r.Status == "ok" }

// SweepRows flattens sweep entries in input order.
func SweepRows(res *structure.SweepResult) []SweepRow {
	rows := make([]SweepRow, len(res.Entries))
	for i, e := range res.Entries {
		rows[i] = SweepRow{PCentral: e.PCentral, RadiusSolar: e.RadiusSolar, MassSolar: e.MassSolar, Status: "ok"}
		if !e.OK() {
			rows[i].Status, rows[i].Error = e.Failure, e.Err.Error()
		}
	}
	return rows
}

func (s *Store) SaveProfile(prof *structure.Profile, info RunInfo) (string, error) {
	meta := RunMetadata{
		Kind:        KindProfile,
		Solver:      info.Solver,
		Constants:   prof.Constants,
		Params:      info.Params,
		PCentral:    prof.PCentral,
		Termination: prof.Termination,
		RadiusSolar: prof.SurfaceRadiusSolar(),
		MassSolar:   prof.TotalMassSolar(),
		Samples:     len(prof.Samples),
		Metrics:     info.Metrics,
	}

	rows := make([][]string, 0, len(prof.Samples)+1)
	rows = append(rows, []string{"r", "P", "M", "rho"})
	for _, smp := range prof.Samples {
		rows = append(rows, []string{formatFloat(smp.R), formatFloat(smp.P), formatFloat(smp.M), formatFloat(smp.Rho)})
	}

	return s.save(&meta, profileFile, rows)
}

func (s *Store) SaveSweep(res *structure.SweepResult, consts eos.Constants, info RunInfo) (string, error) {
	meta := RunMetadata{
		Kind:      KindSweep,
		Solver:    info.Solver,
		Constants: consts,
		Params:    info.Params,
		Entries:   len(res.Entries),
		Failed:    res.Failed(),
		Metrics:   info.Metrics,
	}

	sweep := SweepRows(res)
	rows := make([][]string, 0, len(sweep)+1)
	rows = append(rows, []string{"p_central", "radius_rsun", "mass_msun", "status", "error"})
	for _, r := range sweep {
		rows = append(rows, []string{formatFloat(r.PCentral), formatFloat(r.RadiusSolar), formatFloat(r.MassSolar), r.Status, r.Error})
	}

	return s.save(&meta, sweepFile, rows)
}

func (s *Store) save(meta *RunMetadata, csvName string, rows [][]string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	meta.Timestamp = s.now()

	runID, runDir, err := s.newRunDir(string(meta.Kind), meta.Timestamp)
	if err != nil {
		return "", err
	}
	meta.ID = runID

	if err := writeRun(runDir, meta, csvName, rows); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("save run %s: %w", runID, err)
	}

	return runID, nil
}

func writeRun(runDir string, meta *RunMetadata, csvName string, rows [][]string) error {
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	return writeCSV(filepath.Join(runDir, csvName), rows)
}

// newRunDir creates <base>/<kind>_<timestamp>, adding a suffix when a run
// from the same second already exists.
func (s *Store) newRunDir(kind string, ts time.Time) (string, string, error) {
	base := fmt.Sprintf("%s_%s", kind, ts.Format("20060102-150405"))
	for n := 1; ; n++ {
		runID := base
		if n > 1 {
			runID = fmt.Sprintf("%s_%d", base, n)
		}
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
	}
}

// List returns the stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadProfile rebuilds a stored profile. It has no dense solution.
func (s *Store) LoadProfile(runID string) (*structure.Profile, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindProfile {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, runID, meta.Kind)
	}

	records, err := s.readCSV(runID, profileFile)
	if err != nil {
		return nil, err
	}

	samples := make([]structure.Sample, 0, len(records))
	for i, record := range records {
		vals, err := parseFloats(record, 4)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, i+2, err)
		}
		samples = append(samples, structure.Sample{R: vals[0], P: vals[1], M: vals[2], Rho: vals[3]})
	}

	return structure.NewProfile(meta.PCentral, samples, meta.Termination, meta.Constants), nil
}

func (s *Store) LoadSweep(runID string) ([]SweepRow, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindSweep {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, runID, meta.Kind)
	}

	records, err := s.readCSV(runID, sweepFile)
	if err != nil {
		return nil, err
	}

	rows := make([]SweepRow, 0, len(records))
	for i, record := range records {
		if len(record) != 5 {
			return nil, fmt.Errorf("run %s line %d: expected 5 fields, got %d", runID, i+2, len(record))
		}
		vals, err := parseFloats(record[:3], 3)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, i+2, err)
		}
		rows = append(rows, SweepRow{
			PCentral:    vals[0],
			RadiusSolar: vals[1],
			MassSolar:   vals[2],
			Status:      record[3],
			Error:       record[4],
		})
	}
	return rows, nil
}

// readCSV returns the data records of a run table without its header.
func (s *Store) readCSV(runID, name string) ([][]string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

func (s *Store) csvPath(meta *RunMetadata) string {
	name := profileFile
	if meta.Kind == KindSweep {
		name = sweepFile
	}
	return filepath.Join(s.baseDir, meta.ID, name)
}

func parseFloats(record []string, n int) ([]float64, error) {
	if len(record) != n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(record))
	}
	vals := make([]float64, n)
	for j, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		vals[j] = v
	}
	return vals, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := csv.NewWriter(f).WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
