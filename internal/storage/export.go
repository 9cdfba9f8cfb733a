package storage

import (
	"io"
	"os"
)

// ExportData is the self-contained JSON form of a stored run.
type ExportData struct {
	Metadata RunMetadata `json:"metadata"`
	Radius   []float64   `json:"r,omitempty"`
	Pressure []float64   `json:"P,omitempty"`
	Mass     []float64   `json:"M,omitempty"`
	Density  []float64   `json:"rho,omitempty"`
	Sweep    []SweepRow  `json:"sweep,omitempty"`
}

// ExportJSON writes the metadata and table of a run to path.
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Metadata: *meta}

	switch meta.Kind {
	case KindSweep:
		rows, err := s.LoadSweep(runID)
		if err != nil {
			return err
		}
		data.Sweep = rows
	default:
		prof, err := s.LoadProfile(runID)
		if err != nil {
			return err
		}
		data.Radius = prof.Radii()
		data.Pressure = prof.Pressures()
		data.Mass = prof.Masses()
		data.Density = prof.Densities()
	}

	return writeJSON(path, data)
}

// ExportCSV copies the run table to path.
func (s *Store) ExportCSV(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}

	src, err := os.Open(s.csvPath(meta))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
