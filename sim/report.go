package sim

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-keysync/keysync"
)

// PeerReport holds the final counters of a simulated peer.
type PeerReport struct {
	ID    int                      `json:"id"`
	Stats keysync.Stats            `json:"stats"`
	Peers []keysync.PeerStats[int] `json:"peers"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (pr *PeerReport) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("id", pr.ID)
	if err := enc.AddObject("stats", pr.Stats); err != nil {
		return err
	}
	return enc.AddArray("peers", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for _, ps := range pr.Peers {
			if err := ae.AppendObject(ps); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Report is the outcome of a simulation run.
type Report struct {
	ID        string        `json:"id"`
	Trial     int           `json:"trial"`
	Seed      uint64        `json:"seed,omitempty"`
	Converged bool          `json:"converged"`
	Error     string        `json:"error,omitempty"`
	Packets   int           `json:"packets"`
	Delivered int           `json:"delivered"`
	Dropped   int           `json:"dropped"`
	Elapsed   time.Duration `json:"elapsed"`
	// Events holds the number of reported key differences by kind.
	Events map[string]int `json:"events"`
	Peers  []PeerReport   `json:"peerReports"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r *Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.ID)
	enc.AddInt("trial", r.Trial)
	enc.AddBool("converged", r.Converged)
	enc.AddInt("packets", r.Packets)
	enc.AddInt("delivered", r.Delivered)
	enc.AddInt("dropped", r.Dropped)
	enc.AddDuration("elapsed", r.Elapsed)
	for _, kind := range []keysync.EventKind{keysync.PeerHas, keysync.PeerDoesNotHave, keysync.PeerNowHas} {
		enc.AddInt(kind.String(), r.Events[kind.String()])
	}
	return enc.AddArray("peers", zapcore.ArrayMarshalerFunc(func(ae zapcore.ArrayEncoder) error {
		for n := range r.Peers {
			if err := ae.AppendObject(&r.Peers[n]); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *Simulation) report(elapsed time.Duration) *Report {
	r := &Report{
		ID:        s.id.String(),
		Seed:      s.cfg.Seed,
		Converged: s.Converged(),
		Packets:   s.packets,
		Delivered: s.delivered,
		Dropped:   s.dropped,
		Elapsed:   elapsed,
		Events:    make(map[string]int),
	}
	for kind, n := range s.events {
		r.Events[keysync.EventKind(kind).String()] = n
	}
	for _, p := range s.peers {
		r.Peers = append(r.Peers, PeerReport{
			ID:    p.id,
			Stats: p.engine.Stats(),
			Peers: p.engine.Peers(),
		})
	}
	return r
}

// WriteReports writes the reports to the specified file as JSON.
func WriteReports(fs afero.Fs, path string, reports []*Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

// ReadReports reads the reports written by WriteReports.
func ReadReports(fs afero.Fs, path string) ([]*Report, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	var reports []*Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("unmarshal reports: %w", err)
	}
	return reports, nil
}
